package runner

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"strings"

	"github.com/Jeffail/gabs/v2"

	httpplugin "github.com/BDNK1/apiflow/plugins/http"
	"github.com/BDNK1/apiflow/workflow"
)

var errBodyNotObject = errors.New("request body is not an object")

// buildRequest resolves every templated part of a step into a concrete request.
func (r *Runner) buildRequest(l *slog.Logger, engine *workflow.Engine, step workflow.TestStep) httpplugin.Request {
	resolved := engine.ResolveStep(step)
	req := httpplugin.Request{
		Method:      step.Method,
		URL:         resolved.URL,
		Headers:     map[string]string{},
		QueryParams: map[string]string{},
		Body:        resolved.Body,
		Timeout:     step.TimeoutDuration(),
		Retries:     step.RetryCount,
	}

	if step.AuthRequired != "" && r.auth != nil {
		maps.Copy(req.Headers, r.auth.Headers(step.AuthRequired))
	}
	maps.Copy(req.Headers, resolved.Headers)

	for target, value := range resolved.Mappings {
		switch {
		case strings.HasPrefix(target, "headers."):
			req.Headers[strings.TrimPrefix(target, "headers.")] = workflow.Text(value)
		case strings.HasPrefix(target, "query."):
			req.QueryParams[strings.TrimPrefix(target, "query.")] = workflow.Text(value)
		case strings.HasPrefix(target, "path."):
			placeholder := "{" + strings.TrimPrefix(target, "path.") + "}"
			req.URL = strings.ReplaceAll(req.URL, placeholder, url.PathEscape(workflow.Text(value)))
		default:
			body, err := setBodyField(req.Body, strings.TrimPrefix(target, "body."), value)
			if err != nil {
				l.Warn("Data mapping skipped", "step", step.ID, "target", target, "error", err)
				continue
			}
			req.Body = body
		}
	}

	if r.cfg.BaseURL != "" && strings.HasPrefix(req.URL, "/") {
		req.URL = strings.TrimRight(r.cfg.BaseURL, "/") + req.URL
	}
	return req
}

// setBodyField writes value at a dotted path inside an object body, creating the body
// and intermediate objects as needed.
func setBodyField(body any, path string, value any) (any, error) {
	if body == nil {
		body = map[string]any{}
	}
	obj, ok := body.(map[string]any)
	if !ok {
		return body, errBodyNotObject
	}
	if _, err := gabs.Wrap(obj).SetP(value, path); err != nil {
		return body, fmt.Errorf("setting %s: %w", path, err)
	}
	return obj, nil
}

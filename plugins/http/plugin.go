package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// Config holds the executor configuration with declarative tags
type Config struct {
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout" default:"30s" validate:"gte=1ms"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
	Debug       bool          `mapstructure:"debug" yaml:"debug" default:"false"`
	RetryWaitMS int           `mapstructure:"retry_wait_ms" yaml:"retry_wait_ms" default:"100" validate:"gte=0,lte=10000"`
}

// Request is one HTTP call built from a resolved test step
type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams map[string]string
	Body        any

	// Timeout overrides Config.Timeout when positive
	Timeout time.Duration
	// Retries overrides Config.MaxRetries when non-negative; use -1 for the default
	Retries int
}

// Response is the observed outcome of a Request
type Response struct {
	Status     string
	StatusCode int
	IsError    bool
	Headers    map[string]string
	// Body is the decoded JSON body, the raw text when it is not JSON, or nil when empty
	Body     any
	Duration time.Duration
	Attempts int
}

// Executor performs step HTTP calls
type Executor struct {
	l      *slog.Logger
	config Config
	client *resty.Client
}

func NewExecutor(l *slog.Logger, config Config) *Executor {
	if l == nil {
		l = slog.Default()
	}

	// Timeouts and retries are applied per request
	client := resty.New().
		SetRetryCount(0).
		SetDebug(config.Debug)

	return &Executor{l: l, config: config, client: client}
}

// Client exposes the underlying resty client for collaborators sharing the transport.
func (e *Executor) Client() *resty.Client {
	return e.client
}

// Execute sends the request, retrying transport failures and retryable statuses.
func (e *Executor) Execute(ctx context.Context, req Request) (Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = resty.MethodGet
	}

	timeout := e.config.Timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	retries := e.config.MaxRetries
	if req.Retries >= 0 {
		retries = req.Retries
	}

	start := time.Now()
	var (
		resp *resty.Response
		err  error
	)
	attempt := 0
	for {
		attempt++
		resp, err = e.send(ctx, method, req, timeout)
		if !shouldRetry(resp, err) || attempt > retries || ctx.Err() != nil {
			break
		}

		delay := time.Duration(e.config.RetryWaitMS*attempt) * time.Millisecond
		e.l.InfoContext(ctx, fmt.Sprintf("[%d/%d] Retrying request: %s %s", attempt, retries, method, req.URL),
			"status_code", statusCode(resp),
			"error", err,
			"delay", delay)

		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}

	if err != nil {
		return Response{Duration: time.Since(start), Attempts: attempt}, fmt.Errorf("HTTP request failed: %w", err)
	}

	output := Response{
		Status:     resp.Status(),
		StatusCode: resp.StatusCode(),
		IsError:    resp.IsError(),
		Headers:    flattenHeaders(resp),
		Body:       decodeBody(resp.Body()),
		Duration:   time.Since(start),
		Attempts:   attempt,
	}

	return output, nil
}

func (e *Executor) send(ctx context.Context, method string, req Request, timeout time.Duration) (*resty.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := e.client.R().
		SetContext(ctx).
		SetHeaders(req.Headers).
		SetQueryParams(req.QueryParams)

	if req.Body != nil {
		if body, ok := req.Body.(map[string]any); ok && isFormEncoded(req.Headers) {
			r.SetFormData(flattenToFormData(body, ""))
		} else {
			r.SetBody(req.Body)
		}
	}

	return r.Execute(method, req.URL)
}

func shouldRetry(resp *resty.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	code := resp.StatusCode()
	return code == 429 || code == 502 || code == 503 || code == 504
}

func statusCode(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}

func isFormEncoded(headers map[string]string) bool {
	for k, v := range headers {
		if strings.EqualFold(k, "Content-Type") && strings.HasPrefix(strings.ToLower(v), "application/x-www-form-urlencoded") {
			return true
		}
	}
	return false
}

func flattenHeaders(resp *resty.Response) map[string]string {
	out := make(map[string]string, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func decodeBody(raw []byte) any {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return string(raw)
	}
	return body
}

// flattenToFormData converts a nested body into bracket-notation form fields,
// e.g. {"metadata": {"id": 1}} becomes metadata[id]=1.
func flattenToFormData(data map[string]any, prefix string) map[string]string {
	result := make(map[string]string)

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "[" + k + "]"
		}
		flattenFormValue(result, key, data[k])
	}
	return result
}

func flattenFormValue(result map[string]string, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for nk, nv := range flattenToFormData(v, key) {
			result[nk] = nv
		}
	case []any:
		for i, item := range v {
			flattenFormValue(result, key+"["+strconv.Itoa(i)+"]", item)
		}
	case nil:
		result[key] = ""
	case string:
		result[key] = v
	case float64:
		result[key] = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		result[key] = fmt.Sprintf("%v", v)
	}
}

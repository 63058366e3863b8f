// Package runner executes a workflow end to end: plan, gate, resolve, dispatch, record.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/BDNK1/apiflow/cli/internal/validation"
	"github.com/BDNK1/apiflow/plugins/auth"
	httpplugin "github.com/BDNK1/apiflow/plugins/http"
	"github.com/BDNK1/apiflow/workflow"
)

const tracerName = "github.com/BDNK1/apiflow/runner"

// Executor performs the HTTP call of one step.
type Executor interface {
	Execute(ctx context.Context, req httpplugin.Request) (httpplugin.Response, error)
}

// Authenticator establishes auth profile sessions and supplies their headers.
type Authenticator interface {
	workflow.AuthChecker
	Authenticate(ctx context.Context, name string) (auth.Session, error)
	Headers(name string) map[string]string
}

// Config controls a run.
type Config struct {
	// BaseURL is prefixed to step URLs that start with "/"
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Concurrency bounds the number of steps in flight
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency" default:"4" validate:"gte=1,lte=64"`
}

// Runner drives workflow runs. It is safe for concurrent use; each run gets its own engine.
type Runner struct {
	l         *slog.Logger
	cfg       Config
	executor  Executor
	auth      Authenticator
	validator *validation.Validator
	tracer    trace.Tracer
}

type Option func(*Runner)

// WithAuthenticator enables auth profiles.
func WithAuthenticator(a Authenticator) Option {
	return func(r *Runner) { r.auth = a }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

func New(l *slog.Logger, cfg Config, executor Executor, opts ...Option) *Runner {
	if l == nil {
		l = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	r := &Runner{
		l:         l,
		cfg:       cfg,
		executor:  executor,
		validator: validation.NewValidator(l),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the workflow, optionally scoped to start steps and their descendants.
// Configuration and ordering errors are returned before anything is dispatched. Step
// failures are recorded on the returned engine, never returned. A cancelled context
// stops dispatch and is returned alongside the partially filled engine.
func (r *Runner) Run(ctx context.Context, wf *workflow.Workflow, start ...string) (*workflow.Engine, error) {
	engineOpts := []workflow.Option{workflow.WithLogger(r.l)}
	if r.auth != nil {
		engineOpts = append(engineOpts, workflow.WithAuth(r.auth))
	}
	engine, err := workflow.NewEngine(wf, engineOpts...)
	if err != nil {
		return nil, err
	}

	order, err := engine.Order(start...)
	if err != nil {
		return engine, err
	}

	ctx, span := r.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run.id", engine.RunID()),
		attribute.Int("run.steps", len(order)),
	))
	defer span.End()

	l := r.l.With("run_id", engine.RunID())
	l.Info("Starting workflow run", "steps", len(order), "concurrency", r.cfg.Concurrency)

	r.authenticate(ctx, l, engine, order)

	err = r.dispatch(ctx, l, engine, order)

	st := engine.StatusOf(order)
	span.SetAttributes(
		attribute.Int("run.successful", st.Successful),
		attribute.Int("run.failed", st.Failed),
		attribute.Bool("run.success", st.OverallSuccess),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if !st.OverallSuccess {
		span.SetStatus(codes.Error, "workflow failed")
	}

	l.Info("Workflow run finished",
		"executed", st.Executed,
		"successful", st.Successful,
		"failed", st.Failed,
		"pending", st.Pending)

	return engine, err
}

// authenticate logs in every profile the planned steps require. Failures are logged;
// the affected steps are gated by their precondition check.
func (r *Runner) authenticate(ctx context.Context, l *slog.Logger, engine *workflow.Engine, order []string) {
	if r.auth == nil {
		return
	}

	profiles := map[string]bool{}
	for _, id := range order {
		if step, ok := engine.Step(id); ok && step.AuthRequired != "" {
			profiles[step.AuthRequired] = true
		}
	}

	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := r.auth.Authenticate(ctx, name); err != nil {
			l.Warn("Auth profile unavailable", "profile", name, "error", err)
		}
	}
}

// dispatch runs the planned steps with bounded concurrency. A step starts once every
// in-plan dependency has finished; its preconditions are checked right before dispatch.
func (r *Runner) dispatch(ctx context.Context, l *slog.Logger, engine *workflow.Engine, order []string) error {
	done := make(map[string]chan struct{}, len(order))
	for _, id := range order {
		done[id] = make(chan struct{})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, id := range order {
		step, _ := engine.Step(id)
		finished := done[id]

		// Launching in execution order keeps every waited-on step ahead of its waiter,
		// so the limit cannot deadlock.
		g.Go(func() error {
			defer close(finished)

			for _, dep := range step.Dependencies {
				ch, inPlan := done[dep]
				if !inPlan {
					continue
				}
				select {
				case <-ch:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			r.runStep(gctx, l, engine, step)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("workflow run interrupted: %w", err)
	}
	return nil
}

func (r *Runner) runStep(ctx context.Context, l *slog.Logger, engine *workflow.Engine, step workflow.TestStep) {
	ctx, span := r.tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("step.dependency_type", string(step.DependencyType)),
		attribute.String("http.request.method", step.Method),
	))
	defer span.End()

	if ok, reasons := engine.Check(step); !ok {
		if _, err := engine.RecordPreconditionFailure(step, reasons); err != nil {
			l.Error("Failed to record step result", "step", step.ID, "error", err)
		}
		span.SetStatus(codes.Error, "preconditions not satisfied")
		return
	}

	req := r.buildRequest(l, engine, step)
	l.Info("Dispatching step", "step", step.ID, "method", req.Method, "url", req.URL)

	result := workflow.WorkflowResult{StepID: step.ID}
	resp, err := r.executor.Execute(ctx, req)
	result.ResponseTime = resp.Duration

	if err != nil {
		result.ErrorMessage = err.Error()
		span.RecordError(err)
	} else {
		result.StatusCode = resp.StatusCode
		result.ResponseData = resp.Body
		result.ErrorMessage = strings.Join(r.verify(engine, step, resp), "; ")
		result.Success = result.ErrorMessage == ""
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}

	stored, err := engine.UpdateExecutionResult(result)
	if err != nil {
		l.Error("Failed to record step result", "step", step.ID, "error", err)
		return
	}

	if stored.Success {
		if failed := engine.CheckPostconditions(step); len(failed) > 0 {
			stored.Success = false
			stored.ErrorMessage = "postcondition not satisfied: " + strings.Join(failed, "; ")
			if _, err := engine.UpdateExecutionResult(stored); err != nil {
				l.Error("Failed to record step result", "step", step.ID, "error", err)
			}
		}
	}

	if stored.Success {
		l.Info("Step succeeded", "step", step.ID, "status_code", stored.StatusCode, "duration", stored.ResponseTime)
	} else {
		span.SetStatus(codes.Error, stored.ErrorMessage)
		l.Warn("Step failed", "step", step.ID, "status_code", stored.StatusCode, "error", stored.ErrorMessage)
	}
}

// verify checks the expected status and every declared validation.
func (r *Runner) verify(engine *workflow.Engine, step workflow.TestStep, resp httpplugin.Response) []string {
	var failures []string
	if step.ExpectedStatus != 0 && resp.StatusCode != step.ExpectedStatus {
		failures = append(failures, fmt.Sprintf("expected status %d, got %d", step.ExpectedStatus, resp.StatusCode))
	}

	if len(step.Validations) == 0 {
		return failures
	}
	rules, err := validation.ParseRules(step.Validations)
	if err != nil {
		return append(failures, err.Error())
	}
	return append(failures, r.validator.Validate(rules, validation.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Headers,
		Body:       resp.Body,
	}, engine.Store().GlobalData())...)
}

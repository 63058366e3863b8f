package workflow

import (
	"fmt"
	"log/slog"
)

// Engine owns the graph and result store of one workflow run and wires the checker and
// resolver to them. It performs no I/O; callers execute steps and report results back.
type Engine struct {
	l        *slog.Logger
	graph    *Graph
	store    *Store
	checker  *Checker
	resolver *Resolver
	warnings []Warning
}

type Option func(*engineOptions)

type engineOptions struct {
	logger *slog.Logger
	auth   AuthChecker
}

// WithLogger sets the logger used for warnings and extraction diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithAuth sets the provider consulted for steps that require an auth profile.
func WithAuth(auth AuthChecker) Option {
	return func(o *engineOptions) { o.auth = auth }
}

// NewEngine builds the graph for wf and prepares an empty run. Configuration errors are
// returned; warnings are logged and kept on the engine.
func NewEngine(wf *Workflow, opts ...Option) (*Engine, error) {
	o := engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	g, err := BuildGraph(wf.Steps)
	if err != nil {
		return nil, err
	}

	store := NewStore(o.logger, g, wf.Variables)
	e := &Engine{
		l:        o.logger.With("run_id", store.RunID()),
		graph:    g,
		store:    store,
		checker:  NewChecker(g, store, o.auth),
		resolver: NewResolver(store),
	}

	e.warnings = append(g.Warnings(), CheckReferences(g)...)
	for _, w := range e.warnings {
		e.l.Warn("Workflow definition warning",
			"type", w.Type.String(),
			"step", w.StepID,
			"target", w.Target,
			"message", w.Message)
	}

	return e, nil
}

func (e *Engine) RunID() string       { return e.store.RunID() }
func (e *Engine) Graph() *Graph       { return e.graph }
func (e *Engine) Store() *Store       { return e.store }
func (e *Engine) Warnings() []Warning { return e.warnings }

// Order returns the execution order, optionally scoped to start steps and their
// descendants.
func (e *Engine) Order(start ...string) ([]string, error) {
	return e.graph.Order(start...)
}

// Step returns a declared step.
func (e *Engine) Step(id string) (TestStep, bool) {
	return e.graph.Step(id)
}

// Check gates a step. See Checker.Check.
func (e *Engine) Check(step TestStep) (bool, []string) {
	return e.checker.Check(step)
}

// CheckPostconditions returns the postconditions of step that do not hold.
func (e *Engine) CheckPostconditions(step TestStep) []string {
	return e.checker.CheckPostconditions(step)
}

func (e *Engine) Resolve(expression string) any {
	return e.resolver.Resolve(expression)
}

func (e *Engine) Interpolate(s string) string {
	return e.resolver.Interpolate(s)
}

func (e *Engine) ResolveValue(v any) any {
	return e.resolver.ResolveValue(v)
}

func (e *Engine) ResolveMappings(step TestStep) map[string]any {
	return e.resolver.ResolveMappings(step)
}

func (e *Engine) ResolveStep(step TestStep) ResolvedStep {
	return e.resolver.ResolveStep(step)
}

// UpdateExecutionResult records a step result and returns it with extracted data.
func (e *Engine) UpdateExecutionResult(result WorkflowResult) (WorkflowResult, error) {
	stored, err := e.store.Update(result)
	if err != nil {
		return stored, err
	}
	e.l.Debug("Step result recorded",
		"step", stored.StepID,
		"success", stored.Success,
		"status_code", stored.StatusCode,
		"extracted", len(stored.ExtractedData))
	return stored, nil
}

// RecordPreconditionFailure stores a failed result for a step that could not be dispatched.
func (e *Engine) RecordPreconditionFailure(step TestStep, reasons []string) (WorkflowResult, error) {
	pe := &PreconditionError{StepID: step.ID, Reasons: reasons}
	e.l.Warn("Step skipped", "step", step.ID, "reasons", reasons)
	stored, err := e.store.Update(WorkflowResult{
		StepID:       step.ID,
		Success:      false,
		ErrorMessage: pe.Error(),
	})
	if err != nil {
		return stored, fmt.Errorf("recording precondition failure: %w", err)
	}
	return stored, nil
}

func (e *Engine) Status() Status {
	return e.store.Status()
}

// StatusOf aggregates over a subset of steps, such as the order of a scoped run.
func (e *Engine) StatusOf(ids []string) Status {
	return e.store.StatusOf(ids)
}

func (e *Engine) Report() string {
	return e.store.Report()
}

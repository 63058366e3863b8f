package workflow

import "fmt"

// AuthChecker reports whether an auth profile currently holds a valid session.
type AuthChecker interface {
	IsAuthenticated(profile string) bool
}

// Checker decides whether a step may run given the current store contents.
type Checker struct {
	graph *Graph
	store *Store
	auth  AuthChecker
}

// NewChecker creates a checker. auth may be nil, in which case every step that
// requires an auth profile is gated.
func NewChecker(g *Graph, store *Store, auth AuthChecker) *Checker {
	return &Checker{graph: g, store: store, auth: auth}
}

// Check evaluates every gating rule for the step and collects all failure reasons.
// The step may run only when the reason list is empty.
func (c *Checker) Check(step TestStep) (bool, []string) {
	var reasons []string

	preconditions := c.graph.Preconditions(step.ID)
	if !c.graph.Has(step.ID) {
		// Steps built outside the graph still get their conditions evaluated
		compiled, err := compilePredicates(step.ID, step.Preconditions)
		if err != nil {
			return false, []string{err.Error()}
		}
		preconditions = compiled
	}

	// Auth providers may block on their own state, so ask before taking the store lock
	authenticated := step.AuthRequired == "" || (c.auth != nil && c.auth.IsAuthenticated(step.AuthRequired))

	c.store.read(func(results map[string]WorkflowResult, global map[string]any) {
		for _, dep := range step.Dependencies {
			r, ok := results[dep]
			switch {
			case !ok:
				reasons = append(reasons, fmt.Sprintf("dependency not yet executed: %s", dep))
			case !r.Success:
				reasons = append(reasons, fmt.Sprintf("dependency failed: %s", dep))
			}
		}

		if !authenticated {
			reasons = append(reasons, fmt.Sprintf("auth profile not authenticated: %s", step.AuthRequired))
		}

		lookup := globalLookup(global)
		for _, p := range preconditions {
			if !p.Eval(lookup) {
				reasons = append(reasons, fmt.Sprintf("precondition not satisfied: %s", p))
			}
		}
	})

	return len(reasons) == 0, reasons
}

// CheckPostconditions evaluates a step's postconditions against the current global data
// and returns the expressions that do not hold.
func (c *Checker) CheckPostconditions(step TestStep) []string {
	var failed []string
	c.store.read(func(_ map[string]WorkflowResult, global map[string]any) {
		lookup := globalLookup(global)
		for _, p := range c.graph.Postconditions(step.ID) {
			if !p.Eval(lookup) {
				failed = append(failed, p.String())
			}
		}
	})
	return failed
}

func globalLookup(global map[string]any) Lookup {
	return func(name string) (any, bool) {
		v, ok := global[name]
		return v, ok
	}
}

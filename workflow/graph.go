package workflow

import (
	"fmt"
)

// Graph is the dependency graph of a workflow. Edges point from a dependency to its
// dependent. A Graph is never mutated after BuildGraph returns it.
type Graph struct {
	// steps in declaration order; node indices refer to this slice
	steps []TestStep

	// index maps step ID to its declaration index
	index map[string]int

	// successors maps a node to the nodes that depend on it
	successors [][]int

	// predecessors maps a node to the nodes it depends on (known dependencies only)
	predecessors [][]int

	preconditions  map[string][]Predicate
	postconditions map[string][]Predicate

	warnings []Warning
}

// BuildGraph constructs the dependency graph from declared steps.
func BuildGraph(steps []TestStep) (*Graph, error) {
	g := &Graph{
		steps:          make([]TestStep, 0, len(steps)),
		index:          make(map[string]int, len(steps)),
		successors:     make([][]int, len(steps)),
		predecessors:   make([][]int, len(steps)),
		preconditions:  make(map[string][]Predicate, len(steps)),
		postconditions: make(map[string][]Predicate, len(steps)),
	}

	// First pass: register all nodes
	for _, step := range steps {
		if step.ID == "" {
			return nil, &ConfigError{Kind: ErrorMissingID, Message: "step without id"}
		}
		if _, exists := g.index[step.ID]; exists {
			return nil, &ConfigError{
				Kind:    ErrorDuplicateStep,
				StepID:  step.ID,
				Message: fmt.Sprintf("duplicate step id %q", step.ID),
			}
		}
		g.index[step.ID] = len(g.steps)
		g.steps = append(g.steps, step)

		pre, err := compilePredicates(step.ID, step.Preconditions)
		if err != nil {
			return nil, err
		}
		post, err := compilePredicates(step.ID, step.Postconditions)
		if err != nil {
			return nil, err
		}
		g.preconditions[step.ID] = pre
		g.postconditions[step.ID] = post
	}

	// Second pass: build edges
	for i, step := range g.steps {
		seen := make(map[int]bool, len(step.Dependencies))
		for _, dep := range step.Dependencies {
			j, exists := g.index[dep]
			if !exists {
				g.warnings = append(g.warnings, Warning{
					Type:    WarningUnresolvedDependency,
					StepID:  step.ID,
					Target:  dep,
					Message: fmt.Sprintf("step %q depends on undeclared step %q", step.ID, dep),
				})
				continue
			}
			if seen[j] {
				continue
			}
			seen[j] = true

			// Add edge: dependency -> step
			g.successors[j] = append(g.successors[j], i)
			g.predecessors[i] = append(g.predecessors[i], j)
		}
	}

	return g, nil
}

// Steps returns the declared steps in declaration order.
func (g *Graph) Steps() []TestStep {
	out := make([]TestStep, len(g.steps))
	copy(out, g.steps)
	return out
}

// Step returns the declared step with the given ID.
func (g *Graph) Step(id string) (TestStep, bool) {
	i, ok := g.index[id]
	if !ok {
		return TestStep{}, false
	}
	return g.steps[i], true
}

// Has reports whether id is a declared step.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Len returns the number of declared steps.
func (g *Graph) Len() int {
	return len(g.steps)
}

// Warnings returns the non-fatal findings collected while building.
func (g *Graph) Warnings() []Warning {
	out := make([]Warning, len(g.warnings))
	copy(out, g.warnings)
	return out
}

// Dependencies returns the known dependencies of a step.
func (g *Graph) Dependencies(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.predecessors[i])
}

// Dependents returns the steps that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	return g.ids(g.successors[i])
}

// Descendants returns every step that transitively depends on id, in declaration order.
func (g *Graph) Descendants(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	reached := g.reach(i, g.successors)
	delete(reached, i)
	return g.sortedIDs(reached)
}

// Ancestors returns every step that id transitively depends on, in declaration order.
func (g *Graph) Ancestors(id string) []string {
	i, ok := g.index[id]
	if !ok {
		return nil
	}
	reached := g.reach(i, g.predecessors)
	delete(reached, i)
	return g.sortedIDs(reached)
}

// Preconditions returns the compiled preconditions of a step.
func (g *Graph) Preconditions(id string) []Predicate {
	return g.preconditions[id]
}

// Postconditions returns the compiled postconditions of a step.
func (g *Graph) Postconditions(id string) []Predicate {
	return g.postconditions[id]
}

// reach returns every node reachable from start following adj, start included.
func (g *Graph) reach(start int, adj [][]int) map[int]bool {
	visited := map[int]bool{start: true}
	stack := []int{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range adj[n] {
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return visited
}

func (g *Graph) ids(nodes []int) []string {
	out := make([]string, len(nodes))
	for k, n := range nodes {
		out[k] = g.steps[n].ID
	}
	return out
}

func (g *Graph) sortedIDs(set map[int]bool) []string {
	out := make([]string, 0, len(set))
	for i := range g.steps {
		if set[i] {
			out = append(out, g.steps[i].ID)
		}
	}
	return out
}

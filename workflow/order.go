package workflow

import (
	"fmt"
	"slices"
	"sort"
)

// Order returns the step IDs in dependency order (dependencies first).
//
// With start steps, only the start steps and everything that transitively depends on
// them are ordered. Among steps that are ready at the same time, declaration order
// wins, so repeated calls always return the same list.
//
// A cycle in the ordered subgraph fails with a *CycleError listing every simple cycle.
func (g *Graph) Order(start ...string) ([]string, error) {
	include, size, err := g.scope(start)
	if err != nil {
		return nil, err
	}

	// Calculate in-degrees inside the subgraph
	inDegree := make([]int, len(g.steps))
	for n := range g.steps {
		if !include[n] {
			continue
		}
		for _, p := range g.predecessors[n] {
			if include[p] {
				inDegree[n]++
			}
		}
	}

	// Ready set, kept sorted by declaration index
	ready := make([]int, 0, size)
	for n := range g.steps {
		if include[n] && inDegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	result := make([]string, 0, size)
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		result = append(result, g.steps[current].ID)

		for _, dependent := range g.successors[current] {
			if !include[dependent] {
				continue
			}
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				pos := sort.SearchInts(ready, dependent)
				ready = slices.Insert(ready, pos, dependent)
			}
		}
	}

	// If not all nodes processed, there's a cycle
	if len(result) != size {
		return nil, &CycleError{Cycles: g.simpleCycles(include)}
	}

	return result, nil
}

// Cycles returns every simple cycle in the whole graph.
func (g *Graph) Cycles() [][]string {
	include := make([]bool, len(g.steps))
	for i := range include {
		include[i] = true
	}
	return g.simpleCycles(include)
}

// scope marks the nodes taking part in an ordering call.
func (g *Graph) scope(start []string) ([]bool, int, error) {
	include := make([]bool, len(g.steps))
	if len(start) == 0 {
		for i := range include {
			include[i] = true
		}
		return include, len(g.steps), nil
	}

	size := 0
	for _, id := range start {
		i, ok := g.index[id]
		if !ok {
			return nil, 0, fmt.Errorf("start step %q: %w", id, ErrUnknownStep)
		}
		for n := range g.reach(i, g.successors) {
			if !include[n] {
				include[n] = true
				size++
			}
		}
	}
	return include, size, nil
}

// simpleCycles enumerates the elementary cycles of the subgraph. Each cycle is rooted at
// its earliest-declared node and follows edge direction, so a cycle is reported once.
func (g *Graph) simpleCycles(include []bool) [][]string {
	var cycles [][]string

	for root := range g.steps {
		if !include[root] {
			continue
		}

		onPath := make([]bool, len(g.steps))
		path := []int{root}
		onPath[root] = true

		var dfs func(node int)
		dfs = func(node int) {
			for _, next := range g.successors[node] {
				if !include[next] || next < root {
					continue
				}
				if next == root {
					cycles = append(cycles, g.ids(path))
					continue
				}
				if onPath[next] {
					continue
				}
				onPath[next] = true
				path = append(path, next)
				dfs(next)
				path = path[:len(path)-1]
				onPath[next] = false
			}
		}
		dfs(root)
	}

	return cycles
}

package workflow

import (
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// autoExtractFields are copied out of every successful top-level response object.
var autoExtractFields = []string{"id", "token", "access_token", "user_id", "order_id"}

// Store records step results and owns the global data of one workflow run.
// It is the only structure shared between concurrently executing steps; Update is
// atomic with respect to every reader.
type Store struct {
	l     *slog.Logger
	graph *Graph
	runID string

	mu      sync.RWMutex
	results map[string]WorkflowResult
	global  map[string]any

	// publishers remembers which step last published an unscoped alias
	publishers map[string]string
	// writes holds, per step, the global keys its current extraction set
	writes map[string][]globalWrite
}

// globalWrite remembers what a global key held before a step's extraction set it.
type globalWrite struct {
	key       string
	prev      any
	existed   bool
	published bool
	prevOwner string
}

// NewStore creates an empty store seeded with the workflow's global variables.
func NewStore(l *slog.Logger, g *Graph, variables map[string]any) *Store {
	if l == nil {
		l = slog.Default()
	}
	global := make(map[string]any, len(variables))
	maps.Copy(global, variables)

	return &Store{
		l:          l,
		graph:      g,
		runID:      uuid.New().String(),
		results:    make(map[string]WorkflowResult, g.Len()),
		global:     global,
		publishers: make(map[string]string),
		writes:     make(map[string][]globalWrite),
	}
}

// RunID identifies this run.
func (s *Store) RunID() string {
	return s.runID
}

// Graph returns the graph the store accounts against.
func (s *Store) Graph() *Graph {
	return s.graph
}

// Update records a step result, replacing any earlier result for the same step.
// Global keys written by the replaced result's extraction are restored first, so a
// step whose result turns into a failure leaves no extracted data behind. For a
// successful result with a body, response extraction then runs and the returned
// result carries the extracted data.
func (s *Store) Update(result WorkflowResult) (WorkflowResult, error) {
	step, ok := s.graph.Step(result.StepID)
	if !ok {
		return result, fmt.Errorf("recording result for %q: %w", result.StepID, ErrUnknownStep)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rollback(result.StepID)
	if result.Success && result.ResponseData != nil {
		result.ExtractedData = s.extract(step, result.ResponseData)
	} else {
		result.ExtractedData = nil
	}

	s.results[result.StepID] = result
	return cloneResult(result), nil
}

// extract applies auto-extraction and the step's extract rules. Caller holds s.mu.
func (s *Store) extract(step TestStep, data any) map[string]any {
	extracted := make(map[string]any)

	if body, ok := data.(map[string]any); ok {
		for _, field := range autoExtractFields {
			if v, exists := body[field]; exists {
				extracted[field] = v
				s.setGlobal(step.ID, fmt.Sprintf("%s_%s", step.ID, field), v)
			}
		}
	}

	for _, alias := range sortedKeys(step.Parameters.Extract) {
		v := lookupPath(data, step.Parameters.Extract[alias])
		if v == nil {
			s.l.Debug("Extraction path resolved to nothing",
				"step", step.ID,
				"alias", alias,
				"path", step.Parameters.Extract[alias])
			continue
		}
		extracted[alias] = v
		s.setGlobal(step.ID, step.ID+"."+alias, v)

		if !step.Parameters.Published(alias) {
			continue
		}
		if prev, exists := s.publishers[alias]; exists && prev != step.ID {
			s.l.Warn("Published alias overwritten by another step",
				"alias", alias,
				"previous_step", prev,
				"step", step.ID)
		}
		s.publish(step.ID, alias, v)
	}

	return extracted
}

// setGlobal writes a step-owned key and remembers its previous value. Caller holds s.mu.
func (s *Store) setGlobal(stepID, key string, v any) {
	prev, existed := s.global[key]
	s.writes[stepID] = append(s.writes[stepID], globalWrite{key: key, prev: prev, existed: existed})
	s.global[key] = v
}

// publish writes an unscoped alias shared between steps. Caller holds s.mu.
func (s *Store) publish(stepID, alias string, v any) {
	prev, existed := s.global[alias]
	s.writes[stepID] = append(s.writes[stepID], globalWrite{
		key:       alias,
		prev:      prev,
		existed:   existed,
		published: true,
		prevOwner: s.publishers[alias],
	})
	s.publishers[alias] = stepID
	s.global[alias] = v
}

// rollback undoes the global writes of a step's current extraction, newest first.
// An unscoped alias another step has since published keeps its value; the later
// publisher inherits what this step had overwritten. Caller holds s.mu.
func (s *Store) rollback(stepID string) {
	writes := s.writes[stepID]
	for i := len(writes) - 1; i >= 0; i-- {
		w := writes[i]
		if w.published {
			if s.publishers[w.key] != stepID {
				s.unlinkPublisher(stepID, w)
				continue
			}
			if w.prevOwner == "" {
				delete(s.publishers, w.key)
			} else {
				s.publishers[w.key] = w.prevOwner
			}
		}
		if w.existed {
			s.global[w.key] = w.prev
		} else {
			delete(s.global, w.key)
		}
	}
	delete(s.writes, stepID)
}

// unlinkPublisher hands w's previous value to the step that published the same alias
// right after stepID. Caller holds s.mu.
func (s *Store) unlinkPublisher(stepID string, w globalWrite) {
	for _, writes := range s.writes {
		for i := range writes {
			next := &writes[i]
			if next.published && next.key == w.key && next.prevOwner == stepID {
				next.prev, next.existed, next.prevOwner = w.prev, w.existed, w.prevOwner
				return
			}
		}
	}
}

// Result returns the recorded result for a step.
func (s *Store) Result(id string) (WorkflowResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return WorkflowResult{}, false
	}
	return cloneResult(r), true
}

// Results returns every recorded result in declaration order.
func (s *Store) Results() []WorkflowResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]WorkflowResult, 0, len(s.results))
	for _, step := range s.graph.steps {
		if r, ok := s.results[step.ID]; ok {
			out = append(out, cloneResult(r))
		}
	}
	return out
}

// Global reads one global variable.
func (s *Store) Global(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.global[name]
	return v, ok
}

// GlobalData returns a snapshot of the global variables.
func (s *Store) GlobalData() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.global)
}

// read runs fn while holding the read lock.
func (s *Store) read(fn func(results map[string]WorkflowResult, global map[string]any)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.results, s.global)
}

func cloneResult(r WorkflowResult) WorkflowResult {
	if r.ExtractedData != nil {
		r.ExtractedData = maps.Clone(r.ExtractedData)
	}
	return r
}

package server

import (
	"sync"
	"time"

	"github.com/BDNK1/apiflow/workflow"
)

// DefaultMaxRuns bounds how many finished runs are kept in memory.
const DefaultMaxRuns = 100

// Entry is one stored run.
type Entry struct {
	Name      string
	Engine    *workflow.Engine
	Err       error
	CreatedAt time.Time
}

// Registry keeps the most recent runs, oldest evicted first.
type Registry struct {
	mu      sync.RWMutex
	max     int
	order   []string
	entries map[string]Entry
}

func NewRegistry(max int) *Registry {
	if max < 1 {
		max = DefaultMaxRuns
	}
	return &Registry{max: max, entries: make(map[string]Entry)}
}

func (r *Registry) Add(name string, engine *workflow.Engine, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := engine.RunID()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = Entry{Name: name, Engine: engine, Err: err, CreatedAt: time.Now()}

	for len(r.order) > r.max {
		delete(r.entries, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// List returns runs newest first.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.entries[r.order[i]])
	}
	return out
}

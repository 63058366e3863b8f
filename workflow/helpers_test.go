package workflow

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func step(id string, deps ...string) TestStep {
	return TestStep{ID: id, Method: "GET", Dependencies: deps, DependencyType: DependencySequence, ExpectedStatus: 200}
}

func mustGraph(t *testing.T, steps ...TestStep) *Graph {
	t.Helper()
	g, err := BuildGraph(steps)
	require.NoError(t, err)
	return g
}

func newTestStore(t *testing.T, variables map[string]any, steps ...TestStep) *Store {
	t.Helper()
	return NewStore(discardLogger(), mustGraph(t, steps...), variables)
}

func indexOf(list []string, id string) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Aggregation(t *testing.T) {
	store := newTestStore(t, nil, step("a"), step("b"), step("c"), step("d"))

	for _, r := range []WorkflowResult{
		{StepID: "a", Success: true},
		{StepID: "b", Success: true},
		{StepID: "c", Success: false},
	} {
		_, err := store.Update(r)
		require.NoError(t, err)
	}

	st := store.Status()
	assert.Equal(t, Status{
		Total:          4,
		Executed:       3,
		Successful:     2,
		Failed:         1,
		Pending:        1,
		SuccessRate:    2.0 / 3.0,
		OverallSuccess: false,
	}, st)
}

func TestStatus_AllPassed(t *testing.T) {
	store := newTestStore(t, nil, step("a"), step("b", "a"))
	_, err := store.Update(WorkflowResult{StepID: "a", Success: true})
	require.NoError(t, err)

	assert.False(t, store.Status().OverallSuccess, "a pending step blocks overall success")

	_, err = store.Update(WorkflowResult{StepID: "b", Success: true})
	require.NoError(t, err)

	st := store.Status()
	assert.True(t, st.OverallSuccess)
	assert.Equal(t, 1.0, st.SuccessRate)
}

func TestStatus_NothingExecuted(t *testing.T) {
	st := newTestStore(t, nil, step("a")).Status()
	assert.Equal(t, 0.0, st.SuccessRate)
	assert.Equal(t, 1, st.Pending)
	assert.False(t, st.OverallSuccess)
}

func TestStatus_EmptyWorkflow(t *testing.T) {
	st := newTestStore(t, nil).Status()
	assert.Equal(t, 0, st.Total)
	assert.True(t, st.OverallSuccess)
}

func TestStatusOf_PlannedStepsOnly(t *testing.T) {
	store := newTestStore(t, nil, step("a"), step("b", "a"), step("c"))
	for _, id := range []string{"a", "b"} {
		_, err := store.Update(WorkflowResult{StepID: id, Success: true})
		require.NoError(t, err)
	}

	assert.False(t, store.Status().OverallSuccess)

	st := store.StatusOf([]string{"a", "b"})
	assert.Equal(t, Status{Total: 2, Executed: 2, Successful: 2, SuccessRate: 1, OverallSuccess: true}, st)

	st = store.StatusOf([]string{"a", "ghost"})
	assert.Equal(t, 1, st.Pending)
	assert.False(t, st.OverallSuccess)
}

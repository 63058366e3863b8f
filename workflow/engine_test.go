package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_LoginFlow(t *testing.T) {
	wf, err := Parse([]byte(sampleYAML), FormatYAML)
	require.NoError(t, err)

	e, err := NewEngine(wf, WithLogger(discardLogger()))
	require.NoError(t, err)
	assert.Empty(t, e.Warnings())

	order, err := e.Order()
	require.NoError(t, err)
	assert.Equal(t, []string{"login", "profile"}, order)

	profile, ok := e.Step("profile")
	require.True(t, ok)

	ok, reasons := e.Check(profile)
	assert.False(t, ok)
	assert.Contains(t, reasons, "dependency not yet executed: login")
	assert.Contains(t, reasons, "precondition not satisfied: ${token} != null")

	stored, err := e.UpdateExecutionResult(WorkflowResult{
		StepID:       "login",
		Success:      true,
		StatusCode:   200,
		ResponseData: map[string]any{"token": "abc123"},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", stored.ExtractedData["token"])

	ok, reasons = e.Check(profile)
	assert.True(t, ok, reasons)
	assert.Equal(t, "Bearer abc123", e.Interpolate(profile.Headers["Authorization"]))
	assert.Equal(t, "https://api.test/me", e.Interpolate(profile.URL))
	assert.Equal(t, "abc123", e.Resolve("@{login.extracted.token}"))
	assert.Equal(t, "abc123", e.Resolve("${token}"))

	st := e.Status()
	assert.Equal(t, 1, st.Executed)
	assert.Equal(t, 1, st.Pending)
}

func TestEngine_RecordPreconditionFailure(t *testing.T) {
	e, err := NewEngine(&Workflow{Steps: []TestStep{step("login"), step("profile", "login")}}, WithLogger(discardLogger()))
	require.NoError(t, err)

	profile, _ := e.Step("profile")
	_, reasons := e.Check(profile)
	stored, err := e.RecordPreconditionFailure(profile, reasons)
	require.NoError(t, err)

	assert.False(t, stored.Success)
	assert.Contains(t, stored.ErrorMessage, "dependency not yet executed: login")

	st := e.Status()
	assert.Equal(t, 1, st.Failed)
	assert.False(t, st.OverallSuccess)
}

func TestEngine_AuthOption(t *testing.T) {
	s := step("admin")
	s.AuthRequired = "root"
	e, err := NewEngine(&Workflow{Steps: []TestStep{s}}, WithLogger(discardLogger()), WithAuth(fakeAuth{"root": true}))
	require.NoError(t, err)

	ok, _ := e.Check(s)
	assert.True(t, ok)
}

func TestEngine_ConfigErrorsPropagate(t *testing.T) {
	_, err := NewEngine(&Workflow{Steps: []TestStep{step("a"), step("a")}})
	assert.Error(t, err)
}

func TestEngine_CollectsWarnings(t *testing.T) {
	s := step("b", "ghost")
	s.URL = "/x/@{a.response.id}"

	e, err := NewEngine(&Workflow{Steps: []TestStep{step("a"), s}}, WithLogger(discardLogger()))
	require.NoError(t, err)

	warnings := e.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, WarningUnresolvedDependency, warnings[0].Type)
	assert.Equal(t, WarningUndeclaredReference, warnings[1].Type)
}

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderResponse() Response {
	return Response{
		StatusCode: 201,
		Headers:    map[string]string{"Content-Type": "application/json", "X-Request-Id": "r-1"},
		Body: map[string]any{
			"id":     "o-1",
			"status": "pending",
			"total":  42.0,
			"note":   nil,
			"tags":   []any{"new", "priority"},
			"items":  []any{map[string]any{"sku": "A1", "qty": 2.0}},
		},
	}
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]map[string]any{
		{"type": "status", "expected": 201},
		{"type": "json_path", "path": "$.token"},
		{"type": "expr", "expression": "status < 300"},
	})
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, 201, rules[0].Expected)
	assert.Equal(t, CondExists, rules[1].Condition)
	assert.Equal(t, "status < 300", rules[2].Expression)
}

func TestParseRules_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
	}{
		{name: "missing type", raw: map[string]any{"expected": 200}},
		{name: "unknown type", raw: map[string]any{"type": "schema"}},
		{name: "json_path without path", raw: map[string]any{"type": "json_path"}},
		{name: "unknown condition", raw: map[string]any{"type": "json_path", "path": "$.a", "condition": "matches"}},
		{name: "expr without expression", raw: map[string]any{"type": "expr"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]map[string]any{tt.raw})
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		pass bool
	}{
		{name: "status match", rule: Rule{Type: TypeStatus, Expected: 201}, pass: true},
		{name: "status as string", rule: Rule{Type: TypeStatus, Expected: "201"}, pass: true},
		{name: "status mismatch", rule: Rule{Type: TypeStatus, Expected: 200}, pass: false},
		{name: "header present", rule: Rule{Type: TypeHeader, Name: "x-request-id"}, pass: true},
		{name: "header value", rule: Rule{Type: TypeHeader, Name: "Content-Type", Expected: "application/json"}, pass: true},
		{name: "header missing", rule: Rule{Type: TypeHeader, Name: "ETag"}, pass: false},
		{name: "path exists", rule: Rule{Type: TypeJSONPath, Path: "$.id", Condition: CondExists}, pass: true},
		{name: "null value exists", rule: Rule{Type: TypeJSONPath, Path: "$.note", Condition: CondExists}, pass: true},
		{name: "path missing", rule: Rule{Type: TypeJSONPath, Path: "$.user.id", Condition: CondExists}, pass: false},
		{name: "not null", rule: Rule{Type: TypeJSONPath, Path: "$.id", Condition: CondNotNull}, pass: true},
		{name: "not null on null", rule: Rule{Type: TypeJSONPath, Path: "$.note", Condition: CondNotNull}, pass: false},
		{name: "null on missing", rule: Rule{Type: TypeJSONPath, Path: "$.missing", Condition: CondNull}, pass: true},
		{name: "equals string", rule: Rule{Type: TypeJSONPath, Path: "$.status", Condition: CondEquals, Expected: "pending"}, pass: true},
		{name: "equals number", rule: Rule{Type: TypeJSONPath, Path: "$.total", Condition: CondEquals, Expected: 42}, pass: true},
		{name: "equals array index", rule: Rule{Type: TypeJSONPath, Path: "$.items[0].sku", Condition: CondEquals, Expected: "A1"}, pass: true},
		{name: "equals mismatch", rule: Rule{Type: TypeJSONPath, Path: "$.status", Condition: CondEquals, Expected: "done"}, pass: false},
		{name: "not equals", rule: Rule{Type: TypeJSONPath, Path: "$.status", Condition: CondNotEquals, Expected: "done"}, pass: true},
		{name: "contains list", rule: Rule{Type: TypeJSONPath, Path: "$.tags", Condition: CondContains, Expected: "priority"}, pass: true},
		{name: "contains string", rule: Rule{Type: TypeJSONPath, Path: "$.status", Condition: CondContains, Expected: "pend"}, pass: true},
		{name: "contains key", rule: Rule{Type: TypeJSONPath, Path: "$.items.0", Condition: CondContains, Expected: "qty"}, pass: true},
		{name: "contains miss", rule: Rule{Type: TypeJSONPath, Path: "$.tags", Condition: CondContains, Expected: "old"}, pass: false},
		{name: "whole body", rule: Rule{Type: TypeJSONPath, Path: "$", Condition: CondNotNull}, pass: true},
		{name: "expr on body", rule: Rule{Type: TypeExpr, Expression: `status == 201 && body.status == "pending"`}, pass: true},
		{name: "expr on list", rule: Rule{Type: TypeExpr, Expression: `len(body.items) == 1 && body.items[0].qty > 1`}, pass: true},
		{name: "expr on vars", rule: Rule{Type: TypeExpr, Expression: `vars.env == "staging"`}, pass: true},
		{name: "expr on headers", rule: Rule{Type: TypeExpr, Expression: `headers["X-Request-Id"] startsWith "r-"`}, pass: true},
		{name: "expr null", rule: Rule{Type: TypeExpr, Expression: `body.note == null`}, pass: true},
		{name: "expr false", rule: Rule{Type: TypeExpr, Expression: `status >= 400`}, pass: false},
		{name: "expr not boolean", rule: Rule{Type: TypeExpr, Expression: `body.id`}, pass: false},
		{name: "expr syntax error", rule: Rule{Type: TypeExpr, Expression: `status ==`}, pass: false},
	}

	v := NewValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			failures := v.Validate([]Rule{tt.rule}, orderResponse(), map[string]any{"env": "staging"})
			if tt.pass {
				assert.Empty(t, failures)
			} else {
				assert.Len(t, failures, 1)
			}
		})
	}
}

func TestValidate_CollectsEveryFailure(t *testing.T) {
	failures := NewValidator(nil).Validate([]Rule{
		{Type: TypeStatus, Expected: 200},
		{Type: TypeJSONPath, Path: "$.status", Condition: CondEquals, Expected: "pending"},
		{Type: TypeJSONPath, Path: "$.user", Condition: CondNotNull},
	}, orderResponse(), nil)

	assert.Equal(t, []string{
		"status: expected 200, got 201",
		"json_path $.user: expected a value, got null",
	}, failures)
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "items.0.id", normalizePath("$.items[0].id"))
	assert.Equal(t, "token", normalizePath("$.token"))
	assert.Equal(t, "a.b", normalizePath("a.b"))
	assert.Equal(t, "", normalizePath("$"))
}

func TestEvaluatorCachesPrograms(t *testing.T) {
	e := NewExpressionEvaluator()

	ok, err := e.EvalBool("status == 200", map[string]any{"status": 200})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.EvalBool("status == 200", map[string]any{"status": 500})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, e.programs, 1)

	ok, err = e.EvalBool(`base64_decode(base64_encode("x")) == "x"`, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

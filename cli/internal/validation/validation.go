// Package validation checks HTTP responses against the validation rules declared on a
// workflow step.
package validation

import (
	"fmt"
	"log/slog"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// Rule types
const (
	TypeStatus   = "status"
	TypeJSONPath = "json_path"
	TypeHeader   = "header"
	TypeExpr     = "expr"
)

// json_path conditions
const (
	CondExists    = "exists"
	CondNotNull   = "not_null"
	CondNull      = "null"
	CondEquals    = "equals"
	CondNotEquals = "not_equals"
	CondContains  = "contains"
)

var validate = validator.New()

// Rule is one declared response validation.
type Rule struct {
	Type       string `mapstructure:"type" validate:"required,oneof=status json_path header expr"`
	Expected   any    `mapstructure:"expected"`
	Path       string `mapstructure:"path" validate:"required_if=Type json_path"`
	Condition  string `mapstructure:"condition" default:"exists" validate:"oneof=exists not_null null equals not_equals contains"`
	Name       string `mapstructure:"name" validate:"required_if=Type header"`
	Expression string `mapstructure:"expression" validate:"required_if=Type expr"`
}

// Response is the part of an HTTP response validations can see.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       any
}

// ParseRules decodes raw rule maps as they appear in a workflow document.
func ParseRules(raw []map[string]any) ([]Rule, error) {
	rules := make([]Rule, 0, len(raw))
	for i, m := range raw {
		var r Rule
		if err := defaults.Set(&r); err != nil {
			return nil, fmt.Errorf("validation #%d: failed to apply defaults: %w", i+1, err)
		}
		if err := mapstructure.WeakDecode(m, &r); err != nil {
			return nil, fmt.Errorf("validation #%d: %w", i+1, err)
		}
		if err := validate.Struct(r); err != nil {
			return nil, fmt.Errorf("validation #%d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Validator evaluates rules against responses.
type Validator struct {
	l         *slog.Logger
	evaluator *ExpressionEvaluator
}

func NewValidator(l *slog.Logger) *Validator {
	if l == nil {
		l = slog.Default()
	}
	return &Validator{l: l, evaluator: NewExpressionEvaluator()}
}

// Validate returns one message per rule that does not hold. vars is exposed to expr
// rules as `vars`.
func (v *Validator) Validate(rules []Rule, resp Response, vars map[string]any) []string {
	var failures []string
	for _, r := range rules {
		if msg := v.check(r, resp, vars); msg != "" {
			failures = append(failures, msg)
		}
	}
	return failures
}

func (v *Validator) check(r Rule, resp Response, vars map[string]any) string {
	switch r.Type {
	case TypeStatus:
		want, err := strconv.Atoi(fmt.Sprint(r.Expected))
		if err != nil {
			return fmt.Sprintf("status: invalid expected value %v", r.Expected)
		}
		if resp.StatusCode != want {
			return fmt.Sprintf("status: expected %d, got %d", want, resp.StatusCode)
		}
	case TypeHeader:
		got, ok := headerValue(resp.Headers, r.Name)
		if r.Expected == nil {
			if !ok {
				return fmt.Sprintf("header %s: missing", r.Name)
			}
			return ""
		}
		if want := fmt.Sprint(r.Expected); got != want {
			return fmt.Sprintf("header %s: expected %q, got %q", r.Name, want, got)
		}
	case TypeJSONPath:
		return checkJSONPath(r, resp.Body)
	case TypeExpr:
		env := map[string]any{
			"status":  resp.StatusCode,
			"body":    resp.Body,
			"headers": resp.Headers,
			"vars":    vars,
			"null":    nil,
		}
		ok, err := v.evaluator.EvalBool(r.Expression, env)
		if err != nil {
			v.l.Warn("Validation expression failed", "expression", r.Expression, "error", err)
			return fmt.Sprintf("expr %q: %v", r.Expression, err)
		}
		if !ok {
			return fmt.Sprintf("expr %q: evaluated to false", r.Expression)
		}
	}
	return ""
}

func checkJSONPath(r Rule, body any) string {
	path := normalizePath(r.Path)
	container := gabs.Wrap(body)

	var value any
	exists := true
	if path == "" {
		value = body
	} else {
		exists = container.ExistsP(path)
		value = container.Path(path).Data()
	}

	fail := func(format string, args ...any) string {
		return fmt.Sprintf("json_path %s: ", r.Path) + fmt.Sprintf(format, args...)
	}

	switch r.Condition {
	case CondExists:
		if !exists {
			return fail("does not exist")
		}
	case CondNotNull:
		if value == nil {
			return fail("expected a value, got null")
		}
	case CondNull:
		if value != nil {
			return fail("expected null, got %v", value)
		}
	case CondEquals:
		if !equalValues(value, r.Expected) {
			return fail("expected %v, got %v", r.Expected, value)
		}
	case CondNotEquals:
		if equalValues(value, r.Expected) {
			return fail("expected anything but %v", r.Expected)
		}
	case CondContains:
		if !containsValue(value, r.Expected) {
			return fail("%v does not contain %v", value, r.Expected)
		}
	}
	return ""
}

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

// normalizePath turns `$.items[0].id` into the dot form `items.0.id`.
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "$")
	p = bracketIndex.ReplaceAllString(p, ".$1")
	return strings.Trim(p, ".")
}

func headerValue(headers map[string]string, name string) (string, bool) {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func equalValues(got, want any) bool {
	if got == nil || want == nil {
		return got == nil && want == nil
	}
	if gf, ok := toFloat(got); ok {
		if wf, ok := toFloat(want); ok {
			return gf == wf
		}
	}
	if reflect.DeepEqual(got, want) {
		return true
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprint(needle))
	case []any:
		for _, item := range h {
			if equalValues(item, needle) {
				return true
			}
		}
	case map[string]any:
		_, ok := h[fmt.Sprint(needle)]
		return ok
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

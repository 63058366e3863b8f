package workflow

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Lookup reads a global variable.
type Lookup func(name string) (any, bool)

// Predicate is a compiled condition expression.
type Predicate interface {
	Eval(lookup Lookup) bool
	String() string
}

// NotNull holds when the variable exists and its string form is neither empty nor "null".
type NotNull struct {
	Var  string
	Expr string
}

func (p NotNull) Eval(lookup Lookup) bool {
	v, ok := lookup(p.Var)
	if !ok {
		return false
	}
	s := textValue(v)
	return s != "" && s != "null"
}

func (p NotNull) String() string { return p.Expr }

// IsNull is the negation of NotNull; a missing variable is null.
type IsNull struct {
	Var  string
	Expr string
}

func (p IsNull) Eval(lookup Lookup) bool {
	return !NotNull{Var: p.Var}.Eval(lookup)
}

func (p IsNull) String() string { return p.Expr }

// Equals compares the variable's string form with a literal.
type Equals struct {
	Var     string
	Literal string
	Expr    string
}

func (p Equals) Eval(lookup Lookup) bool {
	v, ok := lookup(p.Var)
	return ok && textValue(v) == p.Literal
}

func (p Equals) String() string { return p.Expr }

// NotEquals holds when the variable exists and differs from the literal.
type NotEquals struct {
	Var     string
	Literal string
	Expr    string
}

func (p NotEquals) Eval(lookup Lookup) bool {
	v, ok := lookup(p.Var)
	return ok && textValue(v) != p.Literal
}

func (p NotEquals) String() string { return p.Expr }

var conditionPattern = regexp.MustCompile(`^\$\{\s*([^}\s]+)\s*\}\s*(==|!=)\s*(.+)$`)

// ParsePredicate compiles a condition expression. Supported forms:
//
//	${name} != null
//	${name} == null
//	${name} == literal
//	${name} != literal
//
// Literals may be wrapped in single or double quotes.
func ParsePredicate(expr string) (Predicate, error) {
	trimmed := strings.TrimSpace(expr)
	m := conditionPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, &ConfigError{
			Kind:    ErrorInvalidCondition,
			Message: fmt.Sprintf("unsupported condition %q (expected `${name} == value` or `${name} != value`)", expr),
		}
	}

	name, op, rhs := m[1], m[2], strings.TrimSpace(m[3])

	if rhs == "null" {
		if op == "!=" {
			return NotNull{Var: name, Expr: trimmed}, nil
		}
		return IsNull{Var: name, Expr: trimmed}, nil
	}

	literal := unquote(rhs)
	if op == "==" {
		return Equals{Var: name, Literal: literal, Expr: trimmed}, nil
	}
	return NotEquals{Var: name, Literal: literal, Expr: trimmed}, nil
}

func compilePredicates(stepID string, exprs []string) ([]Predicate, error) {
	preds := make([]Predicate, 0, len(exprs))
	for _, e := range exprs {
		p, err := ParsePredicate(e)
		if err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				cfgErr.StepID = stepID
			}
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// textValue renders a value the way it appears inside a URL, header or condition.
// Nil renders as the empty string; maps and lists render as JSON.
func textValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

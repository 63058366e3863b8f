package validation

import (
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Custom functions available in every validation expression
var exprFunctions = []expr.Option{
	expr.Function("base64_encode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		return base64.StdEncoding.EncodeToString([]byte(s)), nil
	}, new(func(string) string)),
	expr.Function("base64_decode", func(params ...any) (any, error) {
		s, _ := params[0].(string)
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return "", err
		}
		return string(decoded), nil
	}, new(func(string) string)),
	expr.Function("defined", func(params ...any) (any, error) {
		return params[0] != nil, nil
	}),
}

// ExpressionEvaluator compiles boolean expressions over a response environment and
// caches the compiled programs.
type ExpressionEvaluator struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

func NewExpressionEvaluator() *ExpressionEvaluator {
	return &ExpressionEvaluator{programs: make(map[string]*vm.Program)}
}

// EvalBool evaluates expression against env. Unknown variables evaluate to nil
// rather than failing compilation.
func (e *ExpressionEvaluator) EvalBool(expression string, env map[string]any) (bool, error) {
	program, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", expression, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q evaluated to %T, expected boolean", expression, output)
	}
	return result, nil
}

func (e *ExpressionEvaluator) compile(expression string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.programs[expression]; ok {
		return p, nil
	}

	// Variables are typed at run time, so no Env is given at compile time
	opts := []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	}
	opts = append(opts, exprFunctions...)

	p, err := expr.Compile(expression, opts...)
	if err != nil {
		return nil, fmt.Errorf("compiling %q: %w", expression, err)
	}
	e.programs[expression] = p
	return p, nil
}

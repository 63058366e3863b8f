package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCyclicDependency is wrapped by every *CycleError.
	ErrCyclicDependency = errors.New("cyclic dependency")
	// ErrUnknownStep is returned when an operation names a step that is not declared.
	ErrUnknownStep = errors.New("unknown step")
)

// ErrorType represents different kinds of configuration errors.
type ErrorType int

const (
	ErrorInvalidDocument ErrorType = iota
	ErrorMissingID
	ErrorDuplicateStep
	ErrorInvalidDependencyType
	ErrorInvalidCondition
)

func (t ErrorType) String() string {
	switch t {
	case ErrorInvalidDocument:
		return "InvalidDocument"
	case ErrorMissingID:
		return "MissingID"
	case ErrorDuplicateStep:
		return "DuplicateStep"
	case ErrorInvalidDependencyType:
		return "InvalidDependencyType"
	case ErrorInvalidCondition:
		return "InvalidCondition"
	default:
		return "Unknown"
	}
}

// ConfigError is a fatal problem with the workflow definition.
type ConfigError struct {
	Kind    ErrorType
	StepID  string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("configuration error")
	if e.StepID != "" {
		fmt.Fprintf(&b, " in step %q", e.StepID)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// CycleError reports every simple cycle found while ordering.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, 0, len(e.Cycles))
	for _, c := range e.Cycles {
		parts = append(parts, "["+strings.Join(c, " → ")+"]")
	}
	return fmt.Sprintf("cyclic dependency detected: %s", strings.Join(parts, ", "))
}

func (e *CycleError) Unwrap() error {
	return ErrCyclicDependency
}

// WarningType classifies non-fatal findings.
type WarningType int

const (
	WarningUnresolvedDependency WarningType = iota
	WarningUndeclaredReference
)

func (t WarningType) String() string {
	switch t {
	case WarningUnresolvedDependency:
		return "UnresolvedDependency"
	case WarningUndeclaredReference:
		return "UndeclaredReference"
	default:
		return "Unknown"
	}
}

// Warning is a non-fatal finding about the workflow definition.
type Warning struct {
	Type    WarningType
	StepID  string
	Target  string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Type, w.Message)
}

// PreconditionError lists every reason a step could not be dispatched.
type PreconditionError struct {
	StepID  string
	Reasons []string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("preconditions failed for step %s: %s", e.StepID, strings.Join(e.Reasons, "; "))
}

package workflow

import (
	"fmt"
	"strings"
	"time"
)

// DependencyType classifies why a dependency exists. It is kept for diagnostics and
// reporting; every type creates the same ordering edge.
type DependencyType string

const (
	DependencyData      DependencyType = "data"
	DependencyAuth      DependencyType = "auth"
	DependencySequence  DependencyType = "sequence"
	DependencyCondition DependencyType = "condition"
	DependencyResource  DependencyType = "resource"
)

var dependencyTypes = map[string]DependencyType{
	string(DependencyData):      DependencyData,
	string(DependencyAuth):      DependencyAuth,
	string(DependencySequence):  DependencySequence,
	string(DependencyCondition): DependencyCondition,
	string(DependencyResource):  DependencyResource,
}

// ParseDependencyType coerces a raw value into the enumerated set.
func ParseDependencyType(s string) (DependencyType, error) {
	if s == "" {
		return DependencySequence, nil
	}
	t, ok := dependencyTypes[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", &ConfigError{
			Kind:    ErrorInvalidDependencyType,
			Message: fmt.Sprintf("unrecognized dependency_type %q", s),
		}
	}
	return t, nil
}

// Parameters holds the per-step extraction rules.
type Parameters struct {
	// Extract maps an alias to a dot-delimited path into this step's response.
	Extract map[string]string `mapstructure:"extract" json:"extract,omitempty"`
	// Scoped keeps aliases under "step_id.alias" only, except those listed in Publish.
	Scoped bool `mapstructure:"scoped" json:"scoped,omitempty"`
	// Publish lists aliases a scoped step still mirrors into unscoped global data.
	// "*" publishes all of them.
	Publish []string `mapstructure:"publish" json:"publish,omitempty"`
}

// Published reports whether alias is mirrored into unscoped global data. Every alias
// is, unless the step is scoped.
func (p Parameters) Published(alias string) bool {
	if !p.Scoped {
		return true
	}
	for _, a := range p.Publish {
		if a == "*" || a == alias {
			return true
		}
	}
	return false
}

// TestStep is one planned test action. Values are treated as immutable once built.
type TestStep struct {
	ID             string            `mapstructure:"id" json:"id" validate:"required"`
	Name           string            `mapstructure:"name" json:"name,omitempty"`
	Description    string            `mapstructure:"description" json:"description,omitempty"`
	Method         string            `mapstructure:"method" json:"method" default:"GET" validate:"oneof=GET POST PUT PATCH DELETE HEAD OPTIONS"`
	URL            string            `mapstructure:"url" json:"url"`
	AuthRequired   string            `mapstructure:"auth_required" json:"auth_required,omitempty"`
	Dependencies   []string          `mapstructure:"dependencies" json:"dependencies,omitempty"`
	DependencyType DependencyType    `mapstructure:"dependency_type" json:"dependency_type" default:"sequence"`
	DataMappings   map[string]string `mapstructure:"data_mappings" json:"data_mappings,omitempty"`
	Preconditions  []string          `mapstructure:"preconditions" json:"preconditions,omitempty"`
	Postconditions []string          `mapstructure:"postconditions" json:"postconditions,omitempty"`
	Parameters     Parameters        `mapstructure:"parameters" json:"parameters"`
	Headers        map[string]string `mapstructure:"headers" json:"headers,omitempty"`
	RequestBody    any               `mapstructure:"request_body" json:"request_body,omitempty"`
	ExpectedStatus int               `mapstructure:"expected_status" json:"expected_status" default:"200" validate:"min=100,max=599"`
	Validations    []map[string]any  `mapstructure:"validations" json:"validations,omitempty"`
	Timeout        int               `mapstructure:"timeout" json:"timeout" default:"30" validate:"min=0"`
	RetryCount     int               `mapstructure:"retry_count" json:"retry_count" default:"3" validate:"min=0"`
	Tags           []string          `mapstructure:"tags" json:"tags,omitempty"`
}

// DisplayName returns Name, falling back to ID.
func (s TestStep) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// TimeoutDuration converts the timeout in seconds.
func (s TestStep) TimeoutDuration() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// WorkflowResult is the recorded outcome of one executed step.
type WorkflowResult struct {
	StepID        string         `json:"step_id"`
	Success       bool           `json:"success"`
	StatusCode    int            `json:"status_code"`
	ResponseData  any            `json:"response_data,omitempty"`
	ResponseTime  time.Duration  `json:"response_time"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	ExtractedData map[string]any `json:"extracted_data,omitempty"`
}

// Workflow is a parsed workflow document.
type Workflow struct {
	Variables map[string]any
	Steps     []TestStep
}

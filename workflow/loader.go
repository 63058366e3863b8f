package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a workflow document.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// FormatFromPath picks the document format from a file extension. Anything that is not
// .json is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

var validate = validator.New()

// LoadFile reads and parses a workflow document from disk.
func LoadFile(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file %s: %w", path, err)
	}
	return Parse(data, FormatFromPath(path))
}

// Parse decodes a workflow document. The document either nests everything under a
// top-level `workflow` key or has `global` and `steps` at its root.
func Parse(data []byte, format Format) (*Workflow, error) {
	var doc map[string]any
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	default:
		err = yaml.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, &ConfigError{Kind: ErrorInvalidDocument, Message: "failed to parse workflow document", Err: err}
	}
	if doc == nil {
		return nil, &ConfigError{Kind: ErrorInvalidDocument, Message: "empty workflow document"}
	}
	return FromMap(doc)
}

// FromMap builds a workflow from an already decoded document.
func FromMap(doc map[string]any) (*Workflow, error) {
	root := doc
	if nested, ok := doc["workflow"]; ok {
		m, ok := nested.(map[string]any)
		if !ok {
			return nil, &ConfigError{Kind: ErrorInvalidDocument, Message: "`workflow` must be a mapping"}
		}
		root = m
	}

	wf := &Workflow{Variables: map[string]any{}}

	if global, ok := root["global"].(map[string]any); ok {
		if vars, ok := global["variables"].(map[string]any); ok {
			wf.Variables = vars
		}
	}

	rawSteps, ok := root["steps"]
	if !ok || rawSteps == nil {
		return wf, nil
	}
	list, ok := rawSteps.([]any)
	if !ok {
		return nil, &ConfigError{Kind: ErrorInvalidDocument, Message: "`steps` must be a list"}
	}

	wf.Steps = make([]TestStep, 0, len(list))
	for i, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			return nil, &ConfigError{
				Kind:    ErrorInvalidDocument,
				Message: fmt.Sprintf("step #%d must be a mapping", i+1),
			}
		}
		step, err := DecodeStep(raw)
		if err != nil {
			return nil, err
		}
		wf.Steps = append(wf.Steps, step)
	}

	return wf, nil
}

// DecodeStep builds a TestStep from a generic map: defaults first, then the map's
// values, then validation.
func DecodeStep(raw map[string]any) (TestStep, error) {
	var step TestStep
	stepID, _ := raw["id"].(string)

	if err := defaults.Set(&step); err != nil {
		return step, fmt.Errorf("failed to apply step defaults: %w", err)
	}

	if v, ok := raw["dependency_type"]; ok && v != nil {
		if _, err := ParseDependencyType(fmt.Sprint(v)); err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				cfgErr.StepID = stepID
			}
			return step, err
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &step,
		TagName:          "mapstructure",
		DecodeHook:       dependencyTypeHook,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return step, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return step, &ConfigError{
			Kind:    ErrorInvalidDocument,
			StepID:  stepID,
			Message: "failed to decode step",
			Err:     err,
		}
	}

	step.Method = strings.ToUpper(step.Method)

	if err := validateStep(step); err != nil {
		return step, err
	}
	return step, nil
}

func dependencyTypeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(DependencyType("")) {
		return data, nil
	}
	return ParseDependencyType(fmt.Sprint(data))
}

func validateStep(step TestStep) error {
	err := validate.Struct(step)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return &ConfigError{Kind: ErrorInvalidDocument, StepID: step.ID, Message: "step validation failed", Err: err}
	}

	var errMessages []string
	for _, fieldErr := range validationErrors {
		if fieldErr.Field() == "ID" && fieldErr.Tag() == "required" {
			return &ConfigError{Kind: ErrorMissingID, Message: "step without id"}
		}
		errMessages = append(errMessages, fmt.Sprintf(
			"field '%s' failed validation (rule: %s, value: %v)",
			fieldErr.Field(),
			fieldErr.Tag(),
			fieldErr.Value(),
		))
	}
	return &ConfigError{
		Kind:    ErrorInvalidDocument,
		StepID:  step.ID,
		Message: "step validation failed: " + strings.Join(errMessages, "; "),
	}
}

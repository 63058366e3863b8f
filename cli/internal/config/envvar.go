package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// EnvVarSpec represents a parsed environment variable reference
type EnvVarSpec struct {
	// VarName is the environment variable name (e.g., "API_TOKEN")
	VarName string

	HasDefault   bool
	DefaultValue string

	// IsLiteral is set for plain values that reference no variable
	IsLiteral    bool
	LiteralValue string
}

// envVarPattern matches ${VAR} and ${VAR:default} syntax
var envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

// ParseEnvVar parses a config value that may be an environment variable reference.
//
// Supported formats:
//   - ${VAR}         - Required environment variable
//   - ${VAR:default} - Optional environment variable with default
//   - literal        - Plain literal value
//
// Examples:
//
//	ParseEnvVar("${API_TOKEN}") -> required env var "API_TOKEN"
//	ParseEnvVar("${BASE_URL:http://localhost:8080}") -> env var with default
//	ParseEnvVar("http://localhost:8080") -> literal value
func ParseEnvVar(value string) (*EnvVarSpec, error) {
	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		return &EnvVarSpec{IsLiteral: true, LiteralValue: value}, nil
	}

	varName := matches[1]
	if !isValidEnvVarName(varName) {
		return nil, fmt.Errorf("invalid environment variable name: %s", varName)
	}

	spec := &EnvVarSpec{
		VarName:    varName,
		HasDefault: matches[2] != "",
	}
	if spec.HasDefault {
		spec.DefaultValue = strings.TrimPrefix(matches[2], ":")
	}
	return spec, nil
}

// Resolve returns the configured value. A required variable that is unset
// is an error.
func (s *EnvVarSpec) Resolve(lookup func(string) (string, bool)) (string, error) {
	if s.IsLiteral {
		return s.LiteralValue, nil
	}
	if v, ok := lookup(s.VarName); ok {
		return v, nil
	}
	if s.HasDefault {
		return s.DefaultValue, nil
	}
	return "", fmt.Errorf("environment variable %s is not set", s.VarName)
}

// isValidEnvVarName checks if a string is a valid environment variable name:
// A-Z or underscore first, then A-Z, 0-9 or underscore
func isValidEnvVarName(name string) bool {
	if name == "" {
		return false
	}

	first := name[0]
	if !((first >= 'A' && first <= 'Z') || first == '_') {
		return false
	}

	for i := 1; i < len(name); i++ {
		c := name[i]
		if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}

	return true
}

// ExpandValue walks a settings tree and replaces every ${VAR} / ${VAR:default} string
// with its value from the process environment. Non-string scalars are kept as is.
func ExpandValue(value any) (any, error) {
	return expandValue(value, os.LookupEnv, "")
}

func expandValue(value any, lookup func(string) (string, bool), key string) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			expanded, err := expandValue(item, lookup, joinKey(key, k))
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := expandValue(item, lookup, fmt.Sprintf("%s[%d]", key, i))
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	case string:
		spec, err := ParseEnvVar(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		resolved, err := spec.Resolve(lookup)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		return resolved, nil
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = item
		}
		return expandValue(out, lookup, key)
	default:
		return value, nil
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

package workflow

import (
	"regexp"
	"strings"
)

// Reference forms:
//
//	${name}                       global variable
//	@{step_id.response.a.b.0.c}   walk a step's response body
//	@{step_id.extracted.alias}    walk a step's extracted data
var (
	wholeVariablePattern  = regexp.MustCompile(`^\$\{([^}]*)\}$`)
	wholeResultPattern    = regexp.MustCompile(`^@\{([^}]*)\}$`)
	embeddedReferenceExpr = regexp.MustCompile(`[$@]\{[^}]*\}`)
)

// Resolver evaluates data references against a Store. It never writes to the store.
type Resolver struct {
	store *Store
}

func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve evaluates a single expression. A `${...}` or `@{...}` expression resolves to
// the referenced value, or nil when anything along the way is missing. Any other
// expression is returned unchanged as a literal.
func (r *Resolver) Resolve(expression string) any {
	var out any
	r.store.read(func(results map[string]WorkflowResult, global map[string]any) {
		out = resolveExpression(expression, results, global)
	})
	return out
}

// Interpolate replaces every reference embedded in s with the string form of its
// value. References that resolve to nil become empty strings.
func (r *Resolver) Interpolate(s string) string {
	if !strings.ContainsAny(s, "$@") {
		return s
	}
	var out string
	r.store.read(func(results map[string]WorkflowResult, global map[string]any) {
		out = interpolate(s, results, global)
	})
	return out
}

// ResolveValue walks maps and lists, resolving every string leaf. A leaf that is exactly
// one reference keeps the referenced value's type; other strings are interpolated.
func (r *Resolver) ResolveValue(v any) any {
	var out any
	r.store.read(func(results map[string]WorkflowResult, global map[string]any) {
		out = resolveValue(v, results, global)
	})
	return out
}

// ResolveMappings resolves a step's data mappings. Mappings resolving to nil are
// omitted so the caller can leave the parameter out of the request.
func (r *Resolver) ResolveMappings(step TestStep) map[string]any {
	resolved := make(map[string]any, len(step.DataMappings))
	r.store.read(func(results map[string]WorkflowResult, global map[string]any) {
		for target, source := range step.DataMappings {
			if v := resolveExpression(source, results, global); v != nil {
				resolved[target] = v
			}
		}
	})
	return resolved
}

// ResolvedStep holds a step's templated parts resolved against a single snapshot of
// the store.
type ResolvedStep struct {
	URL     string
	Headers map[string]string
	Body    any
	// Mappings holds data mappings by target. Values that are not a whole reference are
	// interpolated, so "Bearer @{login.extracted.token}" works; nil values are dropped.
	Mappings map[string]any
}

// ResolveStep resolves everything a request for step needs under one read lock, so a
// concurrent extraction cannot land halfway through.
func (r *Resolver) ResolveStep(step TestStep) ResolvedStep {
	out := ResolvedStep{
		Headers:  make(map[string]string, len(step.Headers)),
		Mappings: make(map[string]any, len(step.DataMappings)),
	}
	r.store.read(func(results map[string]WorkflowResult, global map[string]any) {
		out.URL = interpolate(step.URL, results, global)
		out.Body = resolveValue(step.RequestBody, results, global)
		for name, value := range step.Headers {
			out.Headers[name] = interpolate(value, results, global)
		}
		for target, source := range step.DataMappings {
			if v := resolveValue(source, results, global); v != nil {
				out.Mappings[target] = v
			}
		}
	})
	return out
}

func resolveExpression(expression string, results map[string]WorkflowResult, global map[string]any) any {
	if m := wholeVariablePattern.FindStringSubmatch(expression); m != nil {
		return global[strings.TrimSpace(m[1])]
	}
	if m := wholeResultPattern.FindStringSubmatch(expression); m != nil {
		return resolveResultReference(m[1], results)
	}
	return expression
}

func resolveResultReference(ref string, results map[string]WorkflowResult) any {
	parts := strings.Split(strings.TrimSpace(ref), ".")
	if len(parts) < 2 {
		return nil
	}

	result, ok := results[parts[0]]
	if !ok {
		return nil
	}

	switch parts[1] {
	case "response":
		if result.ResponseData == nil {
			return nil
		}
		return walkPath(result.ResponseData, parts[2:])
	case "extracted":
		if result.ExtractedData == nil {
			return nil
		}
		return walkPath(result.ExtractedData, parts[2:])
	default:
		return nil
	}
}

func interpolate(s string, results map[string]WorkflowResult, global map[string]any) string {
	return embeddedReferenceExpr.ReplaceAllStringFunc(s, func(match string) string {
		return textValue(resolveExpression(match, results, global))
	})
}

func resolveValue(v any, results map[string]WorkflowResult, global map[string]any) any {
	switch val := v.(type) {
	case string:
		if wholeVariablePattern.MatchString(val) || wholeResultPattern.MatchString(val) {
			return resolveExpression(val, results, global)
		}
		return interpolate(val, results, global)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = resolveValue(item, results, global)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(item, results, global)
		}
		return out
	default:
		return v
	}
}

// referencedSteps lists the step IDs named by @{...} references inside s.
func referencedSteps(s string) []string {
	var ids []string
	for _, match := range embeddedReferenceExpr.FindAllString(s, -1) {
		if match[0] != '@' {
			continue
		}
		inner := strings.TrimSpace(match[2 : len(match)-1])
		if id, _, _ := strings.Cut(inner, "."); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Text renders a resolved value the way it is substituted into URLs, headers and query
// strings.
func Text(v any) string {
	return textValue(v)
}

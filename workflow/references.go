package workflow

import (
	"fmt"
	"slices"
)

// CheckReferences warns about `@{step...}` references to steps that the referencing step
// does not transitively depend on. Such references may resolve to nil at run time because
// nothing orders the referenced step first. Declared edges stay authoritative; no edges
// are added.
func CheckReferences(g *Graph) []Warning {
	var warnings []Warning

	for _, step := range g.steps {
		ancestors := g.Ancestors(step.ID)
		reported := make(map[string]bool)

		for _, target := range stepReferences(step) {
			if reported[target] || slices.Contains(ancestors, target) {
				continue
			}
			reported[target] = true

			msg := fmt.Sprintf("step %q references step %q without depending on it", step.ID, target)
			if !g.Has(target) {
				msg = fmt.Sprintf("step %q references undeclared step %q", step.ID, target)
			}
			warnings = append(warnings, Warning{
				Type:    WarningUndeclaredReference,
				StepID:  step.ID,
				Target:  target,
				Message: msg,
			})
		}
	}

	return warnings
}

// stepReferences collects referenced step IDs from every templated field of a step.
func stepReferences(step TestStep) []string {
	var refs []string
	refs = append(refs, referencedSteps(step.URL)...)
	for _, name := range sortedKeys(step.Headers) {
		refs = append(refs, referencedSteps(step.Headers[name])...)
	}
	for _, target := range sortedKeys(step.DataMappings) {
		refs = append(refs, referencedSteps(step.DataMappings[target])...)
	}
	collectValueReferences(step.RequestBody, &refs)
	return refs
}

func collectValueReferences(v any, refs *[]string) {
	switch val := v.(type) {
	case string:
		*refs = append(*refs, referencedSteps(val)...)
	case map[string]any:
		for _, k := range sortedKeys(val) {
			collectValueReferences(val[k], refs)
		}
	case []any:
		for _, item := range val {
			collectValueReferences(item, refs)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

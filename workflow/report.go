package workflow

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
)

const (
	glyphSucceeded = "✅"
	glyphFailed    = "❌"
	glyphPending   = "⏳"
)

// Report renders the run as markdown: a summary block followed by one section per step
// in execution order. A cyclic graph falls back to declaration order. Summary and step
// sections come from the same snapshot of the results.
func (s *Store) Report() string {
	order, err := s.graph.Order()
	if err != nil {
		order = s.graph.ids(allNodes(s.graph.Len()))
	}

	var b strings.Builder
	s.read(func(results map[string]WorkflowResult, _ map[string]any) {
		status := aggregate(s.graph.ids(allNodes(s.graph.Len())), results)

		b.WriteString("# Workflow Execution Report\n\n")
		fmt.Fprintf(&b, "Run: `%s`\n\n", s.runID)
		b.WriteString("## Summary\n")
		fmt.Fprintf(&b, "- **Total steps**: %d\n", status.Total)
		fmt.Fprintf(&b, "- **Executed**: %d\n", status.Executed)
		fmt.Fprintf(&b, "- **Successful**: %d\n", status.Successful)
		fmt.Fprintf(&b, "- **Failed**: %d\n", status.Failed)
		fmt.Fprintf(&b, "- **Pending**: %d\n", status.Pending)
		fmt.Fprintf(&b, "- **Success rate**: %.1f%%\n", status.SuccessRate*100)
		b.WriteString("\n## Steps\n")

		for _, id := range order {
			step, _ := s.graph.Step(id)
			result, executed := results[id]
			writeStepSection(&b, step, result, executed)
		}
	})

	return b.String()
}

func writeStepSection(b *strings.Builder, step TestStep, result WorkflowResult, executed bool) {
	glyph := glyphPending
	if executed {
		glyph = glyphFailed
		if result.Success {
			glyph = glyphSucceeded
		}
	}

	deps := "none"
	if len(step.Dependencies) > 0 {
		deps = strings.Join(step.Dependencies, ", ")
	}

	fmt.Fprintf(b, "\n### %s %s (%s)\n", glyph, step.DisplayName(), step.ID)
	fmt.Fprintf(b, "- **Method**: %s\n", step.Method)
	fmt.Fprintf(b, "- **URL**: %s\n", step.URL)
	fmt.Fprintf(b, "- **Dependencies**: %s\n", deps)

	if !executed {
		return
	}

	fmt.Fprintf(b, "- **Status code**: %d\n", result.StatusCode)
	fmt.Fprintf(b, "- **Response time**: %.3fs\n", result.ResponseTime.Seconds())
	if result.ErrorMessage != "" {
		fmt.Fprintf(b, "- **Error**: %s\n", result.ErrorMessage)
	}
	if len(result.ExtractedData) > 0 {
		data, err := json.MarshalIndent(result.ExtractedData, "", "  ")
		if err != nil {
			data = []byte(fmt.Sprintf("%v", result.ExtractedData))
		}
		fmt.Fprintf(b, "- **Extracted data**: %s\n", data)
	}
}

func allNodes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

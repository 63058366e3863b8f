// Package report renders finished workflow runs as markdown, JSON or JUnit XML and writes
// them to a report directory.
package report

import (
	"encoding/xml"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/BDNK1/apiflow/cli/internal/security"
	"github.com/BDNK1/apiflow/workflow"
)

const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatJUnit    = "junit"
)

// Config selects the report formats written after a run.
type Config struct {
	Formats []string `mapstructure:"formats" yaml:"formats" default:"[\"markdown\"]" validate:"dive,oneof=markdown json junit"`
	Dir     string   `mapstructure:"dir" yaml:"dir" default:"reports"`
}

// Run is the serializable view of a finished run.
type Run struct {
	ID       string                    `json:"id"`
	Name     string                    `json:"name,omitempty"`
	Status   workflow.Status           `json:"status"`
	Order    []string                  `json:"order"`
	Results  []workflow.WorkflowResult `json:"results"`
	Warnings []string                  `json:"warnings,omitempty"`
}

// Summarize captures the engine's current state. Steps are listed in execution order, or
// declaration order when the graph cannot be ordered.
func Summarize(name string, e *workflow.Engine) Run {
	order, err := e.Order()
	if err != nil {
		order = order[:0]
		for _, step := range e.Graph().Steps() {
			order = append(order, step.ID)
		}
	}

	run := Run{
		ID:      e.RunID(),
		Name:    name,
		Status:  e.Status(),
		Order:   order,
		Results: e.Store().Results(),
	}
	for _, w := range e.Warnings() {
		run.Warnings = append(run.Warnings, w.String())
	}
	return run
}

// Render produces one report document.
func Render(format, name string, e *workflow.Engine) ([]byte, error) {
	switch format {
	case FormatMarkdown:
		return []byte(e.Report()), nil
	case FormatJSON:
		data, err := json.MarshalIndent(Summarize(name, e), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("serializing json report: %w", err)
		}
		return data, nil
	case FormatJUnit:
		return renderJUnit(name, e)
	default:
		return nil, fmt.Errorf("unsupported report format %q", format)
	}
}

// Extension returns the file extension used for a format.
func Extension(format string) string {
	switch format {
	case FormatJSON:
		return ".json"
	case FormatJUnit:
		return ".xml"
	default:
		return ".md"
	}
}

// Write renders every configured format into cfg.Dir and returns the written paths.
// Files are named after the workflow and must stay inside the report directory.
func Write(l *slog.Logger, cfg Config, name string, e *workflow.Engine) ([]string, error) {
	if len(cfg.Formats) == 0 {
		return nil, nil
	}

	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	base := fileBase(name)
	var written []string
	for _, format := range cfg.Formats {
		path, err := security.ResolveWithin(dir, base+Extension(format))
		if err != nil {
			return written, fmt.Errorf("invalid report path: %w", err)
		}

		data, err := Render(format, name, e)
		if err != nil {
			return written, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return written, fmt.Errorf("writing %s report: %w", format, err)
		}

		l.Info("Report written", "format", format, "path", path)
		written = append(written, path)
	}
	return written, nil
}

func fileBase(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "workflow-report"
	}
	return base + "-report"
}

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr,omitempty"`
	Data    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

func renderJUnit(name string, e *workflow.Engine) ([]byte, error) {
	run := Summarize(name, e)

	suiteName := name
	if suiteName == "" {
		suiteName = run.ID
	}
	suite := junitTestSuite{
		Name:  suiteName,
		Tests: len(run.Order),
		Cases: make([]junitTestCase, 0, len(run.Order)),
	}

	var total time.Duration
	for _, id := range run.Order {
		step, _ := e.Step(id)
		testCase := junitTestCase{Name: step.DisplayName(), ClassName: id, Time: seconds(0)}

		result, executed := e.Store().Result(id)
		switch {
		case !executed:
			testCase.Skipped = &junitSkipped{Message: "not executed"}
			suite.Skipped++
		case !result.Success:
			testCase.Failure = &junitFailure{
				Message: fmt.Sprintf("status %d", result.StatusCode),
				Type:    "StepFailure",
				Data:    result.ErrorMessage,
			}
			suite.Failures++
		}
		if executed {
			testCase.Time = seconds(result.ResponseTime)
			total += result.ResponseTime
		}

		suite.Cases = append(suite.Cases, testCase)
	}
	suite.Time = seconds(total)

	data, err := xml.MarshalIndent(junitTestSuites{Suites: []junitTestSuite{suite}}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing junit report: %w", err)
	}
	return append([]byte(xml.Header), data...), nil
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.6f", d.Seconds())
}

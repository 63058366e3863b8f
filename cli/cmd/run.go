package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/BDNK1/apiflow/cli/internal/report"
	"github.com/BDNK1/apiflow/workflow"
)

var (
	runStart         []string
	runBaseURL       string
	runConcurrency   int
	runReportFormats []string
	runReportDir     string
	runPrintReport   bool
)

var runCmd = &cobra.Command{
	Use:   "run <workflow-file>",
	Short: "Run a workflow against a live API",
	Long: `Run executes every step of a workflow in dependency order, independent branches
concurrently, and writes the configured reports.

Example:
  apiflow run flows/checkout.yaml
  apiflow run flows/checkout.yaml --start create_order --base-url http://localhost:8080
  apiflow run flows/checkout.yaml --report json --report junit --report-dir out
`,
	Args: cobra.ExactArgs(1),
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringSliceVar(&runStart, "start", nil, "run only these steps and their descendants")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "prefix for step URLs starting with /")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 0, "maximum steps in flight")
	runCmd.Flags().StringSliceVar(&runReportFormats, "report", nil, "report formats: markdown, json, junit")
	runCmd.Flags().StringVar(&runReportDir, "report-dir", "", "directory reports are written to")
	runCmd.Flags().BoolVar(&runPrintReport, "print", true, "print the markdown report to stdout")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runBaseURL != "" {
		cfg.Runner.BaseURL = runBaseURL
	}
	if runConcurrency > 0 {
		cfg.Runner.Concurrency = runConcurrency
	}
	if len(runReportFormats) > 0 {
		cfg.Report.Formats = runReportFormats
	}
	if runReportDir != "" {
		cfg.Report.Dir = runReportDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	l := newLogger(cfg.Log, cmd.ErrOrStderr())

	wf, err := workflow.LoadFile(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer a.close()

	engine, runErr := a.runner.Run(ctx, wf, runStart...)
	if engine == nil {
		return runErr
	}

	if runPrintReport {
		fmt.Fprintln(cmd.OutOrStdout(), engine.Report())
	}
	if _, err := report.Write(l, cfg.Report, args[0], engine); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}
	// Steps outside a --start scope are not counted against the run
	order, err := engine.Order(runStart...)
	if err != nil {
		return err
	}
	if st := engine.StatusOf(order); !st.OverallSuccess {
		return fmt.Errorf("workflow failed: %d of %d planned steps succeeded (%d failed, %d pending)",
			st.Successful, st.Total, st.Failed, st.Pending)
	}
	return nil
}

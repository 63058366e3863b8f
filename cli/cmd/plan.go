package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BDNK1/apiflow/workflow"
)

var planStart []string

var planCmd = &cobra.Command{
	Use:   "plan <workflow-file>",
	Short: "Print the execution order of a workflow without running it",
	Args:  cobra.ExactArgs(1),
	RunE:  planWorkflow,
}

var validateCmd = &cobra.Command{
	Use:   "validate <workflow-file>",
	Short: "Check a workflow document for configuration errors, cycles and warnings",
	Args:  cobra.ExactArgs(1),
	RunE:  validateWorkflow,
}

func init() {
	planCmd.Flags().StringSliceVar(&planStart, "start", nil, "plan only these steps and their descendants")
}

func planWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l := newLogger(cfg.Log, cmd.ErrOrStderr())

	wf, err := workflow.LoadFile(args[0])
	if err != nil {
		return err
	}
	engine, err := workflow.NewEngine(wf, workflow.WithLogger(l))
	if err != nil {
		return err
	}

	order, err := engine.Order(planStart...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, id := range order {
		step, _ := engine.Step(id)
		deps := "-"
		if len(step.Dependencies) > 0 {
			deps = strings.Join(step.Dependencies, ", ")
		}
		fmt.Fprintf(out, "%2d. %-24s %-6s %s  (after: %s)\n", i+1, id, step.Method, step.URL, deps)
	}
	return nil
}

func validateWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	l := newLogger(cfg.Log, cmd.ErrOrStderr())

	wf, err := workflow.LoadFile(args[0])
	if err != nil {
		return err
	}
	engine, err := workflow.NewEngine(wf, workflow.WithLogger(l))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cycles := engine.Graph().Cycles(); len(cycles) > 0 {
		for _, c := range cycles {
			fmt.Fprintf(out, "cycle: %s -> %s\n", strings.Join(c, " -> "), c[0])
		}
		return fmt.Errorf("%s: %w", args[0], workflow.ErrCyclicDependency)
	}

	for _, w := range engine.Warnings() {
		fmt.Fprintf(out, "warning: %s\n", w.String())
	}
	fmt.Fprintf(out, "%s: %d steps, %d warnings\n", args[0], engine.Graph().Len(), len(engine.Warnings()))
	return nil
}

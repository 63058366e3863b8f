package cmd

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/BDNK1/apiflow/workflow"
)

var templateFormat string

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Print an example workflow document",
	RunE: func(cmd *cobra.Command, _ []string) error {
		switch templateFormat {
		case "yaml":
			fmt.Fprint(cmd.OutOrStdout(), workflow.ConfigTemplate())
			return nil
		case "json":
			var doc map[string]any
			if err := yaml.Unmarshal([]byte(workflow.ConfigTemplate()), &doc); err != nil {
				return fmt.Errorf("failed to parse template: %w", err)
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to render template: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		default:
			return fmt.Errorf("unsupported template format %q (expected yaml or json)", templateFormat)
		}
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateFormat, "format", "yaml", "output format: yaml or json")
}

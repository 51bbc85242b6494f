package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/miradorstack/attrition-predictor/internal/cli/ui"
	"github.com/miradorstack/attrition-predictor/internal/features"
)

func newSchemaCmd() *cobra.Command {
	var example bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "print the feature columns the artifacts are trained on",
		Long: `Print the encoded feature layout in order, together with the raw input fields
the pipeline requires and the categorical levels it accepts.

With --example, print a complete request body instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if example {
				body, err := json.MarshalIndent(map[string]any{"data": features.ExampleRecord()}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(body))
				return nil
			}

			cols := features.GoldenColumns()
			rows := make([][]string, len(cols))
			for i, col := range cols {
				rows[i] = []string{strconv.Itoa(i), col}
			}
			if err := ui.Table(out, []string{"INDEX", "COLUMN"}, rows); err != nil {
				return err
			}

			fmt.Fprintln(out)
			ui.Bold(out, "required fields: %d", len(features.RequiredFields()))
			for _, field := range features.RequiredFields() {
				if levels, ok := features.Levels(field); ok {
					fmt.Fprintf(out, "  %s: %s\n", field, strings.Join(levels, " | "))
				}
			}
			fmt.Fprintf(out, "optional fields (dropped): %s\n", strings.Join(features.OptionalFields(), ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&example, "example", false, "Print an example request body")
	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// NewRootCmd builds the attritionctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "attritionctl",
		Short:   "Inspect and exercise the attrition prediction pipeline",
		Version: version,
		Long: `Operator tooling for the attrition predictor. Prints the feature schema the
deployed artifacts were trained on, verifies artifacts against it, encodes
records into feature vectors and runs predictions offline or against a
running server.`,
		Example: `  # Show the 41-column feature layout
  $ attritionctl schema

  # Verify the artifacts referenced by a config file
  $ attritionctl check -c config.yaml

  # Encode a record without scaling
  $ attritionctl encode -f record.json

  # Predict offline, or against a running server
  $ attritionctl predict -c config.yaml -f record.json
  $ attritionctl predict --remote localhost:8080 -f record.json`,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("attritionctl version %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file (defaults to $ATTRITION_CONFIG)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Log artifact loading details to stderr")

	root.AddCommand(newSchemaCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newEncodeCmd())
	root.AddCommand(newPredictCmd())
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

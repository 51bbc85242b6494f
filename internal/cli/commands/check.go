package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/attrition-predictor/internal/cli/ui"
	"github.com/miradorstack/attrition-predictor/internal/features"
)

func newCheckCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "load the configured artifacts and verify them against the feature schema",
		Long: `Load the scaler and classifier exactly as the server would and verify that both
were fit on the pipeline's column layout. Exits non-zero on any mismatch.`,
		Example: `  $ attritionctl check -c config.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			out := cmd.OutOrStdout()
			_, store, err := loadPredictor(ctx, cmd)
			if err != nil {
				ui.Error(out, "%s", describe(err))
				return err
			}
			defer store.Close()

			for _, info := range store.Manifest() {
				ui.Success(out, "%s %s (fingerprint %s, %d bytes)", info.Kind, info.Key, info.Fingerprint, info.Bytes)
			}
			ui.Success(out, "artifacts match the %d-column feature schema", features.Width())
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Artifact load timeout")
	return cmd
}

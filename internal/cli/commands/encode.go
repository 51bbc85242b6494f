package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/miradorstack/attrition-predictor/internal/cli/ui"
	"github.com/miradorstack/attrition-predictor/internal/features"
)

func newEncodeCmd() *cobra.Command {
	var (
		file   string
		scaled bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "print the feature vector a record encodes to",
		Long: `Run a record through the feature pipeline and print one row per column.
Without --scaled no artifacts are needed; with --scaled the configured scaler
is loaded and applied. Use -o plain for tab-separated output.`,
		Example: `  $ attritionctl encode -f record.json
  $ attritionctl schema --example | attritionctl encode -f - --scaled -c config.yaml -o plain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			render, err := tableRenderer(output)
			if err != nil {
				return err
			}
			rec, err := readRecord(cmd, file)
			if err != nil {
				return err
			}

			var scaler features.Scaler
			if scaled {
				store, logger, err := openArtifacts(cmd)
				if err != nil {
					return err
				}
				defer store.Close()
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				s, err := store.LoadScaler(ctx)
				if err != nil {
					ui.Error(out, "%s", describe(err))
					return err
				}
				logger.Debug("scaler loaded", "columns", len(s.Columns()))
				scaler = s
			}

			pipeline, err := features.NewPipeline(cliLogger(cmd), scaler)
			if err != nil {
				ui.Error(out, "%s", describe(err))
				return err
			}
			encode := pipeline.Encode
			if scaled {
				encode = pipeline.Transform
			}
			vec, err := encode(rec)
			if err != nil {
				ui.Error(out, "%s", describe(err))
				return err
			}

			if !scaled {
				ui.Warning(cmd.ErrOrStderr(), "values are unscaled; pass --scaled to apply the configured scaler")
			}

			rows := make([][]string, len(vec.Columns))
			for i, col := range vec.Columns {
				rows[i] = []string{strconv.Itoa(i), col, strconv.FormatFloat(vec.Values[i], 'g', -1, 64)}
			}
			return render(out, []string{"INDEX", "COLUMN", "VALUE"}, rows)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON record to encode (- for stdin)")
	cmd.Flags().BoolVar(&scaled, "scaled", false, "Apply the configured scaler")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or plain")
	return cmd
}

func tableRenderer(output string) (func(io.Writer, []string, [][]string) error, error) {
	switch output {
	case "table", "":
		return ui.Table, nil
	case "plain":
		return ui.PlainTable, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want table or plain)", output)
}

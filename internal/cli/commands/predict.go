package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/attrition-predictor/internal/api"
	"github.com/miradorstack/attrition-predictor/internal/cli/ui"
	"github.com/miradorstack/attrition-predictor/internal/models"
)

func newPredictCmd() *cobra.Command {
	var (
		file    string
		remote  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "predict attrition for a record",
		Long: `Predict attrition for a JSON record. By default the configured artifacts are
loaded in-process; with --remote the record is sent to a running server over gRPC.`,
		Example: `  $ attritionctl predict -c config.yaml -f record.json
  $ attritionctl predict --remote localhost:8080 -f record.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			rec, err := readRecord(cmd, file)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			var resp *structpb.Struct
			if remote != "" {
				resp, err = predictRemote(ctx, remote, rec)
			} else {
				resp, err = predictLocal(ctx, cmd, rec)
			}
			if err != nil {
				ui.Error(out, "%s", describe(err))
				return err
			}

			body, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(body))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON record to predict (- for stdin)")
	cmd.Flags().StringVar(&remote, "remote", "", "Address of a running server; predicts over gRPC")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Overall timeout")
	return cmd
}

func predictLocal(ctx context.Context, cmd *cobra.Command, rec models.RawRecord) (*structpb.Struct, error) {
	predictor, store, err := loadPredictor(ctx, cmd)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	pred, err := predictor.Predict(ctx, rec)
	if err != nil {
		return nil, err
	}
	return api.ToProtoPrediction(pred), nil
}

func predictRemote(ctx context.Context, addr string, rec models.RawRecord) (*structpb.Struct, error) {
	req, err := api.ToProtoRecord(rec)
	if err != nil {
		return nil, err
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()
	return api.NewPredictorClient(conn).Predict(ctx, req)
}

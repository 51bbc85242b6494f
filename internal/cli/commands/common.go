package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/miradorstack/attrition-predictor/internal/artifacts"
	"github.com/miradorstack/attrition-predictor/internal/config"
	"github.com/miradorstack/attrition-predictor/internal/inference"
	"github.com/miradorstack/attrition-predictor/internal/models"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	return utils.NewLoggerTo(cmd.ErrOrStderr(), level, false)
}

// openArtifacts opens the configured store. Callers must close it.
func openArtifacts(cmd *cobra.Command) (*artifacts.BlobStore, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger := cliLogger(cmd)
	store, err := cfg.Artifacts.OpenStore(logger)
	if err != nil {
		return nil, nil, err
	}
	return store, logger, nil
}

func loadPredictor(ctx context.Context, cmd *cobra.Command) (*inference.Predictor, *artifacts.BlobStore, error) {
	store, logger, err := openArtifacts(cmd)
	if err != nil {
		return nil, nil, err
	}
	predictor, err := inference.Load(ctx, logger, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return predictor, store, nil
}

// readRecord reads a JSON record from path, or stdin when path is "-". Both a
// bare object and the {"data": {...}} request body are accepted.
func readRecord(cmd *cobra.Command, path string) (models.RawRecord, error) {
	if path == "" {
		return nil, fmt.Errorf("a record file is required (-f, or - for stdin)")
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var rec map[string]any
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	if inner, ok := rec["data"].(map[string]any); ok && len(rec) == 1 {
		rec = inner
	}
	return models.RawRecord(rec), nil
}

// describe renders err with its kind and field when it carries them.
func describe(err error) string {
	kind, field := utils.KindOf(err), utils.FieldOf(err)
	switch {
	case kind != "" && field != "":
		return fmt.Sprintf("%s (%s, field %s)", err, kind, field)
	case kind != "":
		return fmt.Sprintf("%s (%s)", err, kind)
	}
	return err.Error()
}

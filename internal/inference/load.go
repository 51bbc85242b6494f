package inference

import (
	"context"
	"log/slog"

	"github.com/miradorstack/attrition-predictor/internal/artifacts"
	"github.com/miradorstack/attrition-predictor/internal/features"
)

// Load fetches both artifacts from store and verifies them against the feature
// pipeline. Any failure means the process must not serve.
func Load(ctx context.Context, logger *slog.Logger, store artifacts.Store) (*Predictor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	scaler, err := store.LoadScaler(ctx)
	if err != nil {
		return nil, err
	}
	classifier, err := store.LoadClassifier(ctx)
	if err != nil {
		return nil, err
	}

	pipeline, err := features.NewPipeline(logger, scaler)
	if err != nil {
		return nil, err
	}
	predictor, err := NewPredictor(logger, pipeline, classifier)
	if err != nil {
		return nil, err
	}

	_, probabilistic := classifier.(artifacts.ProbabilityClassifier)
	logger.Info("artifacts loaded",
		slog.Int("features", features.Width()),
		slog.String("classifier", classifierKind(classifier)),
		slog.Bool("probability", probabilistic))
	return predictor, nil
}

func classifierKind(c artifacts.Classifier) string {
	switch c.(type) {
	case *artifacts.TreeEnsemble:
		return "xgboost"
	case *artifacts.LogisticModel:
		return "logistic"
	}
	return "custom"
}

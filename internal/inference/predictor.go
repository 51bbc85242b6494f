package inference

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/miradorstack/attrition-predictor/internal/artifacts"
	"github.com/miradorstack/attrition-predictor/internal/features"
	"github.com/miradorstack/attrition-predictor/internal/models"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

// Predictor runs the feature pipeline and hands the vector to the classifier.
type Predictor struct {
	logger     *slog.Logger
	pipeline   *features.Pipeline
	classifier artifacts.Classifier
	newID      func() string
}

// NewPredictor wires a pipeline to a classifier. The classifier must have been
// trained on exactly the pipeline's columns.
func NewPredictor(logger *slog.Logger, pipeline *features.Pipeline, classifier artifacts.Classifier) (*Predictor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if pipeline == nil {
		return nil, utils.NewAppError(utils.KindSchemaMismatch, "inference.new", "pipeline is required", nil)
	}
	if classifier == nil {
		return nil, utils.NewAppError(utils.KindSchemaMismatch, "inference.new", "classifier is required", nil)
	}
	if n := classifier.NumFeatures(); n != features.Width() {
		return nil, utils.NewAppError(utils.KindSchemaMismatch, "inference.new",
			fmt.Sprintf("classifier expects %d features, pipeline produces %d", n, features.Width()), nil)
	}
	if names := classifier.FeatureNames(); len(names) > 0 {
		if err := features.VerifyColumns("classifier", names); err != nil {
			return nil, err
		}
	}
	return &Predictor{
		logger:     logger,
		pipeline:   pipeline,
		classifier: classifier,
		newID:      uuid.NewString,
	}, nil
}

// Predict classifies a single record.
func (p *Predictor) Predict(ctx context.Context, rec models.RawRecord) (models.Prediction, error) {
	vec, err := p.pipeline.Transform(rec)
	if err != nil {
		return models.Prediction{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Prediction{}, err
	}
	return p.classify(vec)
}

// PredictBatch classifies each record in order, stopping at the first failure.
// No row is classified unless every row encodes.
func (p *Predictor) PredictBatch(ctx context.Context, recs []models.RawRecord) ([]models.Prediction, error) {
	vecs, err := p.pipeline.TransformBatch(recs)
	if err != nil {
		return nil, err
	}
	out := make([]models.Prediction, 0, len(vecs))
	for i, vec := range vecs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pred, err := p.classify(vec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, pred)
	}
	return out, nil
}

func (p *Predictor) classify(vec features.Vector) (models.Prediction, error) {
	pred := models.Prediction{RequestID: p.newID()}

	var class int
	if pc, ok := p.classifier.(artifacts.ProbabilityClassifier); ok {
		prob, err := pc.Probability(vec.Values)
		if err != nil {
			return models.Prediction{}, classifierError(err)
		}
		pred.Probability = prob
		pred.HasProbability = true
		class = artifacts.ClassForProbability(prob)
	} else {
		c, err := p.classifier.Classify(vec.Values)
		if err != nil {
			return models.Prediction{}, classifierError(err)
		}
		class = c
	}
	label, ok := models.LabelForClass(class)
	if !ok {
		return models.Prediction{}, utils.NewAppError(utils.KindSchemaMismatch, "inference.classify",
			fmt.Sprintf("classifier returned unexpected class %d", class), nil)
	}
	pred.Class = class
	pred.Label = label

	p.logger.Debug("prediction computed",
		slog.String("request_id", pred.RequestID),
		slog.String("label", string(label)))
	return pred, nil
}

func classifierError(err error) error {
	return utils.NewAppError(utils.KindSchemaMismatch, "inference.classify", "classifier rejected vector", err)
}

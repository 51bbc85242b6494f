package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/attrition-predictor/internal/api"
	"github.com/miradorstack/attrition-predictor/internal/metrics"
	"github.com/miradorstack/attrition-predictor/internal/models"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

const latencyLogEvery = 100

// Predictor is the inference behaviour the service needs.
type Predictor interface {
	Predict(ctx context.Context, rec models.RawRecord) (models.Prediction, error)
}

// PredictionService implements the gRPC AttritionPredictor service.
type PredictionService struct {
	api.UnimplementedPredictorServer

	logger    *slog.Logger
	predictor Predictor
	latencies *utils.LatencyTracker
}

// NewPredictionService constructs the prediction service facade.
func NewPredictionService(logger *slog.Logger, predictor Predictor) *PredictionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionService{
		logger:    logger,
		predictor: predictor,
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Predict classifies the record carried in req.
func (s *PredictionService) Predict(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.predictor == nil {
		return nil, status.Error(codes.FailedPrecondition, "predictor not configured")
	}

	rec, err := api.FromProtoRecord(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	start := time.Now()
	pred, err := s.predictor.Predict(ctx, rec)
	duration := time.Since(start)
	if err != nil {
		return nil, s.fail(duration, err)
	}

	s.latencies.Observe(duration)
	metrics.ObservePrediction(duration, metrics.OutcomeSuccess, string(pred.Label))
	s.logLatency()

	return api.ToProtoPrediction(pred), nil
}

// logLatency reports percentiles over the retained window every hundred predictions.
func (s *PredictionService) logLatency() {
	total := s.latencies.Total()
	if total == 0 || total%latencyLogEvery != 0 {
		return
	}
	s.logger.Info("prediction latency",
		slog.Duration("p50", s.latencies.Percentile(50)),
		slog.Duration("p95", s.latencies.Percentile(95)),
		slog.Int("window", s.latencies.Count()),
		slog.Uint64("predictions", total))
}

// fail records the failure and converts it into a gRPC status.
func (s *PredictionService) fail(duration time.Duration, err error) error {
	kind := utils.KindOf(err)
	field := utils.FieldOf(err)

	switch {
	case utils.IsClientError(err):
		metrics.ObservePrediction(duration, metrics.OutcomeRejected, "")
		metrics.ObservePipelineError(string(kind))
		s.logger.Debug("prediction rejected",
			slog.String("kind", string(kind)),
			slog.String("field", field),
			slog.Any("error", err))
		return withInfo(codes.InvalidArgument, err.Error(), kind, field)

	case errors.Is(err, context.DeadlineExceeded):
		metrics.ObservePrediction(duration, metrics.OutcomeError, "")
		return status.Error(codes.DeadlineExceeded, "prediction deadline exceeded")

	case errors.Is(err, context.Canceled):
		metrics.ObservePrediction(duration, metrics.OutcomeError, "")
		return status.Error(codes.Canceled, "prediction cancelled")

	case errors.Is(err, utils.ErrSchemaMismatch), errors.Is(err, utils.ErrArtifactLoad):
		metrics.ObservePrediction(duration, metrics.OutcomeError, "")
		metrics.ObserveMisconfiguration()
		s.logger.Error("service misconfigured: artifacts and feature pipeline disagree",
			slog.String("kind", string(kind)),
			slog.String("field", field),
			slog.Any("error", err))
		return withInfo(codes.FailedPrecondition, "service misconfigured: "+err.Error(), kind, field)
	}

	metrics.ObservePrediction(duration, metrics.OutcomeError, "")
	s.logger.Error("prediction failed", slog.Any("error", err))
	return status.Error(codes.Internal, "prediction failed")
}

func withInfo(code codes.Code, msg string, kind utils.Kind, field string) error {
	st := status.New(code, msg)
	info := &errdetails.ErrorInfo{
		Reason: string(kind),
		Domain: api.ErrorDomain,
	}
	if field != "" {
		info.Metadata = map[string]string{"field": field}
	}
	detailed, err := st.WithDetails(info)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// LatencyP95 returns the current p95 prediction latency.
func (s *PredictionService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

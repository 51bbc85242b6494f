package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/attrition-predictor/internal/api"
	"github.com/miradorstack/attrition-predictor/internal/artifacts"
	"github.com/miradorstack/attrition-predictor/internal/features"
	"github.com/miradorstack/attrition-predictor/internal/inference"
	"github.com/miradorstack/attrition-predictor/internal/models"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

type predictorStub struct {
	pred   models.Prediction
	err    error
	called bool
	rec    models.RawRecord
}

func (p *predictorStub) Predict(ctx context.Context, rec models.RawRecord) (models.Prediction, error) {
	p.called = true
	p.rec = rec
	return p.pred, p.err
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	st, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return st
}

func errorInfo(t *testing.T, err error) *errdetails.ErrorInfo {
	t.Helper()
	for _, d := range status.Convert(err).Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok {
			return info
		}
	}
	t.Fatalf("no ErrorInfo on %v", err)
	return nil
}

func TestPredictSuccess(t *testing.T) {
	stub := &predictorStub{pred: models.Prediction{RequestID: "req-1", Class: 1, Label: models.LabelYes, Probability: 0.9, HasProbability: true}}
	service := NewPredictionService(nil, stub)

	resp, err := service.Predict(context.Background(), mustStruct(t, map[string]any{"Age": 41.0}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.rec["Age"] != 41.0 {
		t.Fatalf("record not forwarded: %v", stub.rec)
	}
	pred, err := api.FromProtoPrediction(resp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if pred.Label != models.LabelYes || pred.RequestID != "req-1" || pred.Probability != 0.9 {
		t.Fatalf("unexpected prediction: %+v", pred)
	}
}

func TestPredictNilRequest(t *testing.T) {
	service := NewPredictionService(nil, &predictorStub{})
	_, err := service.Predict(context.Background(), nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}

	_, err = NewPredictionService(nil, nil).Predict(context.Background(), &structpb.Struct{})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}

func TestPredictClientErrorsAreInvalidArgument(t *testing.T) {
	cases := []error{
		utils.NewFieldError(utils.KindMissingField, "features.read", "Age", "field is required"),
		utils.NewFieldError(utils.KindValidation, "features.read", "Age", "not an integer"),
		utils.NewFieldError(utils.KindUnmappedCategory, "features.bucket", "NumCompaniesWorked", "no bucket"),
		utils.NewFieldError(utils.KindUnknownCategoryLevel, "features.read", "JobRole", "unknown level"),
	}
	for _, predErr := range cases {
		service := NewPredictionService(nil, &predictorStub{err: predErr})
		_, err := service.Predict(context.Background(), &structpb.Struct{})
		if status.Code(err) != codes.InvalidArgument {
			t.Fatalf("%v: expected InvalidArgument, got %v", predErr, status.Code(err))
		}
		info := errorInfo(t, err)
		if info.GetReason() != string(utils.KindOf(predErr)) {
			t.Fatalf("reason = %q, want %q", info.GetReason(), utils.KindOf(predErr))
		}
		if info.GetMetadata()["field"] != utils.FieldOf(predErr) {
			t.Fatalf("field = %q, want %q", info.GetMetadata()["field"], utils.FieldOf(predErr))
		}
	}
}

func TestPredictMisconfigurationIsFailedPrecondition(t *testing.T) {
	for _, predErr := range []error{
		utils.NewAppError(utils.KindSchemaMismatch, "inference.classify", "classifier returned unexpected class 3", nil),
		utils.NewAppError(utils.KindArtifactLoad, "artifacts.load", "scaler", errors.New("gone")),
	} {
		service := NewPredictionService(nil, &predictorStub{err: predErr})
		_, err := service.Predict(context.Background(), &structpb.Struct{})
		if status.Code(err) != codes.FailedPrecondition {
			t.Fatalf("expected FailedPrecondition, got %v", err)
		}
		if !strings.Contains(status.Convert(err).Message(), "misconfigured") {
			t.Fatalf("message should flag misconfiguration: %q", status.Convert(err).Message())
		}
		if got := errorInfo(t, err).GetReason(); got != string(utils.KindOf(predErr)) {
			t.Fatalf("reason = %q", got)
		}
	}
}

func TestPredictContextAndUnknownErrors(t *testing.T) {
	cases := map[error]codes.Code{
		context.DeadlineExceeded: codes.DeadlineExceeded,
		context.Canceled:         codes.Canceled,
		errors.New("boom"):       codes.Internal,
	}
	for predErr, want := range cases {
		service := NewPredictionService(nil, &predictorStub{err: predErr})
		_, err := service.Predict(context.Background(), &structpb.Struct{})
		if status.Code(err) != want {
			t.Fatalf("%v: expected %v, got %v", predErr, want, status.Code(err))
		}
	}
}

// newStack wires the real pipeline and a logistic classifier keyed on OverTime.
func newStack(t *testing.T) http.Handler {
	t.Helper()
	cols := features.GoldenColumns()
	mean := make([]float64, len(cols))
	scale := make([]float64, len(cols))
	coef := make([]float64, len(cols))
	for i, c := range cols {
		scale[i] = 1
		if c == "OverTime_Yes" {
			coef[i] = 4
		}
	}
	pipeline, err := features.NewPipeline(nil, artifacts.NewStandardScaler(cols, mean, scale))
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	clf, err := artifacts.NewLogisticModel(cols, coef, -2)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	predictor, err := inference.NewPredictor(nil, pipeline, clf)
	if err != nil {
		t.Fatalf("predictor: %v", err)
	}
	gin.SetMode(gin.TestMode)
	return api.NewHTTPHandler(nil, NewPredictionService(nil, predictor), api.HTTPOptions{})
}

func TestHTTPEndToEnd(t *testing.T) {
	router := newStack(t)

	body, err := json.Marshal(map[string]any{"data": features.ExampleRecord()})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hr/predict", strings.NewReader(string(body))))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["prediction"] != 1.0 || resp["label"] != "Yes" {
		t.Fatalf("unexpected response: %v", resp)
	}

	bad := features.ExampleRecord()
	bad["JobRole"] = "Astronaut"
	body, _ = json.Marshal(map[string]any{"data": bad})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hr/predict", strings.NewReader(string(body))))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["kind"] != string(utils.KindUnknownCategoryLevel) || resp["field"] != "JobRole" {
		t.Fatalf("unexpected error body: %v", resp)
	}
}

func TestLatencyIsLoggedPastTheRetainedWindow(t *testing.T) {
	var buf bytes.Buffer
	stub := &predictorStub{pred: models.Prediction{Class: 0, Label: models.LabelNo}}
	svc := NewPredictionService(utils.NewLoggerTo(&buf, "info", false), stub)
	req := mustStruct(t, map[string]any{"Age": 41})

	for i := 0; i < 2500; i++ {
		if _, err := svc.Predict(context.Background(), req); err != nil {
			t.Fatalf("predict %d: %v", i, err)
		}
	}

	lines := strings.Count(buf.String(), "prediction latency")
	if lines != 25 {
		t.Fatalf("latency logged %d times, want 25", lines)
	}
	if !strings.Contains(buf.String(), "predictions=2500") {
		t.Fatalf("last latency line missing running total:\n%s", buf.String())
	}
}

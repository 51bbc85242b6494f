package features

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/miradorstack/attrition-predictor/internal/models"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

// Scaler is the fitted scaler artifact as seen by the pipeline.
type Scaler interface {
	Columns() []string
	Transform(values []float64) ([]float64, error)
}

// Vector is an encoded feature row. Columns is the shared golden list and must
// not be modified.
type Vector struct {
	Columns []string
	Values  []float64
}

// Get returns the value of a named column.
func (v Vector) Get(column string) (float64, bool) {
	i, ok := columnIndex[column]
	if !ok || i >= len(v.Values) {
		return 0, false
	}
	return v.Values[i], true
}

// Pipeline turns raw records into the fixed-order vector the artifacts were fit on.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	logger *slog.Logger
	scaler Scaler
}

// NewPipeline constructs a pipeline around a fitted scaler. The scaler's columns
// must match the golden list exactly; a nil scaler yields an encode-only pipeline
// whose Transform always fails.
func NewPipeline(logger *slog.Logger, scaler Scaler) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if scaler != nil {
		if err := VerifyColumns("scaler", scaler.Columns()); err != nil {
			return nil, err
		}
	}
	return &Pipeline{logger: logger, scaler: scaler}, nil
}

// Columns returns a copy of the output column order.
func (p *Pipeline) Columns() []string {
	return GoldenColumns()
}

// Transform runs every stage including scaling.
func (p *Pipeline) Transform(rec models.RawRecord) (Vector, error) {
	vec, err := p.Encode(rec)
	if err != nil {
		return Vector{}, err
	}
	if err := p.scale(&vec); err != nil {
		return Vector{}, err
	}
	return vec, nil
}

// TransformBatch transforms records independently, failing on the first bad one.
func (p *Pipeline) TransformBatch(recs []models.RawRecord) ([]Vector, error) {
	out := make([]Vector, 0, len(recs))
	for i, rec := range recs {
		vec, err := p.Transform(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// Encode runs every stage except scaling.
func (p *Pipeline) Encode(rec models.RawRecord) (Vector, error) {
	if err := checkFields(rec); err != nil {
		return Vector{}, err
	}

	f, err := readFrame(rec)
	if err != nil {
		return Vector{}, err
	}
	if err := f.bucket(numCompaniesWorkedBuckets); err != nil {
		return Vector{}, err
	}
	if err := f.bucket(percentSalaryHikeBuckets); err != nil {
		return Vector{}, err
	}
	for _, col := range []string{"MonthlyIncome", "DistanceFromHome"} {
		if err := f.log1p(col); err != nil {
			return Vector{}, err
		}
	}
	if err := checkLabel(rec); err != nil {
		return Vector{}, err
	}
	return f.oneHot(), nil
}

func (p *Pipeline) scale(vec *Vector) error {
	if p.scaler == nil {
		return utils.NewAppError(utils.KindSchemaMismatch, "features.scale", "no scaler configured", nil)
	}
	scaled, err := p.scaler.Transform(vec.Values)
	if err != nil {
		return utils.NewAppError(utils.KindSchemaMismatch, "features.scale", "scaler rejected vector", err)
	}
	if len(scaled) != len(goldenColumns) {
		return utils.NewAppError(utils.KindSchemaMismatch, "features.scale",
			fmt.Sprintf("scaler returned %d columns, want %d", len(scaled), len(goldenColumns)), nil)
	}
	for i, v := range scaled {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &utils.AppError{Kind: utils.KindSchemaMismatch, Op: "features.scale", Field: goldenColumns[i], Msg: "scaled value is not finite"}
		}
	}
	vec.Values = scaled
	return nil
}

// VerifyColumns compares an artifact's column list against the golden order.
func VerifyColumns(artifact string, got []string) error {
	if len(got) != len(goldenColumns) {
		return utils.NewAppError(utils.KindSchemaMismatch, "features.verify",
			fmt.Sprintf("%s expects %d columns, pipeline produces %d", artifact, len(got), len(goldenColumns)), nil)
	}
	for i, col := range goldenColumns {
		if got[i] != col {
			return utils.NewAppError(utils.KindSchemaMismatch, "features.verify",
				fmt.Sprintf("%s column %d is %q, pipeline produces %q", artifact, i, got[i], col), nil)
		}
	}
	return nil
}

// checkFields rejects keys that are not part of the training frame.
func checkFields(rec models.RawRecord) error {
	var unknown []string
	for name := range rec {
		if _, ok := knownFields[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return utils.NewFieldError(utils.KindValidation, "features.fields", unknown[0],
		fmt.Sprintf("unexpected field (%d unknown)", len(unknown)))
}

// checkLabel validates Attrition when a value is supplied. Absent, null and
// blank values are all treated as not supplied.
func checkLabel(rec models.RawRecord) error {
	switch raw := rec[labelColumn].(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(raw) == "" {
			return nil
		}
	}
	_, err := readLevel(rec, labelLevels)
	return err
}

// frame is the working copy of a record once dropped columns are gone.
type frame struct {
	numeric map[string]float64
	levels  map[string]string
}

func readFrame(rec models.RawRecord) (*frame, error) {
	f := &frame{
		numeric: make(map[string]float64, len(numericColumns)),
		levels:  make(map[string]string, len(categoricals)),
	}
	for _, col := range numericColumns {
		v, err := readInt(rec, col)
		if err != nil {
			return nil, err
		}
		f.numeric[col] = float64(v)
	}
	for _, c := range categoricals {
		level, err := readLevel(rec, c)
		if err != nil {
			return nil, err
		}
		f.levels[c.Name] = level
	}
	return f, nil
}

func (f *frame) bucket(t BucketTable) error {
	bucket, err := t.Lookup(int64(f.numeric[t.field]))
	if err != nil {
		return err
	}
	f.numeric[t.field] = float64(bucket)
	return nil
}

func (f *frame) log1p(col string) error {
	v := f.numeric[col]
	if v <= -1 {
		return utils.NewFieldError(utils.KindValidation, "features.log1p", col,
			fmt.Sprintf("value %v must be greater than -1", v))
	}
	f.numeric[col] = math.Log1p(v)
	return nil
}

// oneHot lays the frame out in golden order. Every trained dummy column is emitted;
// only the one matching the record's level is set.
func (f *frame) oneHot() Vector {
	values := make([]float64, len(goldenColumns))
	for i, col := range numericColumns {
		values[i] = f.numeric[col]
	}
	for _, c := range categoricals {
		level := f.levels[c.Name]
		if level == c.Levels[0] {
			continue
		}
		values[columnIndex[c.Name+"_"+level]] = boolToFloat(true)
	}
	return Vector{Columns: goldenColumns, Values: values}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

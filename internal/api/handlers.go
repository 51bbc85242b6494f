package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/attrition-predictor/internal/models"
)

// FromProtoRecord maps the gRPC request into a domain RawRecord.
func FromProtoRecord(req *structpb.Struct) (models.RawRecord, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}
	return models.RawRecord(req.AsMap()), nil
}

// ToProtoRecord converts a domain record into the gRPC request shape.
func ToProtoRecord(rec models.RawRecord) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(normalize(rec))
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return st, nil
}

// normalize rewrites json.Number values, which structpb does not accept.
func normalize(rec models.RawRecord) map[string]any {
	out := make(map[string]any, len(rec))
	for k, v := range rec {
		if n, ok := v.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				out[k] = f
				continue
			}
			out[k] = n.String()
			continue
		}
		out[k] = v
	}
	return out
}

// ToProtoPrediction converts a domain prediction into the gRPC response.
func ToProtoPrediction(p models.Prediction) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"prediction": structpb.NewNumberValue(float64(p.Class)),
		"label":      structpb.NewStringValue(string(p.Label)),
		"request_id": structpb.NewStringValue(p.RequestID),
	}
	if p.HasProbability {
		fields["probability"] = structpb.NewNumberValue(p.Probability)
	}
	return &structpb.Struct{Fields: fields}
}

// FromProtoPrediction parses a Predict response.
func FromProtoPrediction(resp *structpb.Struct) (models.Prediction, error) {
	if resp == nil {
		return models.Prediction{}, fmt.Errorf("response is nil")
	}
	f := resp.GetFields()
	pred := models.Prediction{
		RequestID: f["request_id"].GetStringValue(),
		Class:     int(f["prediction"].GetNumberValue()),
		Label:     models.Label(f["label"].GetStringValue()),
	}
	if _, ok := models.LabelForClass(pred.Class); !ok || pred.Label == "" {
		return models.Prediction{}, fmt.Errorf("response has no valid prediction")
	}
	if v, ok := f["probability"]; ok {
		pred.Probability = v.GetNumberValue()
		pred.HasProbability = true
	}
	return pred, nil
}

// predictBody is the JSON body accepted on /hr/predict.
type predictBody struct {
	Data json.RawMessage `json:"data"`
}

// FromJSONBody decodes a {"data": {...}} payload into the gRPC request shape.
func FromJSONBody(body []byte) (*structpb.Struct, error) {
	var req predictBody
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	data := bytes.TrimSpace(req.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, fmt.Errorf("request body must contain a \"data\" object")
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("\"data\" must be a JSON object: %w", err)
	}
	return st, nil
}

// FromFormValues builds a request from form fields. Each field uses its first
// value; type coercion is left to the feature pipeline.
func FromFormValues(form url.Values) *structpb.Struct {
	fields := make(map[string]*structpb.Value, len(form))
	for k, vs := range form {
		if len(vs) > 0 {
			fields[k] = structpb.NewStringValue(vs[0])
		}
	}
	return &structpb.Struct{Fields: fields}
}

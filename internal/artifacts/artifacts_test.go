package artifacts

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/attrition-predictor/internal/utils"
)

// Two trees over two features: a stump on feature 0 and a constant tree.
const tinyXGBoost = `{
  "learner": {
    "feature_names": ["a", "b"],
    "gradient_booster": {
      "name": "gbtree",
      "model": {
        "trees": [
          {
            "left_children": [1, -1, -1],
            "right_children": [2, -1, -1],
            "split_indices": [0, 0, 0],
            "split_conditions": [0.5, -0.4, 0.6],
            "default_left": [1, 0, 0]
          },
          {
            "left_children": [-1],
            "right_children": [-1],
            "split_indices": [0],
            "split_conditions": [0.1],
            "default_left": [false]
          }
        ],
        "tree_info": [0, 0]
      }
    },
    "learner_model_param": {"base_score": "5E-1", "num_class": "0", "num_feature": "2"},
    "objective": {"name": "binary:logistic"}
  },
  "version": [2, 0, 3]
}`

func TestDecodeXGBoostEvaluatesTrees(t *testing.T) {
	clf, err := DecodeClassifier([]byte(tinyXGBoost))
	require.NoError(t, err)
	model, ok := clf.(*TreeEnsemble)
	require.True(t, ok)
	assert.Equal(t, 2, model.NumFeatures())
	assert.Equal(t, []string{"a", "b"}, model.FeatureNames())

	margin, err := model.Margin([]float64{0, 0})
	require.NoError(t, err)
	assert.InDelta(t, -0.3, margin, 1e-6)

	class, err := model.Classify([]float64{0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, class)

	class, err = model.Classify([]float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, class)

	p, err := model.Probability([]float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-0.7)), p, 1e-6)

	// NaN follows default_left on the root.
	margin, err = model.Margin([]float64{math.NaN(), 0})
	require.NoError(t, err)
	assert.InDelta(t, -0.3, margin, 1e-6)

	_, err = model.Classify([]float64{1})
	assert.Error(t, err)
}

const thresholdStump = `{
  "learner": {
    "gradient_booster": {
      "name": "gbtree",
      "model": {
        "trees": [{
          "left_children": [1, -1, -1],
          "right_children": [2, -1, -1],
          "split_indices": [0, 0, 0],
          "split_conditions": [1E-1, -1E0, 1E0],
          "default_left": [0, 0, 0]
        }]
      }
    },
    "learner_model_param": {"base_score": "5E-1", "num_feature": "1"},
    "objective": {"name": "binary:logistic"}
  }
}`

func TestXGBoostSplitsInFloat32(t *testing.T) {
	model, err := DecodeXGBoost([]byte(thresholdStump))
	require.NoError(t, err)

	// Below 0.1 in float64 but equal to float32(0.1) once narrowed, so the row
	// goes right like it does in XGBoost.
	x := 0.1 - 1e-10
	require.Equal(t, float32(0.1), float32(x))
	class, err := model.Classify([]float64{x})
	require.NoError(t, err)
	assert.Equal(t, 1, class)

	class, err = model.Classify([]float64{0.0999})
	require.NoError(t, err)
	assert.Equal(t, 0, class)

	margin, err := model.Margin([]float64{0.1})
	require.NoError(t, err)
	assert.Equal(t, 1.0, margin)
}

func TestDecodeXGBoostRejectsUnsupportedModels(t *testing.T) {
	cases := map[string]string{
		"objective":  `{"learner":{"gradient_booster":{"name":"gbtree","model":{"trees":[]}},"learner_model_param":{"num_feature":"2"},"objective":{"name":"reg:squarederror"}}}`,
		"booster":    `{"learner":{"gradient_booster":{"name":"gblinear"},"learner_model_param":{"num_feature":"2"},"objective":{"name":"binary:logistic"}}}`,
		"multiclass": `{"learner":{"gradient_booster":{"name":"gbtree"},"learner_model_param":{"num_feature":"2","num_class":"3"},"objective":{"name":"binary:logistic"}}}`,
		"no trees":   `{"learner":{"gradient_booster":{"name":"gbtree","model":{"trees":[]}},"learner_model_param":{"num_feature":"2"},"objective":{"name":"binary:logistic"}}}`,
		"bad child": `{"learner":{"gradient_booster":{"name":"gbtree","model":{"trees":[
			{"left_children":[0,-1],"right_children":[1,-1],"split_indices":[0,0],"split_conditions":[0.5,1]}]}},
			"learner_model_param":{"num_feature":"2"},"objective":{"name":"binary:logistic"}}}`,
		"bad feature": `{"learner":{"gradient_booster":{"name":"gbtree","model":{"trees":[
			{"left_children":[1,-1,-1],"right_children":[2,-1,-1],"split_indices":[7,0,0],"split_conditions":[0.5,1,2]}]}},
			"learner_model_param":{"num_feature":"2"},"objective":{"name":"binary:logistic"}}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClassifier([]byte(body))
			assert.Error(t, err)
		})
	}
}

func TestParseBaseScore(t *testing.T) {
	for raw, want := range map[string]float64{"5E-1": 0.5, "[2.5E-1]": 0.25, "": 0.5} {
		got, err := parseBaseScore(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := parseBaseScore("half")
	assert.Error(t, err)
}

func TestDecodeLogistic(t *testing.T) {
	clf, err := DecodeClassifier([]byte(`{"type":"logistic","feature_names":["a","b"],"coef":[2,-1],"intercept":-0.5}`))
	require.NoError(t, err)
	model := clf.(*LogisticModel)

	class, err := model.Classify([]float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 1, class)

	class, err = model.Classify([]float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, class)

	_, err = DecodeClassifier([]byte(`{"type":"logistic","feature_names":["a"],"coef":[1,2]}`))
	assert.Error(t, err)
	_, err = DecodeClassifier([]byte(`{"type":"svm"}`))
	assert.Error(t, err)
}

func TestStandardScaler(t *testing.T) {
	s, err := DecodeScaler([]byte(`{"type":"standard","feature_names_in":["a","b","c"],"mean":[1,2,3],"scale":[2,0,0.5]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, s.Columns())

	in := []float64{3, 5, 4}
	out, err := s.Transform(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 2}, out)
	assert.Equal(t, []float64{3, 5, 4}, in, "input must not be modified")

	_, err = s.Transform([]float64{1})
	assert.Error(t, err)
}

func TestMinMaxScaler(t *testing.T) {
	s, err := DecodeScaler([]byte(`{"type":"minmax","feature_names_in":["a","b"],"min":[-1,0],"scale":[0.5,0.1]}`))
	require.NoError(t, err)
	out, err := s.Transform([]float64{4, 10})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 1}, out, 1e-12)
}

func TestDecodeScalerRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"length":  `{"feature_names_in":["a","b"],"mean":[1],"scale":[1,1]}`,
		"type":    `{"type":"robust","feature_names_in":["a"],"mean":[1],"scale":[1]}`,
		"columns": `{"mean":[1],"scale":[1]}`,
		"json":    `{`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeScaler([]byte(body))
			assert.Error(t, err)
		})
	}
}

const tinyScaler = `{"type":"standard","feature_names_in":["a","b"],"mean":[0,0],"scale":[1,1]}`

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBlobStoreLoadsCompressedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scaling.json.zst"), zstdBytes(t, []byte(tinyScaler)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json.gz"), gzipBytes(t, []byte(tinyXGBoost)), 0o644))

	store := NewBlobStore(nil, NewFileSource(dir), "scaling.json.zst", "model.json.gz")
	defer store.Close()

	scaler, err := store.LoadScaler(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, scaler.Columns())

	clf, err := store.LoadClassifier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, clf.NumFeatures())

	manifest := store.Manifest()
	require.Len(t, manifest, 2)
	assert.Equal(t, "scaler", manifest[0].Kind)
	assert.Equal(t, Fingerprint([]byte(tinyScaler)), manifest[0].Fingerprint)
	assert.Equal(t, len(tinyXGBoost), manifest[1].Bytes)
}

func TestBlobStoreMissingArtifactIsLoadError(t *testing.T) {
	store := NewBlobStore(nil, NewFileSource(t.TempDir()), "scaling.json", "model.json")

	_, err := store.LoadScaler(context.Background())
	require.ErrorIs(t, err, utils.ErrArtifactLoad)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewBlobStore(nil, NewFileSource(t.TempDir()), "", "").LoadClassifier(context.Background())
	assert.ErrorIs(t, err, utils.ErrArtifactLoad)
}

func TestBlobStoreCorruptArtifactIsLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte(`{"learner": 4}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.zst"), append(append([]byte(nil), zstdMagic...), 0, 1, 2), 0o644))

	store := NewBlobStore(nil, NewFileSource(dir), "broken.zst", "model.json")
	_, err := store.LoadClassifier(context.Background())
	assert.ErrorIs(t, err, utils.ErrArtifactLoad)
	_, err = store.LoadScaler(context.Background())
	assert.ErrorIs(t, err, utils.ErrArtifactLoad)
}

type stubRedis struct {
	values map[string]string
	closed bool
}

func (s *stubRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := s.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (s *stubRedis) Close() error {
	s.closed = true
	return nil
}

func TestRedisSource(t *testing.T) {
	stub := &stubRedis{values: map[string]string{
		"attrition:scaler": string(zstdBytes(t, []byte(tinyScaler))),
	}}
	source := &RedisSource{client: stub, prefix: "attrition:"}
	store := NewBlobStore(nil, source, "scaler", "classifier")

	scaler, err := store.LoadScaler(context.Background())
	require.NoError(t, err)
	assert.Len(t, scaler.Columns(), 2)

	_, err = store.LoadClassifier(context.Background())
	require.ErrorIs(t, err, utils.ErrArtifactLoad)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, store.Close())
	assert.True(t, stub.closed)
}

func TestNewRedisSourceRequiresAddr(t *testing.T) {
	_, err := NewRedisSource(RedisConfig{})
	assert.Error(t, err)
}

func TestDecompressPassesThroughPlainData(t *testing.T) {
	out, err := decompress([]byte(tinyScaler))
	require.NoError(t, err)
	assert.Equal(t, tinyScaler, string(out))
}

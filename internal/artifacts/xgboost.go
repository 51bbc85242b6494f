package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TreeEnsemble evaluates a gradient-boosted tree model saved in XGBoost's JSON format.
type TreeEnsemble struct {
	names       []string
	numFeatures int
	baseMargin  float32
	logistic    bool
	trees       []tree
}

type tree struct {
	left        []int32
	right       []int32
	splitIndex  []int32
	// splitCond holds thresholds for inner nodes and leaf values for leaves, in
	// the float32 precision the model was trained and saved with.
	splitCond   []float32
	defaultLeft []bool
}

type xgbFile struct {
	Learner struct {
		FeatureNames    []string `json:"feature_names"`
		GradientBooster struct {
			Name  string `json:"name"`
			Model struct {
				Trees    []xgbTree `json:"trees"`
				TreeInfo []int     `json:"tree_info"`
			} `json:"model"`
		} `json:"gradient_booster"`
		LearnerModelParam struct {
			BaseScore  string `json:"base_score"`
			NumClass   string `json:"num_class"`
			NumFeature string `json:"num_feature"`
		} `json:"learner_model_param"`
		Objective struct {
			Name string `json:"name"`
		} `json:"objective"`
	} `json:"learner"`
}

type xgbTree struct {
	LeftChildren    []int32    `json:"left_children"`
	RightChildren   []int32    `json:"right_children"`
	SplitIndices    []int32    `json:"split_indices"`
	SplitConditions []float32  `json:"split_conditions"`
	DefaultLeft     []flexBool `json:"default_left"`
}

// flexBool accepts the 0/1 integers newer XGBoost releases write as well as JSON booleans.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*b = true
	case "false", "0":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

// DecodeXGBoost parses a binary:logistic or binary:logitraw gbtree model.
func DecodeXGBoost(data []byte) (*TreeEnsemble, error) {
	var f xgbFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse xgboost model: %w", err)
	}
	l := f.Learner

	if name := l.GradientBooster.Name; name != "gbtree" {
		return nil, fmt.Errorf("unsupported booster %q", name)
	}
	objective := l.Objective.Name
	if objective != "binary:logistic" && objective != "binary:logitraw" {
		return nil, fmt.Errorf("unsupported objective %q", objective)
	}
	if nc := strings.TrimSpace(l.LearnerModelParam.NumClass); nc != "" && nc != "0" && nc != "1" {
		return nil, fmt.Errorf("multi-class model (num_class=%s) is not a binary classifier", nc)
	}
	numFeatures, err := strconv.Atoi(strings.TrimSpace(l.LearnerModelParam.NumFeature))
	if err != nil || numFeatures <= 0 {
		return nil, fmt.Errorf("invalid num_feature %q", l.LearnerModelParam.NumFeature)
	}
	if len(l.FeatureNames) > 0 && len(l.FeatureNames) != numFeatures {
		return nil, fmt.Errorf("model has %d feature names for num_feature=%d", len(l.FeatureNames), numFeatures)
	}
	baseScore, err := parseBaseScore(l.LearnerModelParam.BaseScore)
	if err != nil {
		return nil, err
	}

	m := &TreeEnsemble{
		names:       l.FeatureNames,
		numFeatures: numFeatures,
		logistic:    objective == "binary:logistic",
		baseMargin:  float32(baseScore),
	}
	if m.logistic {
		if baseScore <= 0 || baseScore >= 1 {
			return nil, fmt.Errorf("base_score %v is not a probability", baseScore)
		}
		m.baseMargin = float32(math.Log(baseScore / (1 - baseScore)))
	}

	for i, t := range l.GradientBooster.Model.Trees {
		built, err := buildTree(t, numFeatures)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		m.trees = append(m.trees, built)
	}
	if len(m.trees) == 0 {
		return nil, fmt.Errorf("model has no trees")
	}
	return m, nil
}

// parseBaseScore handles both "5E-1" and the bracketed "[5E-1]" vector form.
func parseBaseScore(raw string) (float64, error) {
	s := strings.Trim(strings.TrimSpace(raw), "[]")
	if s == "" {
		return 0.5, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid base_score %q: %w", raw, err)
	}
	return v, nil
}

func buildTree(t xgbTree, numFeatures int) (tree, error) {
	n := len(t.LeftChildren)
	if n == 0 {
		return tree{}, fmt.Errorf("empty tree")
	}
	if len(t.RightChildren) != n || len(t.SplitIndices) != n || len(t.SplitConditions) != n {
		return tree{}, fmt.Errorf("node arrays have mismatched lengths")
	}
	defaultLeft := make([]bool, n)
	if len(t.DefaultLeft) != 0 {
		if len(t.DefaultLeft) != n {
			return tree{}, fmt.Errorf("default_left has %d entries for %d nodes", len(t.DefaultLeft), n)
		}
		for i, v := range t.DefaultLeft {
			defaultLeft[i] = bool(v)
		}
	}

	for i := 0; i < n; i++ {
		l, r := t.LeftChildren[i], t.RightChildren[i]
		if l == -1 {
			continue
		}
		// Children always follow their parent, which also rules out cycles.
		if l <= int32(i) || r <= int32(i) || int(l) >= n || int(r) >= n {
			return tree{}, fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if idx := t.SplitIndices[i]; idx < 0 || int(idx) >= numFeatures {
			return tree{}, fmt.Errorf("node %d splits on feature %d of %d", i, idx, numFeatures)
		}
	}

	return tree{
		left:        t.LeftChildren,
		right:       t.RightChildren,
		splitIndex:  t.SplitIndices,
		splitCond:   t.SplitConditions,
		defaultLeft: defaultLeft,
	}, nil
}

// leaf routes a row to its leaf value. Features are narrowed to float32 before
// comparing so rows near a threshold take the same branch XGBoost does.
func (t tree) leaf(features []float64) float32 {
	node := int32(0)
	for t.left[node] != -1 {
		x := float32(features[t.splitIndex[node]])
		switch {
		case math.IsNaN(float64(x)):
			if t.defaultLeft[node] {
				node = t.left[node]
			} else {
				node = t.right[node]
			}
		case x < t.splitCond[node]:
			node = t.left[node]
		default:
			node = t.right[node]
		}
	}
	return t.splitCond[node]
}

// NumFeatures returns the model width.
func (m *TreeEnsemble) NumFeatures() int { return m.numFeatures }

// FeatureNames returns the training column names, if recorded.
func (m *TreeEnsemble) FeatureNames() []string { return append([]string(nil), m.names...) }

// Margin returns the raw untransformed score, accumulated in float32.
func (m *TreeEnsemble) Margin(features []float64) (float64, error) {
	if len(features) != m.numFeatures {
		return 0, fmt.Errorf("model expects %d features, got %d", m.numFeatures, len(features))
	}
	sum := m.baseMargin
	for _, t := range m.trees {
		sum += t.leaf(features)
	}
	return float64(sum), nil
}

// Probability returns the positive-class probability.
func (m *TreeEnsemble) Probability(features []float64) (float64, error) {
	margin, err := m.Margin(features)
	if err != nil {
		return 0, err
	}
	return sigmoid(margin), nil
}

// Classify returns 1 when the probability exceeds 0.5.
func (m *TreeEnsemble) Classify(features []float64) (int, error) {
	p, err := m.Probability(features)
	if err != nil {
		return 0, err
	}
	return ClassForProbability(p), nil
}

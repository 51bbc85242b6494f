// Command artifact-gen writes a small demo scaler and XGBoost model laid out on
// the service's feature schema, for local development without a trained model.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/redis/go-redis/v9"

	"github.com/miradorstack/attrition-predictor/internal/artifacts"
	"github.com/miradorstack/attrition-predictor/internal/features"
	"github.com/miradorstack/attrition-predictor/internal/utils"
)

// Rough IBM HR sample statistics after the pipeline's bucketing and log1p stages.
var demoStats = map[string][2]float64{
	"Age":                      {36.9, 9.1},
	"DailyRate":                {802.5, 403.4},
	"DistanceFromHome":         {1.93, 0.86},
	"Education":                {2.9, 1.0},
	"EnvironmentSatisfaction":  {2.7, 1.1},
	"HourlyRate":               {65.9, 20.3},
	"JobInvolvement":           {2.7, 0.7},
	"JobLevel":                 {2.1, 1.1},
	"JobSatisfaction":          {2.7, 1.1},
	"MonthlyIncome":            {8.3, 0.7},
	"MonthlyRate":              {14313.1, 7115.3},
	"PerformanceRating":        {3.15, 0.36},
	"RelationshipSatisfaction": {2.7, 1.1},
	"StockOptionLevel":         {0.8, 0.85},
	"TotalWorkingYears":        {11.3, 7.8},
	"TrainingTimesLastYear":    {2.8, 1.3},
	"WorkLifeBalance":          {2.8, 0.7},
	"YearsAtCompany":           {7.0, 6.1},
	"YearsInCurrentRole":       {4.2, 3.6},
	"YearsSinceLastPromotion":  {2.2, 3.2},
	"YearsWithCurrManager":     {4.1, 3.6},
	"NumCompaniesWorked":       {3.3, 2.7},
	"PercentSalaryHike":        {17.0, 3.6},
}

// stump splits one scaled column at cond; left is taken when the value is below it.
type stump struct {
	column      string
	cond        float64
	left, right float64
}

var demoTrees = []stump{
	{column: "OverTime_Yes", cond: 0, left: -0.4, right: 2.4},
	{column: "MonthlyIncome", cond: 0, left: 0.6, right: -0.3},
	{column: "Age", cond: -0.5, left: 0.5, right: -0.2},
	{column: "MaritalStatus_Single", cond: 0, left: -0.1, right: 0.4},
}

const demoBaseScore = 0.16

func main() {
	var (
		outDir     = flag.String("out", "artifacts", "Directory to write the artifacts to")
		compress   = flag.Bool("zstd", false, "Compress the artifacts with zstd")
		redisAddr  = flag.String("redis", "", "Also SET the artifacts on this Redis/Valkey address")
		keyPrefix  = flag.String("prefix", "attrition:artifacts:", "Key prefix used with -redis")
		scalerName = flag.String("scaler", "scaling.json", "Scaler artifact name")
		modelName  = flag.String("classifier", "xgb_classifier.json", "Classifier artifact name")
	)
	flag.Parse()

	logger := utils.NewLogger("info", false)

	blobs := map[string][]byte{
		*scalerName: mustJSON(demoScaler()),
		*modelName:  mustJSON(demoModel()),
	}

	// Round-trip through the real decoders so a bad demo never reaches disk.
	if _, err := artifacts.DecodeScaler(blobs[*scalerName]); err != nil {
		logger.Error("demo scaler does not decode", "error", err)
		os.Exit(1)
	}
	if _, err := artifacts.DecodeClassifier(blobs[*modelName]); err != nil {
		logger.Error("demo classifier does not decode", "error", err)
		os.Exit(1)
	}

	if *compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			logger.Error("create zstd encoder", "error", err)
			os.Exit(1)
		}
		for name, data := range blobs {
			blobs[name] = enc.EncodeAll(data, nil)
		}
		enc.Close()
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Error("create output directory", "error", err)
		os.Exit(1)
	}
	for name, data := range blobs {
		path := filepath.Join(*outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			logger.Error("write artifact", "path", path, "error", err)
			os.Exit(1)
		}
		logger.Info("artifact written", "path", path, "fingerprint", artifacts.Fingerprint(data), "bytes", len(data))
	}

	if *redisAddr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: *redisAddr})
	defer client.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for name, data := range blobs {
		key := *keyPrefix + name
		if err := client.Set(ctx, key, data, 0).Err(); err != nil {
			logger.Error("redis set", "key", key, "error", err)
			os.Exit(1)
		}
		logger.Info("artifact published", "key", key)
	}
}

func demoScaler() map[string]any {
	cols := features.GoldenColumns()
	mean := make([]float64, len(cols))
	scale := make([]float64, len(cols))
	for i, col := range cols {
		if s, ok := demoStats[col]; ok {
			mean[i], scale[i] = s[0], s[1]
			continue
		}
		// One-hot dummies.
		mean[i], scale[i] = 0.25, 0.43
	}
	return map[string]any{"type": "standard", "feature_names_in": cols, "mean": mean, "scale": scale}
}

func demoModel() map[string]any {
	cols := features.GoldenColumns()
	index := make(map[string]int, len(cols))
	for i, col := range cols {
		index[col] = i
	}

	trees := make([]map[string]any, 0, len(demoTrees))
	for id, s := range demoTrees {
		trees = append(trees, map[string]any{
			"id":               id,
			"left_children":    []int{1, -1, -1},
			"right_children":   []int{2, -1, -1},
			"split_indices":    []int{index[s.column], 0, 0},
			"split_conditions": []float64{s.cond, s.left, s.right},
			"default_left":     []int{0, 0, 0},
		})
	}

	return map[string]any{
		"learner": map[string]any{
			"feature_names": cols,
			"gradient_booster": map[string]any{
				"name": "gbtree",
				"model": map[string]any{
					"trees":     trees,
					"tree_info": make([]int, len(trees)),
				},
			},
			"learner_model_param": map[string]any{
				"base_score":  strconv.FormatFloat(demoBaseScore, 'E', -1, 64),
				"num_class":   "0",
				"num_feature": strconv.Itoa(len(cols)),
			},
			"objective": map[string]any{"name": "binary:logistic"},
		},
		"version": []int{2, 0, 3},
	}
}

func mustJSON(v any) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		panic(err)
	}
	return data
}

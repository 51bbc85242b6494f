package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels predictions that produced a label.
	OutcomeSuccess = "success"
	// OutcomeRejected labels requests refused because of bad client input.
	OutcomeRejected = "rejected"
	// OutcomeError labels failures caused by the deployment (artifacts, schema drift).
	OutcomeError = "error"
)

var (
	predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attrition",
			Name:      "predictions_total",
			Help:      "Total number of predict requests handled, partitioned by outcome and label.",
		},
		[]string{"outcome", "label"},
	)

	predictionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "attrition",
			Name:      "prediction_seconds",
			Help:      "Prediction latency in seconds, including feature encoding.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	pipelineErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "attrition",
			Name:      "pipeline_errors_total",
			Help:      "Requests rejected by the feature pipeline, partitioned by error kind.",
		},
		[]string{"kind"},
	)

	misconfigurationTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "attrition",
			Name:      "misconfiguration_total",
			Help:      "Schema mismatches and artifact failures observed while serving.",
		},
	)

	artifactInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "attrition",
			Name:      "artifact_info",
			Help:      "Loaded artifacts, labelled by kind and content fingerprint. Always 1.",
		},
		[]string{"kind", "fingerprint"},
	)
)

// Register attaches attrition collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		predictionsTotal,
		predictionDurationSeconds,
		pipelineErrorsTotal,
		misconfigurationTotal,
		artifactInfo,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObservePrediction records a request duration and its outcome. label is only
// kept for successful predictions.
func ObservePrediction(duration time.Duration, outcome, label string) {
	switch outcome {
	case OutcomeRejected, OutcomeError:
		label = ""
	default:
		outcome = OutcomeSuccess
	}
	predictionsTotal.WithLabelValues(outcome, label).Inc()
	if duration < 0 {
		duration = 0
	}
	predictionDurationSeconds.Observe(duration.Seconds())
}

// ObservePipelineError counts a rejected request by error kind.
func ObservePipelineError(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	pipelineErrorsTotal.WithLabelValues(kind).Inc()
}

// ObserveMisconfiguration counts a deployment-side failure.
func ObserveMisconfiguration() {
	misconfigurationTotal.Inc()
}

// SetArtifact publishes the fingerprint of a loaded artifact.
func SetArtifact(kind, fingerprint string) {
	artifactInfo.WithLabelValues(kind, fingerprint).Set(1)
}

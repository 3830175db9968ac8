package inference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safevision",
		Subsystem: "inference",
		Name:      "samples_ingested_total",
		Help:      "Samples observed per source.",
	}, []string{"source"})

	inferenceLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "safevision",
		Subsystem: "inference",
		Name:      "latency_seconds",
		Help:      "Classifier call latency per source.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"source"})

	classifierErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safevision",
		Subsystem: "inference",
		Name:      "classifier_errors_total",
		Help:      "Classifier calls that returned an error (treated as no detection).",
	}, []string{"source"})

	detectionsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safevision",
		Subsystem: "inference",
		Name:      "detections_total",
		Help:      "Detection events that crossed the confidence threshold.",
	}, []string{"source"})

	achievedRate = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "safevision",
		Subsystem: "inference",
		Name:      "sample_rate",
		Help:      "Achieved samples per second per source.",
	}, []string{"source"})
)

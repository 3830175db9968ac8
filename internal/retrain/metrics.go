package retrain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safevision_retrain_runs_total",
		Help: "Completed retraining runs by result.",
	}, []string{"result"})

	runDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safevision_retrain_duration_seconds",
		Help:    "Wall time of successful retraining runs.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)

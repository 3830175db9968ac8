package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	alertsForwarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safevision",
		Subsystem: "gateway",
		Name:      "alerts_forwarded_total",
		Help:      "Alerts delivered to the incident authority.",
	}, []string{"source"})

	alertsSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safevision",
		Subsystem: "gateway",
		Name:      "alerts_suppressed_total",
		Help:      "Alerts dropped by the per-source cooldown.",
	}, []string{"source"})

	forwardFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "safevision",
		Subsystem: "gateway",
		Name:      "forward_failures_total",
		Help:      "Forward attempts that failed; cooldown and local evidence stand.",
	}, []string{"source"})
)

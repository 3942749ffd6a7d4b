package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded for a flow invocation.
const (
	OutcomeOK              = "ok"
	OutcomeCacheHit        = "cache_hit"
	OutcomeInvalidInput    = "invalid_input"
	OutcomeInvocationError = "invocation_error"
	OutcomeInvalidOutput   = "invalid_output"
)

var (
	FlowInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plant_flow_invocations_total",
			Help: "Total number of flow invocations by outcome",
		},
		[]string{"flow", "engine", "outcome"},
	)

	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plant_flow_duration_seconds",
			Help:    "Duration of flow invocations in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
		},
		[]string{"flow", "engine"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plant_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, error)",
		},
		[]string{"flow", "result"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plant_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)

func ObserveFlow(flow, engine, outcome string, d time.Duration) {
	FlowInvocations.WithLabelValues(flow, engine, outcome).Inc()
	FlowDuration.WithLabelValues(flow, engine).Observe(d.Seconds())
}

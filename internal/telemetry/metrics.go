package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	gatewayFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitboard",
			Subsystem: "gateway",
			Name:      "fetches_total",
			Help:      "Gateway fetches by origin, entity and outcome kind.",
		},
		[]string{"origin", "entity", "result"},
	)

	gatewayFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fitboard",
			Subsystem: "gateway",
			Name:      "fetch_duration_seconds",
			Help:      "Gateway fetch latency, raw retrieval plus normalization.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"origin", "entity"},
	)

	normalizeAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitboard",
			Subsystem: "normalize",
			Name:      "anomalies_total",
			Help:      "Out-of-domain raw values replaced by defaults.",
		},
		[]string{"entity", "field"},
	)

	bindingFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitboard",
			Subsystem: "binding",
			Name:      "fetches_started_total",
			Help:      "Fetches started by bindings after a dependency change.",
		},
		[]string{"resource"},
	)

	bindingStale = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fitboard",
			Subsystem: "binding",
			Name:      "stale_results_total",
			Help:      "Fetch results dropped because a newer request started or the binding closed.",
		},
		[]string{"resource"},
	)
)

func RecordGatewayFetch(origin, entity, result string, seconds float64) {
	gatewayFetches.WithLabelValues(origin, entity, result).Inc()
	gatewayFetchDuration.WithLabelValues(origin, entity).Observe(seconds)
}

func RecordAnomaly(entity, field string) {
	normalizeAnomalies.WithLabelValues(entity, field).Inc()
}

func RecordBindingFetch(resource string) {
	bindingFetches.WithLabelValues(resource).Inc()
}

func RecordBindingStale(resource string) {
	bindingStale.WithLabelValues(resource).Inc()
}

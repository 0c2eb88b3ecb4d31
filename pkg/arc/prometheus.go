package arc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics for monitoring service.
var (
	// allocations prometheus metric.
	allocations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of allocated objects",
			Name:      "allocations_total",
			Namespace: "arcgo",
		},
	)
	// finalizedObjects prometheus metric.
	finalizedObjects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of finalized objects",
			Name:      "finalizations_total",
			Namespace: "arcgo",
		},
	)
	// weakNulled prometheus metric.
	weakNulled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of weak slots nulled on finalization",
			Name:      "weak_nulled_total",
			Namespace: "arcgo",
		},
	)
	// useAfterFree prometheus metric.
	useAfterFree = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of use-after-free faults raised",
			Name:      "use_after_free_total",
			Namespace: "arcgo",
		},
	)
	// liveObjects prometheus metric, it covers all managers that are not
	// closed.
	liveObjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of objects that are allocated and not finalized in open managers",
			Name:      "live_objects",
			Namespace: "arcgo",
		},
	)
)

func init() {
	prometheus.MustRegister(
		allocations,
		finalizedObjects,
		weakNulled,
		useAfterFree,
		liveObjects,
	)
}

func updateAllocationMetrics(live bool) {
	allocations.Inc()
	if live {
		liveObjects.Inc()
	}
}

func updateFinalizationMetrics(nulled int, live bool) {
	finalizedObjects.Inc()
	if live {
		liveObjects.Dec()
	}
	weakNulled.Add(float64(nulled))
}

func dropLiveObjects(n int) {
	liveObjects.Sub(float64(n))
}

func updateFaultMetrics() {
	useAfterFree.Inc()
}

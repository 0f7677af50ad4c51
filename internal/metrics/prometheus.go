package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ItemsCollected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intel_items_collected_total",
			Help: "Total intelligence items collected across all cycles",
		},
	)

	SourceCollects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_source_collect_total",
			Help: "Per-source collection attempts by outcome",
		},
		[]string{"source", "status"},
	)

	CollectionCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intel_collection_cycle_duration_seconds",
			Help:    "Collection cycle duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	TripwireAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_tripwire_alerts_total",
			Help: "Synthetic alert items emitted by tripwire rules",
		},
		[]string{"rule"},
	)

	LearningDeltas = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_learning_deltas_total",
			Help: "Learning deltas by application outcome",
		},
		[]string{"change_type", "status"},
	)

	ActionsTracked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_actions_tracked_total",
			Help: "User actions recorded by type",
		},
		[]string{"action_type"},
	)

	FeedCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intel_feed_cache_hits_total",
			Help: "Feed snapshot cache hits",
		},
	)

	FeedCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "intel_feed_cache_misses_total",
			Help: "Feed snapshot cache misses",
		},
	)

	OrchestratorCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intel_orchestrator_cycles_total",
			Help: "Orchestrator cycles by outcome",
		},
		[]string{"status"},
	)
)

func Init() {
	prometheus.MustRegister(ItemsCollected)
	prometheus.MustRegister(SourceCollects)
	prometheus.MustRegister(CollectionCycleDuration)
	prometheus.MustRegister(TripwireAlerts)
	prometheus.MustRegister(LearningDeltas)
	prometheus.MustRegister(ActionsTracked)
	prometheus.MustRegister(FeedCacheHits)
	prometheus.MustRegister(FeedCacheMisses)
	prometheus.MustRegister(OrchestratorCycles)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vinec_stage_seconds",
		Help:    "Time spent in one pipeline stage (index, validate, extract, compile, rewrite, decide).",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	CompileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vinec_compile_seconds",
		Help:    "End-to-end time for compiling one file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	UpdatePlansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinec_update_plans_total",
		Help: "Update plans produced by the decision engine, by kind.",
	}, []string{"kind"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinec_diagnostics_total",
		Help: "Diagnostics emitted by the pipeline, by severity and code.",
	}, []string{"severity", "code"})

	FileContextEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vinec_file_contexts",
		Help: "Number of file contexts currently published in the compiler cache.",
	})

	StaleResultsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinec_stale_results_dropped_total",
		Help: "Compile results discarded because a newer request for the same file already published.",
	})

	ComponentGraphCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vinec_component_graph_cache_total",
		Help: "Component graph cache lookups, by result (hit/miss).",
	}, []string{"result"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinec_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})

	HMRClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vinec_hmr_clients",
		Help: "Connected hot-update event stream clients.",
	})

	UpdateQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinec_update_queue_dropped_total",
		Help: "Update events dropped because the in-memory queue was full.",
	})

	HistoryWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vinec_history_write_errors_total",
		Help: "Failed writes of update events to the history store.",
	})
)

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopegraph_queries_total",
		Help: "Queries executed, by query name and outcome.",
	}, []string{"query", "outcome"})

	QueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scopegraph_query_seconds",
		Help:    "Time spent running a query body while holding the global scope lock.",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	LockWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scopegraph_lock_wait_seconds",
		Help:    "Time spent waiting for the global scope lock.",
		Buckets: prometheus.DefBuckets,
	})

	LockTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopegraph_lock_timeouts_total",
		Help: "Lock acquisitions that gave up after the configured timeout.",
	})

	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scopegraph_parsing_seconds",
		Help:    "Time spent parsing a source file into a scope tree.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ParseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopegraph_parse_errors_total",
		Help: "Files that failed to parse.",
	}, []string{"language"})

	IndexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scopegraph_indexed_files",
		Help: "Files currently merged into the scope graph.",
	})

	GraphScopes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scopegraph_scopes",
		Help: "Scopes currently in the graph, excluding the global scope.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scopegraph_watcher_events_total",
		Help: "File system events received by the watcher.",
	})

	ArchiveEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scopegraph_archive_events_total",
		Help: "File change events emitted by the archive, by type.",
	}, []string{"type"})
)

// Query outcome label values.
const (
	OutcomeOK            = "ok"
	OutcomeError         = "error"
	OutcomeTimeout       = "timeout"
	OutcomeCancelled     = "cancelled"
	OutcomeMisconfigured = "misconfigured"
)

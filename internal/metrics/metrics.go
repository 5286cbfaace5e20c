package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Library (SQLite store) metrics
var (
	LibraryQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoflow_library_queries_total",
			Help: "Total number of library queries",
		},
		[]string{"operation", "status"},
	)

	LibraryQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoflow_library_query_duration_seconds",
			Help:    "Library query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	LibraryAlbumsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_library_albums_total",
			Help: "Total number of albums in the library",
		},
	)

	LibraryPhotosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_library_photos_total",
			Help: "Total number of photos in the library",
		},
	)

	LibraryTxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoflow_library_transaction_duration_seconds",
			Help:    "Library transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"outcome"},
	)

	LibraryRowsAffected = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photoflow_library_rows_affected",
			Help:    "Rows affected by library write operations",
			Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
		},
		[]string{"operation"},
	)
)

// Retry metrics
var (
	RetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoflow_retry_attempts_total",
			Help: "Total number of retry attempts after a failed first try",
		},
		[]string{"operation"},
	)

	RetryExhaustedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoflow_retry_exhausted_total",
			Help: "Total number of operations that exhausted their retry budget",
		},
		[]string{"operation"},
	)
)

// Page loader metrics
var (
	LoaderPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoflow_loader_pages_total",
			Help: "Total number of page fetches by the paginated loader",
		},
		[]string{"status"}, // "success" or "error"
	)

	LoaderItemsAccumulated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_loader_items_accumulated",
			Help: "Number of items currently accumulated by the paginated loader",
		},
	)
)

// Preload cache metrics
var (
	PreloadAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoflow_preload_attempts_total",
			Help: "Total number of preload attempts",
		},
		[]string{"status"}, // "hit", "success", "failed", "skipped"
	)

	PreloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photoflow_preload_duration_seconds",
			Help:    "Image preload duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	PreloadCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_preload_cache_size_bytes",
			Help: "Estimated memory footprint of the preload cache in bytes",
		},
	)

	PreloadCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_preload_cache_entries",
			Help: "Number of entries in the preload cache",
		},
	)

	PreloadEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoflow_preload_evictions_total",
			Help: "Total number of preload cache entries evicted",
		},
	)

	PreloadQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_preload_queue_depth",
			Help: "Number of preload jobs waiting in the priority queue",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photoflow_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"status"},
	)

	ThumbnailGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "photoflow_thumbnail_generation_duration_seconds",
			Help:    "Thumbnail generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	ThumbnailCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoflow_thumbnail_cache_hits_total",
			Help: "Total number of on-disk thumbnail cache hits",
		},
	)

	ThumbnailCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoflow_thumbnail_cache_misses_total",
			Help: "Total number of on-disk thumbnail cache misses",
		},
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoflow_indexer_runs_total",
			Help: "Total number of indexer runs",
		},
	)

	IndexerPhotosProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoflow_indexer_photos_processed_total",
			Help: "Total number of photos processed by the indexer",
		},
	)

	IndexerErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoflow_indexer_errors_total",
			Help: "Total number of indexer errors",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_indexer_last_run_duration_seconds",
			Help: "Duration of the last indexer run in seconds",
		},
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_indexer_running",
			Help: "Whether the indexer is currently running (1 = running, 0 = idle)",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_memory_usage_ratio",
			Help: "Current memory usage as a fraction of the configured limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "photoflow_memory_paused",
			Help: "Whether background work is paused due to memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "photoflow_memory_gc_triggers_total",
			Help: "Total number of garbage collections forced by the memory monitor",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "photoflow_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

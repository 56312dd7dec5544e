package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values besides the error kinds
const (
	StatusSuccess = "success"
)

// Database worker metrics
var (
	DBOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribrr_db_operations_total",
			Help: "Total number of database operations executed by the worker",
		},
		[]string{"operation", "status"},
	)

	DBOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcribrr_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	DBQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcribrr_db_queue_depth",
			Help: "Number of operations waiting in the worker queue",
		},
	)

	DBWorkerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcribrr_db_worker_running",
			Help: "Whether a database worker is running (1 = running, 0 = stopped)",
		},
	)

	DataChangedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribrr_data_changed_total",
			Help: "Total number of data changed notifications",
		},
		[]string{"entity"},
	)
)

// Folder metrics
var (
	FoldersTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcribrr_folders",
			Help: "Number of folders in the folder cache",
		},
	)

	FolderCacheRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcribrr_folder_cache_rebuilds_total",
			Help: "Total number of folder cache rebuilds",
		},
	)
)

// Importer metrics
var (
	ImportFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribrr_import_files_total",
			Help: "Total number of imported media files by result",
		},
		[]string{"result"}, // imported, duplicate, error
	)

	ImportProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcribrr_import_probe_duration_seconds",
			Help:    "ffprobe duration per media file in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// ObserveOperation records one finished worker operation
func ObserveOperation(operation, status string, durationSeconds float64) {
	if status == "" {
		status = StatusSuccess
	}
	DBOperationsTotal.WithLabelValues(operation, status).Inc()
	DBOperationDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// InitializeMetrics pre-populates the expected label combinations
func InitializeMetrics() {
	for _, result := range []string{"imported", "duplicate", "error"} {
		ImportFilesTotal.WithLabelValues(result)
	}
	for _, entity := range []string{"recording", "folder", "query"} {
		DataChangedTotal.WithLabelValues(entity)
	}
}

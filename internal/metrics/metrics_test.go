package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"DBOperationsTotal", DBOperationsTotal},
		{"DBOperationDuration", DBOperationDuration},
		{"DBQueueDepth", DBQueueDepth},
		{"DBWorkerRunning", DBWorkerRunning},
		{"DataChangedTotal", DataChangedTotal},
		{"FoldersTotal", FoldersTotal},
		{"FolderCacheRebuilds", FolderCacheRebuilds},
		{"ImportFilesTotal", ImportFilesTotal},
		{"ImportProbeDuration", ImportProbeDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(DBOperationsTotal.WithLabelValues("metrics_test_op", StatusSuccess))
	beforeErr := testutil.ToFloat64(DBOperationsTotal.WithLabelValues("metrics_test_op", "Duplicate path"))

	ObserveOperation("metrics_test_op", "", 0.002)
	ObserveOperation("metrics_test_op", "Duplicate path", 0.001)

	if got := testutil.ToFloat64(DBOperationsTotal.WithLabelValues("metrics_test_op", StatusSuccess)); got != before+1 {
		t.Errorf("expected success counter %v, got %v", before+1, got)
	}
	if got := testutil.ToFloat64(DBOperationsTotal.WithLabelValues("metrics_test_op", "Duplicate path")); got != beforeErr+1 {
		t.Errorf("expected error counter %v, got %v", beforeErr+1, got)
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	if n := testutil.CollectAndCount(ImportFilesTotal); n < 3 {
		t.Errorf("expected at least 3 import series, got %d", n)
	}
	if n := testutil.CollectAndCount(DataChangedTotal); n < 3 {
		t.Errorf("expected at least 3 data changed series, got %d", n)
	}
}

func TestGatherFrom(t *testing.T) {
	reg := prometheus.NewRegistry()
	ops := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "transcribrr_test_ops_total", Help: "test"}, []string{"operation"})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{Name: "transcribrr_test_depth", Help: "test"})
	hist := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "transcribrr_test_seconds", Help: "test"})
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "unrelated_total", Help: "test"})
	reg.MustRegister(ops, depth, hist, other)

	ops.WithLabelValues("create_recording").Add(3)
	depth.Set(2)
	hist.Observe(0.5)
	hist.Observe(1.5)
	other.Inc()

	snap, err := GatherFrom(reg)
	if err != nil {
		t.Fatalf("GatherFrom failed: %v", err)
	}

	if v, ok := snap.Value("test_ops_total", "{operation=create_recording}"); !ok || v != 3 {
		t.Errorf("expected counter 3, got %v (found=%v)", v, ok)
	}
	if v, ok := snap.Value("test_depth", ""); !ok || v != 2 {
		t.Errorf("expected gauge 2, got %v (found=%v)", v, ok)
	}
	if v, ok := snap.Value("test_seconds", ""); !ok || v != 2 {
		t.Errorf("expected histogram count 2, got %v (found=%v)", v, ok)
	}
	if _, ok := snap.Value("unrelated_total", ""); ok {
		t.Error("metrics without the transcribrr prefix must be skipped")
	}

	out := snap.Format()
	if !strings.Contains(out, "test_ops_total") || !strings.Contains(out, "avg 1000.00ms") {
		t.Errorf("unexpected format output:\n%s", out)
	}
}

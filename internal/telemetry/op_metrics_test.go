package telemetry

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDefaultOpMetricsSingleton(t *testing.T) {
	if DefaultOpMetrics() != DefaultOpMetrics() {
		t.Fatalf("expected default metrics to return singleton instance")
	}
}

func TestTraceRecordsAttemptsFailuresAndDuration(t *testing.T) {
	metrics := NewOpMetrics()

	finish := metrics.Trace(OpInsertHead)
	time.Sleep(time.Millisecond)
	finish(false)

	metrics.Trace(OpInsertHead)(true)

	s := metrics.Snapshot(OpInsertHead)
	if s.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", s.Attempts)
	}
	if s.Failures != 1 {
		t.Fatalf("expected 1 failure, got %d", s.Failures)
	}
	if s.Average() <= 0 {
		t.Fatalf("expected average duration > 0, got %v", s.Average())
	}
	if other := metrics.Snapshot(OpReverse); other.Attempts != 0 {
		t.Fatalf("expected reverse to be untouched, got %+v", other)
	}

	metrics.Reset()
	s = metrics.Snapshot(OpInsertHead)
	if s.Attempts != 0 || s.Failures != 0 || s.Average() != 0 {
		t.Fatalf("expected metrics to reset to zero, got %+v", s)
	}
}

func TestTraceOnNilMetrics(t *testing.T) {
	var metrics *OpMetrics
	metrics.Trace(OpCreate)(true)
}

func TestOpString(t *testing.T) {
	if got := OpRemoveHead.String(); got != "remove_head" {
		t.Fatalf("expected remove_head, got %q", got)
	}
	if got := Op(42).String(); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
	if got := len(Ops()); got != 6 {
		t.Fatalf("expected 6 operations, got %d", got)
	}
}

func TestCollector(t *testing.T) {
	metrics := NewOpMetrics()
	metrics.Trace(OpInsertHead)(false)
	metrics.Trace(OpInsertHead)(true)
	metrics.Trace(OpRemoveHead)(false)

	if n := testutil.CollectAndCount(metrics); n != 6 {
		t.Fatalf("expected 6 metrics for two operations, got %d", n)
	}

	expected := `
# HELP queuelab_operation_failures_total Number of queue operations that reported failure.
# TYPE queuelab_operation_failures_total counter
queuelab_operation_failures_total{op="insert_head"} 1
queuelab_operation_failures_total{op="remove_head"} 0
# HELP queuelab_operations_total Number of queue operations attempted.
# TYPE queuelab_operations_total counter
queuelab_operations_total{op="insert_head"} 2
queuelab_operations_total{op="remove_head"} 1
`
	err := testutil.CollectAndCompare(metrics, strings.NewReader(expected),
		"queuelab_operations_total", "queuelab_operation_failures_total")
	if err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}
}

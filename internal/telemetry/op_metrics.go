package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Op benennt eine Queue-Operation.
type Op int

const (
	OpCreate Op = iota
	OpDestroy
	OpInsertHead
	OpInsertTail
	OpRemoveHead
	OpReverse
	numOps
)

var opNames = [numOps]string{
	OpCreate:     "create",
	OpDestroy:    "destroy",
	OpInsertHead: "insert_head",
	OpInsertTail: "insert_tail",
	OpRemoveHead: "remove_head",
	OpReverse:    "reverse",
}

func (op Op) String() string {
	if op < 0 || op >= numOps {
		return "unknown"
	}
	return opNames[op]
}

// Ops liefert alle bekannten Operationen in fester Reihenfolge.
func Ops() []Op {
	ops := make([]Op, 0, numOps)
	for op := Op(0); op < numOps; op++ {
		ops = append(ops, op)
	}
	return ops
}

type opCounters struct {
	totalDuration atomic.Int64
	attempts      atomic.Uint64
	failures      atomic.Uint64
}

// OpMetrics fasst Messwerte zu Queue-Operationen zusammen.
type OpMetrics struct {
	ops [numOps]opCounters
}

var defaultOpMetrics OpMetrics

// DefaultOpMetrics liefert die globalen Metriken.
func DefaultOpMetrics() *OpMetrics {
	return &defaultOpMetrics
}

// NewOpMetrics erzeugt einen eigenen, leeren Satz an Metriken.
func NewOpMetrics() *OpMetrics {
	return &OpMetrics{}
}

// Trace startet eine Messung für op und liefert eine Abschlussfunktion, die
// Dauer und Fehlerzustand meldet.
func (m *OpMetrics) Trace(op Op) func(failed bool) {
	if m == nil || op < 0 || op >= numOps {
		return func(bool) {}
	}
	start := time.Now()
	c := &m.ops[op]
	c.attempts.Add(1)
	return func(failed bool) {
		c.totalDuration.Add(time.Since(start).Nanoseconds())
		if failed {
			c.failures.Add(1)
		}
	}
}

// OpSnapshot enthält die Werte einer Operation.
type OpSnapshot struct {
	Op       Op
	Attempts uint64
	Failures uint64
	Total    time.Duration
}

// Average liefert die mittlere Dauer pro Versuch.
func (s OpSnapshot) Average() time.Duration {
	if s.Attempts == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Attempts)
}

// Snapshot gibt die gesammelten Werte für op zurück.
func (m *OpMetrics) Snapshot(op Op) OpSnapshot {
	if op < 0 || op >= numOps {
		return OpSnapshot{Op: op}
	}
	c := &m.ops[op]
	return OpSnapshot{
		Op:       op,
		Attempts: c.attempts.Load(),
		Failures: c.failures.Load(),
		Total:    time.Duration(c.totalDuration.Load()),
	}
}

// Reset setzt alle Zähler zurück.
func (m *OpMetrics) Reset() {
	for i := range m.ops {
		m.ops[i].totalDuration.Store(0)
		m.ops[i].attempts.Store(0)
		m.ops[i].failures.Store(0)
	}
}

var (
	attemptsDesc = prometheus.NewDesc(
		"queuelab_operations_total",
		"Number of queue operations attempted.",
		[]string{"op"}, nil,
	)
	failuresDesc = prometheus.NewDesc(
		"queuelab_operation_failures_total",
		"Number of queue operations that reported failure.",
		[]string{"op"}, nil,
	)
	durationDesc = prometheus.NewDesc(
		"queuelab_operation_duration_seconds_total",
		"Total time spent in queue operations.",
		[]string{"op"}, nil,
	)
)

// Describe implementiert prometheus.Collector.
func (m *OpMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- attemptsDesc
	ch <- failuresDesc
	ch <- durationDesc
}

// Collect implementiert prometheus.Collector. Operationen ohne Versuche werden
// ausgelassen.
func (m *OpMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, op := range Ops() {
		s := m.Snapshot(op)
		if s.Attempts == 0 {
			continue
		}
		name := op.String()
		ch <- prometheus.MustNewConstMetric(attemptsDesc, prometheus.CounterValue, float64(s.Attempts), name)
		ch <- prometheus.MustNewConstMetric(failuresDesc, prometheus.CounterValue, float64(s.Failures), name)
		ch <- prometheus.MustNewConstMetric(durationDesc, prometheus.CounterValue, s.Total.Seconds(), name)
	}
}

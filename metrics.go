package fluxgraph

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from a graph. Implement
// it to integrate with monitoring systems; the zero-cost default is a
// no-op.
type MetricsCollector interface {
	// RecordAddNodes is called after each AddNodes with the number of
	// nodes added.
	RecordAddNodes(count int)

	// RecordAddEdges is called after each AddEdge/AddEdges attempt.
	// count is the number of edges added (0 on failure).
	RecordAddEdges(count int, err error)

	// RecordSnapshotSave is called after each Save.
	RecordSnapshotSave(duration time.Duration, err error)

	// RecordSnapshotLoad is called after each Load.
	RecordSnapshotLoad(duration time.Duration, err error)
}

// NoopMetrics returns a MetricsCollector that discards everything.
func NoopMetrics() MetricsCollector { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordAddNodes(int)                      {}
func (noopMetrics) RecordAddEdges(int, error)               {}
func (noopMetrics) RecordSnapshotSave(time.Duration, error) {}
func (noopMetrics) RecordSnapshotLoad(time.Duration, error) {}

// AtomicMetrics is a lock-free MetricsCollector keeping running totals.
// Safe for concurrent use.
type AtomicMetrics struct {
	NodesAdded    atomic.Int64
	EdgesAdded    atomic.Int64
	EdgeFailures  atomic.Int64
	SnapshotSaves atomic.Int64
	SnapshotLoads atomic.Int64
}

// RecordAddNodes implements MetricsCollector.
func (m *AtomicMetrics) RecordAddNodes(count int) {
	m.NodesAdded.Add(int64(count))
}

// RecordAddEdges implements MetricsCollector.
func (m *AtomicMetrics) RecordAddEdges(count int, err error) {
	if err != nil {
		m.EdgeFailures.Add(1)
		return
	}
	m.EdgesAdded.Add(int64(count))
}

// RecordSnapshotSave implements MetricsCollector.
func (m *AtomicMetrics) RecordSnapshotSave(_ time.Duration, err error) {
	if err == nil {
		m.SnapshotSaves.Add(1)
	}
}

// RecordSnapshotLoad implements MetricsCollector.
func (m *AtomicMetrics) RecordSnapshotLoad(_ time.Duration, err error) {
	if err == nil {
		m.SnapshotLoads.Add(1)
	}
}

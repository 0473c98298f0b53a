package core

import "sync/atomic"

// Metrics counts what the fallback layer recorded. Safe to read from another goroutine.
type Metrics struct {
	NativeDispatches   atomic.Uint64
	EmulatedDispatches atomic.Uint64
	Batches            atomic.Uint64
	Barriers           atomic.Uint64
	RejectedDispatches atomic.Uint64
}

type MetricsSnapshot struct {
	NativeDispatches   uint64
	EmulatedDispatches uint64
	Batches            uint64
	Barriers           uint64
	RejectedDispatches uint64
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		NativeDispatches:   m.NativeDispatches.Load(),
		EmulatedDispatches: m.EmulatedDispatches.Load(),
		Batches:            m.Batches.Load(),
		Barriers:           m.Barriers.Load(),
		RejectedDispatches: m.RejectedDispatches.Load(),
	}
}

func (m *Metrics) Reset() {
	m.NativeDispatches.Store(0)
	m.EmulatedDispatches.Store(0)
	m.Batches.Store(0)
	m.Barriers.Store(0)
	m.RejectedDispatches.Store(0)
}

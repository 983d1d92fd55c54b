package ouro

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    allocCounter     prometheus.Counter
//	    collectHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordAlloc(err error) {
//	    p.allocCounter.Inc()
//	    // ... record error state, etc.
//	}
type MetricsCollector interface {
	// RecordAlloc is called after each allocation attempt.
	// err is nil if successful.
	RecordAlloc(err error)

	// RecordFree is called for each object finalized and freed, whether by
	// reference counting, a collection pass, or heap teardown.
	RecordFree()

	// RecordCollect is called after each collection pass.
	// traced, held and dropped are the pass counters, duration is the total
	// time taken.
	RecordCollect(traced, held, dropped int, duration time.Duration)

	// RecordClose is called once when the heap is torn down.
	// swept is the number of objects still live at close.
	RecordClose(swept int)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAlloc(error)                          {}
func (NoopMetricsCollector) RecordFree()                                {}
func (NoopMetricsCollector) RecordCollect(int, int, int, time.Duration) {}
func (NoopMetricsCollector) RecordClose(int)                            {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	AllocCount        atomic.Int64
	AllocErrors       atomic.Int64
	FreeCount         atomic.Int64
	CollectCount      atomic.Int64
	CollectTraced     atomic.Int64
	CollectHeld       atomic.Int64
	CollectDropped    atomic.Int64
	CollectTotalNanos atomic.Int64
	CloseSwept        atomic.Int64
}

// RecordAlloc implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAlloc(err error) {
	b.AllocCount.Add(1)
	if err != nil {
		b.AllocErrors.Add(1)
	}
}

// RecordFree implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFree() {
	b.FreeCount.Add(1)
}

// RecordCollect implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCollect(traced, held, dropped int, duration time.Duration) {
	b.CollectCount.Add(1)
	b.CollectTraced.Add(int64(traced))
	b.CollectHeld.Add(int64(held))
	b.CollectDropped.Add(int64(dropped))
	b.CollectTotalNanos.Add(duration.Nanoseconds())
}

// RecordClose implements MetricsCollector.
func (b *BasicMetricsCollector) RecordClose(swept int) {
	b.CloseSwept.Add(int64(swept))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AllocCount:      b.AllocCount.Load(),
		AllocErrors:     b.AllocErrors.Load(),
		FreeCount:       b.FreeCount.Load(),
		CollectCount:    b.CollectCount.Load(),
		CollectTraced:   b.CollectTraced.Load(),
		CollectHeld:     b.CollectHeld.Load(),
		CollectDropped:  b.CollectDropped.Load(),
		CollectAvgNanos: b.getAvgCollectNanos(),
		CloseSwept:      b.CloseSwept.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgCollectNanos() int64 {
	count := b.CollectCount.Load()
	if count == 0 {
		return 0
	}
	return b.CollectTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	AllocCount      int64
	AllocErrors     int64
	FreeCount       int64
	CollectCount    int64
	CollectTraced   int64
	CollectHeld     int64
	CollectDropped  int64
	CollectAvgNanos int64
	CloseSwept      int64
}

package ouro

import (
	"log/slog"

	"github.com/ouroheap/ouro/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	controller       *resource.Controller
	maxObjects       int
	initialCapacity  int
	chunkSlots       int
}

// Option configures Heap constructor behavior.
type Option func(*options)

// WithResourceController meters header storage against a shared resource
// controller. When the controller refuses a reservation, the triggering
// allocation fails with ErrOutOfMemory.
//
// Example:
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20})
//	heap, _ := ouro.New(ouro.WithResourceController(rc))
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.controller = rc
	}
}

// WithMaxObjects caps the number of live objects. Allocations beyond the cap
// fail with an error unwrapping to ErrOutOfMemory. Zero means no cap.
func WithMaxObjects(n int) Option {
	return func(o *options) {
		o.maxObjects = n
	}
}

// WithInitialCapacity pre-reserves slot storage for n objects, so the first
// n allocations never grow the table.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		o.initialCapacity = n
	}
}

// WithChunkSlots sets the slot-table growth step. Smaller chunks track a
// resource budget more precisely; larger chunks grow less often.
func WithChunkSlots(n int) Option {
	return func(o *options) {
		o.chunkSlots = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &ouro.BasicMetricsCollector{}
//	heap, _ := ouro.New(ouro.WithMetricsCollector(metrics))
//	// ... use heap ...
//	stats := metrics.GetStats()
//	fmt.Printf("Allocs: %d, Frees: %d\n", stats.AllocCount, stats.FreeCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := ouro.NewJSONLogger(slog.LevelInfo)
//	heap, _ := ouro.New(ouro.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}

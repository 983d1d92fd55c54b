package ouro

import (
	"fmt"

	"github.com/ouroheap/ouro/internal/slab"
)

// ID uniquely identifies a managed object within its heap. IDs are stable
// for the whole object lifetime and never reused, even when the underlying
// slot storage is.
type ID uint64

type heapState uint8

const (
	stateIdle heapState = iota
	stateCollecting
	stateClosing
	stateClosed
)

// Report summarizes one collection pass. Every object that was registered
// when the pass began is counted in Traced and ends up either Held or
// Dropped.
type Report struct {
	Traced  int
	Held    int
	Dropped int
}

// Stats is a point-in-time snapshot of heap counters.
type Stats struct {
	Live          int    // registered objects
	Allocs        uint64 // cumulative allocations
	Frees         uint64 // cumulative finalize+free events
	Passes        uint64 // collection passes run
	ReservedBytes int64  // slot storage reserved from the resource controller
}

// Heap is a managed heap: objects are freed eagerly by reference counting,
// and reference cycles are reclaimed by explicit Collect passes.
//
// A Heap and all handles derived from it are single-owner state: confine
// them to one goroutine or serialize access externally. Handles from
// different heaps must not be mixed.
type Heap struct {
	opts    options
	slab    *slab.Slab
	metrics MetricsCollector
	logger  *Logger

	state    heapState
	passSeq  uint64
	tracer   *Tracer    // reusable pass session
	deferred []slab.Ref // strong counts that hit zero during a pass

	allocs uint64
	frees  uint64
}

// New creates an empty heap.
func New(optFns ...Option) (*Heap, error) {
	opts := applyOptions(optFns)

	h := &Heap{
		opts:    opts,
		metrics: opts.metricsCollector,
		logger:  opts.logger,
	}
	h.tracer = &Tracer{heap: h}

	cfg := slab.Config{
		ChunkSlots:   opts.chunkSlots,
		InitialSlots: opts.initialCapacity,
	}
	if opts.controller != nil {
		cfg.Acquirer = opts.controller
	}

	s, err := slab.New(cfg)
	if err != nil {
		return nil, translateError(err)
	}
	h.slab = s

	return h, nil
}

// Alloc places value in the heap and returns the first strong reference to
// it. On failure nothing is registered and the returned error unwraps to
// ErrOutOfMemory or ErrClosed. Alloc is a package function rather than a
// method so it can bind the handle's type parameter.
func Alloc[T Traceable](h *Heap, value T) (Handle[T], error) {
	if h.state == stateClosing || h.state == stateClosed {
		h.metrics.RecordAlloc(ErrClosed)
		h.logger.LogAlloc(0, typeName(value), ErrClosed)
		return Handle[T]{}, ErrClosed
	}

	if h.opts.maxObjects > 0 && h.slab.LiveCount() >= h.opts.maxObjects {
		err := error(&ErrObjectLimit{Limit: h.opts.maxObjects})
		h.metrics.RecordAlloc(err)
		h.logger.LogAlloc(0, typeName(value), err)
		return Handle[T]{}, err
	}

	ref, err := h.slab.Alloc(value)
	if err != nil {
		err = translateError(err)
		h.metrics.RecordAlloc(err)
		h.logger.LogAlloc(0, typeName(value), err)
		return Handle[T]{}, err
	}

	h.allocs++
	h.metrics.RecordAlloc(nil)
	h.logger.LogAlloc(ID(ref.ID()), typeName(value), nil)
	return Handle[T]{heap: h, ref: ref}, nil
}

// Stats returns current heap counters.
func (h *Heap) Stats() Stats {
	return Stats{
		Live:          h.slab.LiveCount(),
		Allocs:        h.allocs,
		Frees:         h.frees,
		Passes:        h.passSeq,
		ReservedBytes: h.slab.Reserved(),
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}

func (h *Heap) incStrong(ref slab.Ref) {
	hdr := h.slab.Get(ref)
	if hdr == nil {
		panic("ouro: stale handle (object was reclaimed)")
	}
	hdr.Strong++
}

func (h *Heap) incWeak(ref slab.Ref) {
	hdr := h.slab.Get(ref)
	if hdr == nil {
		panic("ouro: stale handle (object was reclaimed)")
	}
	hdr.Weak++
}

func (h *Heap) cloneWeak(ref slab.Ref) {
	hdr := h.slab.Get(ref)
	if hdr == nil {
		return
	}
	hdr.Weak++
}

func (h *Heap) upgrade(ref slab.Ref) bool {
	hdr := h.slab.Get(ref)
	if hdr == nil || hdr.Finalized {
		return false
	}
	hdr.Strong++
	return true
}

func (h *Heap) dropStrong(ref slab.Ref) {
	hdr := h.slab.Get(ref)
	if hdr == nil {
		return
	}
	if hdr.Strong == 0 {
		panic("ouro: unbalanced handle drop")
	}
	hdr.Strong--
	if hdr.Strong > 0 {
		return
	}

	if hdr.Finalized {
		// Last reference to an already finalized object; only the slot
		// remains to reclaim.
		h.maybeReleaseSlot(ref)
		return
	}

	if h.state == stateIdle {
		h.releaseObject(ref)
		return
	}

	// Zero counts reached during a pass or teardown are resolved by the
	// owner of the running sweep.
	h.deferred = append(h.deferred, ref)
}

func (h *Heap) dropWeak(ref slab.Ref) {
	hdr := h.slab.Get(ref)
	if hdr == nil {
		return
	}
	if hdr.Weak == 0 {
		panic("ouro: unbalanced weak drop")
	}
	hdr.Weak--
	h.maybeReleaseSlot(ref)
}

// maybeReleaseSlot recycles a slot once nothing can observe it anymore:
// payload freed and both counts zero.
func (h *Heap) maybeReleaseSlot(ref slab.Ref) {
	hdr := h.slab.Get(ref)
	if hdr == nil {
		return
	}
	if hdr.Finalized && hdr.Payload == nil && hdr.Strong == 0 && hdr.Weak == 0 {
		h.slab.Release(ref)
	}
}

// releaseObject finalizes and frees one object whose strong count reached
// zero outside a pass, then drops the handles embedded in its value,
// cascading through acyclic structure.
func (h *Heap) releaseObject(ref slab.Ref) {
	hdr := h.slab.Get(ref)
	if hdr == nil || hdr.Finalized {
		return
	}

	payload := hdr.Payload
	id := ID(ref.ID())
	name := typeName(payload)

	hdr.Finalized = true
	h.slab.Deregister(ref)

	if f, ok := payload.(Finalizer); ok {
		f.Finalize()
	}

	rt := &Tracer{heap: h, mode: traceRelease}
	if p, ok := payload.(Traceable); ok {
		p.Trace(rt)
	}

	// Re-fetch: the finalize hook may have allocated and moved the table,
	// or closed the heap, in which case the header is already gone.
	hdr = h.slab.Get(ref)
	if hdr != nil {
		hdr.Payload = nil
	}

	h.frees++
	h.metrics.RecordFree()
	h.logger.LogFree(id, name)
	h.maybeReleaseSlot(ref)

	for _, sr := range rt.strongRefs {
		h.dropStrong(sr)
	}
	for _, wr := range rt.weakRefs {
		h.dropWeak(wr)
	}
}

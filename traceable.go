package ouro

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/ouroheap/ouro/internal/slab"
)

// Traceable is the capability every managed value must provide: Trace calls
// Trace on each handle embedded in the value, directly or through nested
// values and containers. Weak handles may (and should) be traced too; they
// never contribute to reachability, but tracing them lets the heap drop them
// when the value is freed.
//
// Trace implementations must be pure: no mutation of the object graph and no
// allocation on the heap being traced. The heap never recurses through a
// traced handle, so cycles need no special handling in user code.
type Traceable interface {
	Trace(t *Tracer)
}

// Finalizer is an optional capability: when a managed value implements it,
// Finalize runs exactly once, before the value's storage is freed. Hooks may
// read other objects, allocate, and drop or upgrade handles; handles acquired
// inside a hook must be dropped before it returns, or they go stale when the
// pass completes.
type Finalizer interface {
	Finalize()
}

type traceMode uint8

const (
	traceCount traceMode = iota
	traceMark
	traceRelease
)

// Tracer carries the state of one graph walk. User code never constructs a
// Tracer; one is passed to Trace and its only user-facing operation is Visit.
type Tracer struct {
	heap *Heap
	mode traceMode

	// counting and marking scope
	snapshot *roaring.Bitmap
	counts   []uint32
	touched  []uint32
	held     *roaring.Bitmap
	work     []uint32

	// release walk output
	strongRefs []slab.Ref
	weakRefs   []slab.Ref
}

// Visit traces v if it is non-nil. Convenient for optional nested values.
func (t *Tracer) Visit(v Traceable) {
	if v == nil {
		return
	}
	v.Trace(t)
}

func (t *Tracer) visitStrong(h *Heap, ref slab.Ref) {
	if h != t.heap {
		panic("ouro: handle traced on a different heap")
	}

	switch t.mode {
	case traceCount:
		if t.heap.slab.Get(ref) == nil || !t.snapshot.Contains(ref.Slot) {
			return
		}
		if t.counts[ref.Slot] == 0 {
			t.touched = append(t.touched, ref.Slot)
		}
		t.counts[ref.Slot]++
	case traceMark:
		if t.heap.slab.Get(ref) == nil || !t.snapshot.Contains(ref.Slot) {
			return
		}
		if t.held.Contains(ref.Slot) {
			return
		}
		t.held.Add(ref.Slot)
		t.work = append(t.work, ref.Slot)
	case traceRelease:
		t.strongRefs = append(t.strongRefs, ref)
	}
}

func (t *Tracer) visitWeak(h *Heap, ref slab.Ref) {
	if h != t.heap {
		panic("ouro: handle traced on a different heap")
	}

	if t.mode == traceRelease {
		t.weakRefs = append(t.weakRefs, ref)
	}
}

func (t *Tracer) reset(slots int) {
	for _, slot := range t.touched {
		t.counts[slot] = 0
	}
	t.touched = t.touched[:0]
	if len(t.counts) < slots {
		t.counts = append(t.counts, make([]uint32, slots-len(t.counts))...)
	}
	if t.held == nil {
		t.held = roaring.New()
	} else {
		t.held.Clear()
	}
	t.work = t.work[:0]
}

// TraceSlice traces every element of s.
func TraceSlice[S ~[]E, E Traceable](t *Tracer, s S) {
	for _, e := range s {
		e.Trace(t)
	}
}

// TraceMap traces every value of m. Keys are not traced; maps keyed by
// managed values are not supported.
func TraceMap[M ~map[K]V, K comparable, V Traceable](t *Tracer, m M) {
	for _, v := range m {
		v.Trace(t)
	}
}

package ouro

import (
	"github.com/ouroheap/ouro/internal/slab"
)

// Handle is an owning strong reference to a managed object. Every Handle
// must be dropped exactly once: Drop ends this reference, Clone creates a
// new one. Assigning or passing a Handle copies the token, not the
// reference, so exactly one of the copies may be dropped.
//
// The zero Handle references nothing: Drop and Trace are no-ops, Value
// panics.
//
// A Handle always dereferences successfully while it is live. Handles that
// escape a finalize hook or heap teardown go stale instead of dangling:
// Value panics, Drop is a no-op.
type Handle[T Traceable] struct {
	heap *Heap
	ref  slab.Ref
}

// IsZero reports whether h is the zero Handle.
func (h Handle[T]) IsZero() bool {
	return h.heap == nil
}

// ID returns the object's identity, or 0 for the zero Handle. IDs are never
// reused within one heap, even when slot storage is.
func (h Handle[T]) ID() ID {
	return ID(h.ref.ID())
}

// Value returns the managed value. It panics on the zero Handle and on
// handles that escaped a collection or teardown.
func (h Handle[T]) Value() T {
	if h.heap == nil {
		panic("ouro: nil handle")
	}
	hdr := h.heap.slab.Get(h.ref)
	if hdr == nil {
		panic("ouro: stale handle (object was reclaimed)")
	}
	if hdr.Payload == nil {
		panic("ouro: access to finalized object")
	}
	return hdr.Payload.(T)
}

// Clone creates a new strong reference to the same object.
func (h Handle[T]) Clone() Handle[T] {
	if h.heap == nil {
		return Handle[T]{}
	}
	h.heap.incStrong(h.ref)
	return Handle[T]{heap: h.heap, ref: h.ref}
}

// Drop ends this reference. When the last strong reference to an object is
// dropped outside a collection pass, the object is finalized and freed
// immediately and its embedded handles are dropped in turn. Dropping the
// zero Handle or a stale handle is a no-op.
func (h Handle[T]) Drop() {
	if h.heap == nil {
		return
	}
	h.heap.dropStrong(h.ref)
}

// Downgrade creates a weak reference to the same object. The strong
// reference remains live and must still be dropped.
func (h Handle[T]) Downgrade() Weak[T] {
	if h.heap == nil {
		return Weak[T]{}
	}
	h.heap.incWeak(h.ref)
	return Weak[T]{heap: h.heap, ref: h.ref}
}

// Trace reports this handle to a graph walk. Traceable implementations call
// it for every embedded strong handle.
func (h Handle[T]) Trace(t *Tracer) {
	if h.heap == nil {
		return
	}
	t.visitStrong(h.heap, h.ref)
}

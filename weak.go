package ouro

import (
	"github.com/ouroheap/ouro/internal/slab"
)

// Weak is a non-owning reference to a managed object. It never keeps the
// object alive; once the object is finalized, Upgrade reports failure
// forever. Weak references do keep the object's slot reserved, so its
// identity cannot be reused while any of them remain.
//
// Like Handle, a Weak must be dropped exactly once; use Clone for
// additional references. The zero Weak references nothing.
type Weak[T Traceable] struct {
	heap *Heap
	ref  slab.Ref
}

// IsZero reports whether w is the zero Weak.
func (w Weak[T]) IsZero() bool {
	return w.heap == nil
}

// ID returns the object's identity, or 0 for the zero Weak.
func (w Weak[T]) ID() ID {
	return ID(w.ref.ID())
}

// Upgrade attempts to create a strong reference. It reports false once the
// object has been finalized, whether by reference counting, a collection
// pass, or heap teardown. This is the only failable handle operation and
// the expected way to probe whether an object is still alive.
func (w Weak[T]) Upgrade() (Handle[T], bool) {
	if w.heap == nil {
		return Handle[T]{}, false
	}
	if !w.heap.upgrade(w.ref) {
		return Handle[T]{}, false
	}
	return Handle[T]{heap: w.heap, ref: w.ref}, true
}

// Clone creates a new weak reference to the same object. Cloning a weak
// reference whose object's slot is already gone returns an equally dead
// reference.
func (w Weak[T]) Clone() Weak[T] {
	if w.heap == nil {
		return Weak[T]{}
	}
	w.heap.cloneWeak(w.ref)
	return Weak[T]{heap: w.heap, ref: w.ref}
}

// Drop ends this weak reference. Dropping the last weak reference to a
// finalized object releases its slot. Dropping the zero Weak or a dead
// reference is a no-op.
func (w Weak[T]) Drop() {
	if w.heap == nil {
		return
	}
	w.heap.dropWeak(w.ref)
}

// Trace reports this handle to a graph walk. Weak handles contribute
// nothing to reachability, but tracing them lets the heap drop them when
// the enclosing value is freed; a Trace implementation that skips weak
// fields merely pins the target's slot until heap close.
func (w Weak[T]) Trace(t *Tracer) {
	if w.heap == nil {
		return
	}
	t.visitWeak(w.heap, w.ref)
}

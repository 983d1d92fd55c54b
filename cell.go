package ouro

// Cell is a mutable slot for an optional strong handle, for objects that
// re-point references after construction. Assigning through Set drops the
// previously stored reference at a single, explicit call site, and the
// cell's Trace keeps the stored reference visible to collection.
//
// A Cell owns the handle it stores. Objects embedding a Cell trace it from
// their Trace method; the cell's reference is dropped automatically when
// the enclosing object is freed.
type Cell[T Traceable] struct {
	h Handle[T]
}

// Set stores h, taking ownership, and drops the previously stored handle.
// Storing the handle the cell already holds is a no-op and takes no
// ownership: a caller passing a fresh Clone of the stored handle still owns
// that clone and must drop it, or the object stays rooted.
func (c *Cell[T]) Set(h Handle[T]) {
	if c.h == h {
		return
	}
	old := c.h
	c.h = h
	old.Drop()
}

// Get returns the stored handle without transferring ownership. Callers
// that need an independent reference must Clone it.
func (c *Cell[T]) Get() Handle[T] {
	return c.h
}

// Take removes and returns the stored handle, transferring ownership to the
// caller. The cell is left empty.
func (c *Cell[T]) Take() Handle[T] {
	h := c.h
	c.h = Handle[T]{}
	return h
}

// Clear drops the stored handle and empties the cell.
func (c *Cell[T]) Clear() {
	c.h.Drop()
	c.h = Handle[T]{}
}

// IsEmpty reports whether the cell holds no handle.
func (c *Cell[T]) IsEmpty() bool {
	return c.h.IsZero()
}

// Trace reports the stored handle to a graph walk.
func (c *Cell[T]) Trace(t *Tracer) {
	c.h.Trace(t)
}

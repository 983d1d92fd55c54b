package ouro

import (
	"time"
)

// ObjectInfo describes one live object in a Snapshot.
type ObjectInfo struct {
	ID       ID
	Type     string
	Strong   uint32
	Weak     uint32
	Internal uint32 // strong references accounted for by other live objects
	Refs     []ID   // strong references out of this object
}

// IsRoot reports whether the object carries strong references the live
// graph itself does not account for, which is exactly the root test a
// collection pass applies.
func (o ObjectInfo) IsRoot() bool {
	return o.Strong > o.Internal
}

// Snapshot is a diagnostic capture of the live object graph. It is advisory
// output for inspection and dumps; it never participates in collection
// decisions.
type Snapshot struct {
	TakenAt time.Time
	Passes  uint64 // collection passes run so far
	Objects []ObjectInfo
}

// Snapshot captures the live object graph. It must be taken between
// operations; a snapshot requested during a pass or after Close returns no
// objects.
func (h *Heap) Snapshot() Snapshot {
	snap := Snapshot{TakenAt: time.Now(), Passes: h.passSeq}
	if h.state != stateIdle {
		return snap
	}

	live := h.slab.Live()

	// Internal counts come from the same counting walk a pass runs.
	t := h.tracer
	t.reset(h.slab.Len())
	t.snapshot = live
	t.mode = traceCount
	it := live.Iterator()
	for it.HasNext() {
		h.tracePayload(it.Next(), t)
	}

	rt := &Tracer{heap: h, mode: traceRelease}
	snap.Objects = make([]ObjectInfo, 0, live.GetCardinality())
	it = live.Iterator()
	for it.HasNext() {
		slot := it.Next()
		hdr := h.slab.HeaderAt(slot)

		rt.strongRefs = rt.strongRefs[:0]
		rt.weakRefs = rt.weakRefs[:0]
		if p, ok := hdr.Payload.(Traceable); ok {
			p.Trace(rt)
		}
		refs := make([]ID, 0, len(rt.strongRefs))
		for _, r := range rt.strongRefs {
			refs = append(refs, ID(r.ID()))
		}

		snap.Objects = append(snap.Objects, ObjectInfo{
			ID:       ID(h.slab.RefAt(slot).ID()),
			Type:     typeName(hdr.Payload),
			Strong:   hdr.Strong,
			Weak:     hdr.Weak,
			Internal: t.counts[slot],
			Refs:     refs,
		})
	}
	return snap
}

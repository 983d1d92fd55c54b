package ouro

import (
	"time"

	"github.com/RoaringBitmap/roaring/v2"
)

// Collect runs one synchronous cycle-collection pass over the objects
// registered when the pass begins and returns its counters. Objects kept
// alive only by reference cycles are finalized and freed; everything
// reachable from an externally held handle survives. Collecting an empty
// heap, or a heap with no cycle garbage, is cheap and returns zeros for the
// dropped count.
//
// Objects allocated while the pass runs are first considered by the next
// pass. A Collect issued from inside a finalize hook, or on a closed heap,
// is a no-op returning a zero Report.
func (h *Heap) Collect() Report {
	if h.state != stateIdle {
		return Report{}
	}
	h.state = stateCollecting
	start := time.Now()
	h.passSeq++
	pass := h.passSeq

	snap := h.slab.Live()
	traced := int(snap.GetCardinality())
	h.logger.LogCollectStart(pass, traced)

	t := h.tracer
	t.reset(h.slab.Len())
	t.snapshot = snap

	// Phase 1: count, for every object, the strong references held by the
	// registered objects themselves.
	t.mode = traceCount
	it := snap.Iterator()
	for it.HasNext() {
		h.tracePayload(it.Next(), t)
	}

	// Phase 2: an object with more strong references than the graph
	// accounts for is externally referenced and seeds the held set.
	it = snap.Iterator()
	for it.HasNext() {
		slot := it.Next()
		if h.slab.HeaderAt(slot).Strong > t.counts[slot] {
			t.held.Add(slot)
			t.work = append(t.work, slot)
		}
	}

	// Phase 3: everything reachable from the held set is held.
	t.mode = traceMark
	for len(t.work) > 0 {
		slot := t.work[len(t.work)-1]
		t.work = t.work[:len(t.work)-1]
		h.tracePayload(slot, t)
	}
	held := int(t.held.GetCardinality())

	// Phase 4: the remainder is unreachable cycle garbage.
	condemned := roaring.AndNot(snap, t.held)
	dropped := int(condemned.GetCardinality())
	h.sweep(condemned)

	h.state = stateIdle
	h.drainDeferred()

	r := Report{Traced: traced, Held: held, Dropped: dropped}
	elapsed := time.Since(start)
	h.metrics.RecordCollect(r.Traced, r.Held, r.Dropped, elapsed)
	h.logger.LogCollectEnd(pass, r, elapsed)
	return r
}

func (h *Heap) tracePayload(slot uint32, t *Tracer) {
	if p, ok := h.slab.HeaderAt(slot).Payload.(Traceable); ok {
		p.Trace(t)
	}
}

func (h *Heap) sweep(condemned *roaring.Bitmap) {
	// Finalize everything first. Hooks may still read any condemned
	// payload, upgrade weak references to not-yet-finalized neighbors, and
	// allocate; nothing is freed until every hook has run.
	it := condemned.Iterator()
	for it.HasNext() {
		slot := it.Next()
		hdr := h.slab.HeaderAt(slot)
		ref := h.slab.RefAt(slot)
		payload := hdr.Payload
		hdr.Finalized = true
		h.slab.Deregister(ref)
		if f, ok := payload.(Finalizer); ok {
			f.Finalize()
		}
	}

	// Free all payloads, collecting the handles they embedded, then drop
	// those handles in bulk. Intra-cycle decrements land on already freed
	// headers and recycle their slots; decrements crossing into survivors
	// behave like ordinary drops and are resolved after the pass.
	rt := &Tracer{heap: h, mode: traceRelease}
	it = condemned.Iterator()
	for it.HasNext() {
		slot := it.Next()
		hdr := h.slab.HeaderAt(slot)
		payload := hdr.Payload
		hdr.Payload = nil
		if p, ok := payload.(Traceable); ok {
			p.Trace(rt)
		}
		h.frees++
		h.metrics.RecordFree()
		h.logger.LogFree(ID(h.slab.RefAt(slot).ID()), typeName(payload))
	}
	for _, sr := range rt.strongRefs {
		h.dropStrong(sr)
	}
	for _, wr := range rt.weakRefs {
		h.dropWeak(wr)
	}
}

func (h *Heap) drainDeferred() {
	// Entries are idempotent; a release here may run finalize hooks that
	// append more entries or start a nested pass that drains the queue
	// itself first.
	for i := 0; i < len(h.deferred); i++ {
		ref := h.deferred[i]
		hdr := h.slab.Get(ref)
		if hdr == nil || hdr.Finalized || hdr.Strong > 0 {
			continue
		}
		h.releaseObject(ref)
	}
	h.deferred = h.deferred[:0]
}

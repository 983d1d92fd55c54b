package ouro

import (
	"sort"

	"github.com/ouroheap/ouro/internal/slab"
)

// Close tears the heap down: every live object is finalized in reverse
// allocation order and then freed, without cycle analysis, and all slot
// storage is returned to the resource controller. Handles and weak
// references surviving Close go stale. Close is idempotent; closing from
// inside a finalize hook while a pass is running returns ErrCollecting.
func (h *Heap) Close() error {
	if h == nil || h.state == stateClosed || h.state == stateClosing {
		return nil
	}
	if h.state == stateCollecting {
		return ErrCollecting
	}
	h.state = stateClosing

	live := h.slab.Live()
	type liveRef struct {
		ref slab.Ref
		seq uint64
	}
	refs := make([]liveRef, 0, live.GetCardinality())
	it := live.Iterator()
	for it.HasNext() {
		slot := it.Next()
		refs = append(refs, liveRef{ref: h.slab.RefAt(slot), seq: h.slab.HeaderAt(slot).Seq})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].seq > refs[j].seq })

	swept := len(refs)

	// Finalize everything, newest first, before anything is freed. Hooks
	// may still read neighbors regardless of allocation order.
	for _, lr := range refs {
		hdr := h.slab.Get(lr.ref)
		if hdr == nil || hdr.Finalized {
			continue
		}
		payload := hdr.Payload
		hdr.Finalized = true
		h.slab.Deregister(lr.ref)
		if f, ok := payload.(Finalizer); ok {
			f.Finalize()
		}
	}

	// Free payloads; slot storage goes wholesale below.
	for _, lr := range refs {
		hdr := h.slab.Get(lr.ref)
		if hdr == nil || hdr.Payload == nil {
			continue
		}
		name := typeName(hdr.Payload)
		hdr.Payload = nil
		h.frees++
		h.metrics.RecordFree()
		h.logger.LogFree(ID(lr.ref.ID()), name)
	}

	h.slab.Close()
	h.deferred = nil
	h.state = stateClosed

	h.metrics.RecordClose(swept)
	h.logger.LogClose(swept)
	return nil
}

// Package slab implements the slot table backing a managed heap.
//
// # Identity Model
//
// Objects live in dense uint32 slots. A Ref pairs a slot index with the
// slot's generation; the generation is bumped every time a slot returns to
// the freelist, so a Ref held across a release can be detected as stale
// instead of silently observing reused storage. Generation 0 is never
// issued: the zero Ref is always invalid.
//
// # Storage Model
//
// Headers are kept in a flat slice grown in fixed-size chunks. Each chunk
// reservation is metered through an optional MemoryAcquirer; a refused
// reservation fails the triggering Alloc and leaves the table unchanged.
// Slot storage is recycled through a freelist and only ever grows; headers
// whose payload is gone but whose weak count is not yet zero keep their slot
// out of the freelist.
//
// The slab is single-owner: callers serialize all access.
package slab

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unsafe"

	"github.com/RoaringBitmap/roaring/v2"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(ctx context.Context, amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrSlotsExhausted is returned when the slab cannot grow any further.
	ErrSlotsExhausted = errors.New("slab: slot space exhausted")
	// ErrClosed is returned when allocating from a closed slab.
	ErrClosed = errors.New("slab: closed")
)

const (
	// DefaultChunkSlots is the default number of headers added per growth step.
	DefaultChunkSlots = 1024

	// acquireTimeout bounds how long a chunk reservation may wait on the
	// memory acquirer before the allocation fails.
	acquireTimeout = 100 * time.Millisecond
)

// headerSize is the accounting cost of one slot.
var headerSize = int64(unsafe.Sizeof(Header{}))

// Ref is a stable reference to a slot. The zero Ref is invalid.
type Ref struct {
	Slot uint32
	Gen  uint32
}

// IsZero reports whether r is the invalid zero reference.
func (r Ref) IsZero() bool {
	return r.Gen == 0
}

// ID returns the packed identity of the referenced object. It is unique per
// object lifetime even when slots are reused.
func (r Ref) ID() uint64 {
	return uint64(r.Gen)<<32 | uint64(r.Slot)
}

// Header is the per-object bookkeeping record. Strong and Weak are reference
// counts, Seq is the allocation sequence number, Finalized marks that the
// finalize hook ran and the payload may no longer be exposed.
type Header struct {
	Strong    uint32
	Weak      uint32
	Gen       uint32
	Finalized bool
	Seq       uint64
	Payload   any
}

// Config holds slab settings.
type Config struct {
	// ChunkSlots is the number of headers added per growth step.
	// If 0, DefaultChunkSlots is used.
	ChunkSlots int

	// InitialSlots pre-reserves slot storage at construction.
	InitialSlots int

	// MaxSlots caps the total number of slots. If 0, the slab grows until
	// the slot index space is exhausted.
	MaxSlots int

	// Acquirer meters chunk reservations. If nil, growth is unmetered.
	Acquirer MemoryAcquirer
}

// Slab is a slot table with generation-checked references.
type Slab struct {
	cfg      Config
	headers  []Header
	free     []uint32
	live     *roaring.Bitmap
	seq      uint64
	reserved int64
	closed   bool
}

// New creates a slab, pre-reserving InitialSlots of storage if configured.
func New(cfg Config) (*Slab, error) {
	if cfg.ChunkSlots <= 0 {
		cfg.ChunkSlots = DefaultChunkSlots
	}
	s := &Slab{
		cfg:  cfg,
		live: roaring.New(),
	}
	for len(s.headers) < cfg.InitialSlots {
		if err := s.grow(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Alloc places payload into a fresh slot with Strong=1 and registers it in
// the live set. On failure nothing is registered.
func (s *Slab) Alloc(payload any) (Ref, error) {
	if s.closed {
		return Ref{}, ErrClosed
	}

	if len(s.free) == 0 {
		if err := s.grow(); err != nil {
			return Ref{}, err
		}
	}

	slot := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]

	h := &s.headers[slot]
	if h.Gen == 0 {
		h.Gen = 1
	}
	s.seq++
	h.Strong = 1
	h.Weak = 0
	h.Finalized = false
	h.Seq = s.seq
	h.Payload = payload

	s.live.Add(slot)
	return Ref{Slot: slot, Gen: h.Gen}, nil
}

func (s *Slab) grow() error {
	oldLen := len(s.headers)
	newLen := oldLen + s.cfg.ChunkSlots

	if s.cfg.MaxSlots > 0 && newLen > s.cfg.MaxSlots {
		newLen = s.cfg.MaxSlots
	}
	if newLen > math.MaxUint32 {
		newLen = math.MaxUint32
	}
	if newLen <= oldLen {
		return ErrSlotsExhausted
	}

	if s.cfg.Acquirer != nil {
		bytes := int64(newLen-oldLen) * headerSize
		ctx, cancel := context.WithTimeout(context.Background(), acquireTimeout)
		defer cancel()
		if err := s.cfg.Acquirer.AcquireMemory(ctx, bytes); err != nil {
			return fmt.Errorf("slab: reserve %d slots: %w", newLen-oldLen, err)
		}
		s.reserved += bytes
	}

	s.headers = append(s.headers, make([]Header, newLen-oldLen)...)

	// Push in reverse so slots are handed out in ascending order.
	for i := newLen - 1; i >= oldLen; i-- {
		s.free = append(s.free, uint32(i))
	}
	return nil
}

// Get returns the header for r, or nil if r is zero, out of range, or stale.
func (s *Slab) Get(r Ref) *Header {
	if r.IsZero() || int(r.Slot) >= len(s.headers) {
		return nil
	}
	h := &s.headers[r.Slot]
	if h.Gen != r.Gen {
		return nil
	}
	return h
}

// HeaderAt returns the header at slot without a generation check. The slot
// must be in range; live-set iteration guarantees that.
func (s *Slab) HeaderAt(slot uint32) *Header {
	return &s.headers[slot]
}

// RefAt returns the current-generation reference for slot.
func (s *Slab) RefAt(slot uint32) Ref {
	return Ref{Slot: slot, Gen: s.headers[slot].Gen}
}

// Deregister removes r from the live set. Stale refs are ignored.
func (s *Slab) Deregister(r Ref) {
	if s.Get(r) == nil {
		return
	}
	s.live.Remove(r.Slot)
}

// Release returns r's slot to the freelist, bumping the generation so every
// outstanding Ref to it becomes stale. Stale refs are ignored.
func (s *Slab) Release(r Ref) {
	h := s.Get(r)
	if h == nil {
		return
	}

	s.live.Remove(r.Slot)

	h.Gen++
	if h.Gen == 0 { // generation wrapped
		h.Gen = 1
	}
	h.Strong = 0
	h.Weak = 0
	h.Finalized = false
	h.Seq = 0
	h.Payload = nil

	s.free = append(s.free, r.Slot)
}

// Live returns a snapshot of the live set.
func (s *Slab) Live() *roaring.Bitmap {
	return s.live.Clone()
}

// LiveContains reports whether slot is registered.
func (s *Slab) LiveContains(slot uint32) bool {
	return s.live.Contains(slot)
}

// LiveCount returns the number of registered objects.
func (s *Slab) LiveCount() int {
	return int(s.live.GetCardinality())
}

// Len returns the total number of slots, free or not.
func (s *Slab) Len() int {
	return len(s.headers)
}

// Reserved returns the bytes currently reserved from the acquirer.
func (s *Slab) Reserved() int64 {
	return s.reserved
}

// Close drops all slot storage and returns the reservation to the acquirer.
// Every outstanding Ref becomes stale. Close is idempotent.
func (s *Slab) Close() {
	if s.closed {
		return
	}
	s.closed = true

	if s.cfg.Acquirer != nil && s.reserved > 0 {
		s.cfg.Acquirer.ReleaseMemory(s.reserved)
	}
	s.reserved = 0
	s.headers = nil
	s.free = nil
	s.live.Clear()
}

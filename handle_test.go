package ouro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandle(t *testing.T) {
	t.Run("ZeroHandle", func(t *testing.T) {
		var z Handle[*leaf]

		assert.True(t, z.IsZero())
		assert.Equal(t, ID(0), z.ID())
		assert.True(t, z.Clone().IsZero())
		assert.True(t, z.Downgrade().IsZero())
		assert.NotPanics(t, func() { z.Drop() })
		assert.PanicsWithValue(t, "ouro: nil handle", func() { z.Value() })
	})

	t.Run("CloneKeepsAlive", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 9})
		require.NoError(t, err)
		dup := a.Clone()
		require.Equal(t, a.ID(), dup.ID())

		a.Drop()
		assert.Equal(t, 1, h.Stats().Live)
		assert.Equal(t, 9, dup.Value().v)

		dup.Drop()
		assert.Equal(t, 0, h.Stats().Live)
	})

	t.Run("ValuePanicsOnFinalized", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{})
		require.NoError(t, err)
		w := a.Downgrade()

		// The weak reference keeps the slot alive, so the dropped handle
		// still resolves to a header, just a finalized one.
		a.Drop()
		assert.PanicsWithValue(t, "ouro: access to finalized object", func() { a.Value() })

		w.Drop()
	})

	t.Run("UnbalancedDropPanics", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{})
		require.NoError(t, err)
		w := a.Downgrade()

		a.Drop()
		assert.PanicsWithValue(t, "ouro: unbalanced handle drop", func() { a.Drop() })

		w.Drop()
	})

	t.Run("StaleAfterSlotRelease", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{})
		require.NoError(t, err)
		a.Drop()

		// With no weak references the slot is gone entirely; operations on
		// the stale handle are either no-ops or panics, never silent reads.
		assert.NotPanics(t, func() { a.Drop() })
		assert.PanicsWithValue(t, "ouro: stale handle (object was reclaimed)", func() { a.Value() })
		assert.PanicsWithValue(t, "ouro: stale handle (object was reclaimed)", func() { a.Clone() })
		assert.PanicsWithValue(t, "ouro: stale handle (object was reclaimed)", func() { a.Downgrade() })
	})

	t.Run("SlotReuseKeepsIdentityFresh", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 1})
		require.NoError(t, err)
		aRef, aID := a.ref, a.ID()
		a.Drop()

		b, err := Alloc(h, &leaf{v: 2})
		require.NoError(t, err)

		// The freelist hands the same slot back, under a new generation.
		assert.Equal(t, aRef.Slot, b.ref.Slot)
		assert.NotEqual(t, aRef.Gen, b.ref.Gen)
		assert.NotEqual(t, aID, b.ID())

		b.Drop()
	})
}

func TestWeak(t *testing.T) {
	t.Run("ZeroWeak", func(t *testing.T) {
		var z Weak[*leaf]

		assert.True(t, z.IsZero())
		assert.Equal(t, ID(0), z.ID())
		assert.True(t, z.Clone().IsZero())
		assert.NotPanics(t, func() { z.Drop() })

		_, ok := z.Upgrade()
		assert.False(t, ok)
	})

	t.Run("UpgradeWhileAlive", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 3})
		require.NoError(t, err)
		w := a.Downgrade()
		require.Equal(t, a.ID(), w.ID())

		up, ok := w.Upgrade()
		require.True(t, ok)
		assert.Equal(t, 3, up.Value().v)

		up.Drop()
		a.Drop()
		w.Drop()
	})

	t.Run("DoesNotKeepAlive", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{})
		require.NoError(t, err)
		w := a.Downgrade()

		a.Drop()
		assert.Equal(t, 0, h.Stats().Live)

		_, ok := w.Upgrade()
		assert.False(t, ok)
		w.Drop()
	})

	t.Run("SelfWeakNeedsNoPass", func(t *testing.T) {
		h := newTestHeap(t)

		p, err := Alloc(h, &probe{})
		require.NoError(t, err)
		p.Value().weak = p.Downgrade()

		// A weak self reference is not a cycle; the drop frees eagerly and
		// the release walk drops the embedded weak, recycling the slot.
		p.Drop()
		assert.Equal(t, 0, h.Stats().Live)
		assert.Equal(t, uint64(1), h.Stats().Frees)
	})

	t.Run("CloneAfterObjectDied", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{})
		require.NoError(t, err)
		w1 := a.Downgrade()
		a.Drop()

		w2 := w1.Clone()
		_, ok := w2.Upgrade()
		assert.False(t, ok)

		w1.Drop()
		w2.Drop()

		// The last weak drop released the slot; a new resident there must
		// not be visible through the old references.
		b, err := Alloc(h, &leaf{v: 8})
		require.NoError(t, err)
		_, ok = w1.Upgrade()
		assert.False(t, ok)
		b.Drop()
	})
}

func TestCell(t *testing.T) {
	t.Run("SetDropsPrevious", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 1})
		require.NoError(t, err)
		b, err := Alloc(h, &leaf{v: 2})
		require.NoError(t, err)

		var c Cell[*leaf]
		assert.True(t, c.IsEmpty())

		c.Set(a)
		assert.Equal(t, 2, h.Stats().Live)

		c.Set(b)
		assert.Equal(t, 1, h.Stats().Live)
		assert.Equal(t, 2, c.Get().Value().v)

		c.Clear()
		assert.Equal(t, 0, h.Stats().Live)
		assert.True(t, c.IsEmpty())
	})

	t.Run("SetSameHandleIsNoop", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 1})
		require.NoError(t, err)

		var c Cell[*leaf]
		c.Set(a)
		c.Set(a)

		assert.Equal(t, 1, h.Stats().Live)
		assert.Equal(t, 1, c.Get().Value().v)
		c.Clear()
	})

	t.Run("SetCloneOfHeldKeepsCallerOwnership", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 1})
		require.NoError(t, err)

		var c Cell[*leaf]
		c.Set(a)

		// The no-op did not consume the clone; without this drop the object
		// could never be freed.
		dup := c.Get().Clone()
		c.Set(dup)
		dup.Drop()

		assert.Equal(t, 1, h.Stats().Live)
		c.Clear()
		assert.Equal(t, 0, h.Stats().Live)
	})

	t.Run("TakeTransfersOwnership", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 1})
		require.NoError(t, err)

		var c Cell[*leaf]
		c.Set(a)

		got := c.Take()
		assert.True(t, c.IsEmpty())
		assert.Equal(t, 1, h.Stats().Live)

		got.Drop()
		assert.Equal(t, 0, h.Stats().Live)
	})

	t.Run("GetBorrows", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &leaf{v: 5})
		require.NoError(t, err)

		var c Cell[*leaf]
		c.Set(a)

		// Get does not create a reference; reading it twice changes nothing.
		assert.Equal(t, 5, c.Get().Value().v)
		assert.Equal(t, 5, c.Get().Value().v)
		assert.Equal(t, 1, h.Stats().Live)

		c.Clear()
	})
}

func TestCascade(t *testing.T) {
	t.Run("ChainFreesOutsideIn", func(t *testing.T) {
		var trail []string
		h := newTestHeap(t)

		c, err := Alloc(h, mkProbe(&trail, "c"))
		require.NoError(t, err)
		b, err := Alloc(h, mkProbe(&trail, "b"))
		require.NoError(t, err)
		b.Value().next.Set(c)
		a, err := Alloc(h, mkProbe(&trail, "a"))
		require.NoError(t, err)
		a.Value().next.Set(b)

		require.Equal(t, 3, h.Stats().Live)
		require.Empty(t, trail)

		a.Drop()
		assert.Equal(t, []string{"a", "b", "c"}, trail)
		assert.Equal(t, 0, h.Stats().Live)
		assert.Equal(t, uint64(3), h.Stats().Frees)
	})

	t.Run("SharedTailSurvivesPartialDrop", func(t *testing.T) {
		var trail []string
		h := newTestHeap(t)

		tail, err := Alloc(h, mkProbe(&trail, "tail"))
		require.NoError(t, err)
		left, err := Alloc(h, mkProbe(&trail, "left"))
		require.NoError(t, err)
		left.Value().next.Set(tail.Clone())
		right, err := Alloc(h, mkProbe(&trail, "right"))
		require.NoError(t, err)
		right.Value().next.Set(tail)

		left.Drop()
		assert.Equal(t, []string{"left"}, trail)
		assert.Equal(t, 2, h.Stats().Live)

		right.Drop()
		assert.Equal(t, []string{"left", "right", "tail"}, trail)
		assert.Equal(t, 0, h.Stats().Live)
	})

	t.Run("WeakBackEdgeFreesEagerly", func(t *testing.T) {
		var trail []string
		h := newTestHeap(t)

		parent, err := Alloc(h, mkProbe(&trail, "parent"))
		require.NoError(t, err)
		child, err := Alloc(h, mkProbe(&trail, "child"))
		require.NoError(t, err)

		child.Value().weak = parent.Downgrade()
		parent.Value().next.Set(child)

		// Parent owns child strongly, child points back weakly. That is not
		// a cycle, so no collection pass is needed.
		parent.Drop()
		assert.Equal(t, []string{"parent", "child"}, trail)
		assert.Equal(t, 0, h.Stats().Live)
	})

	t.Run("HandleSliceIsOwned", func(t *testing.T) {
		var trail []string
		h := newTestHeap(t)

		k1, err := Alloc(h, mkProbe(&trail, "k1"))
		require.NoError(t, err)
		k2, err := Alloc(h, mkProbe(&trail, "k2"))
		require.NoError(t, err)
		root, err := Alloc(h, mkProbe(&trail, "root"))
		require.NoError(t, err)
		root.Value().kids = append(root.Value().kids, k1, k2)

		root.Drop()
		assert.Equal(t, []string{"root", "k1", "k2"}, trail)
		assert.Equal(t, 0, h.Stats().Live)
	})
}

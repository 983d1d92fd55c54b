package ouro

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot(t *testing.T) {
	t.Run("Graph", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &probe{})
		require.NoError(t, err)
		b, err := Alloc(h, &probe{})
		require.NoError(t, err)
		bID := b.ID()

		w := a.Downgrade()
		a.Value().next.Set(b)

		snap := h.Snapshot()
		require.Len(t, snap.Objects, 2)
		assert.False(t, snap.TakenAt.IsZero())

		byID := make(map[ID]ObjectInfo, len(snap.Objects))
		for _, o := range snap.Objects {
			byID[o.ID] = o
		}

		ai, ok := byID[a.ID()]
		require.True(t, ok)
		assert.Equal(t, "*ouro.probe", ai.Type)
		assert.Equal(t, uint32(1), ai.Strong)
		assert.Equal(t, uint32(1), ai.Weak)
		assert.Equal(t, uint32(0), ai.Internal)
		assert.True(t, ai.IsRoot())
		assert.Equal(t, []ID{bID}, ai.Refs)

		bi, ok := byID[bID]
		require.True(t, ok)
		assert.Equal(t, uint32(1), bi.Strong)
		assert.Equal(t, uint32(1), bi.Internal)
		assert.False(t, bi.IsRoot())
		assert.Empty(t, bi.Refs)

		w.Drop()
		a.Drop()
	})

	t.Run("CycleHasNoRoots", func(t *testing.T) {
		h := newTestHeap(t)

		a, err := Alloc(h, &probe{})
		require.NoError(t, err)
		b, err := Alloc(h, &probe{})
		require.NoError(t, err)
		a.Value().next.Set(b.Clone())
		b.Value().next.Set(a.Clone())
		a.Drop()
		b.Drop()

		snap := h.Snapshot()
		require.Len(t, snap.Objects, 2)
		for _, o := range snap.Objects {
			assert.False(t, o.IsRoot())
		}

		// Taking the snapshot decided nothing; the cycle is still there
		// until a pass collects it.
		assert.Equal(t, 2, h.Stats().Live)
		h.Collect()
		assert.Equal(t, 0, h.Stats().Live)
	})

	t.Run("EmptyDuringPass", func(t *testing.T) {
		h := newTestHeap(t)

		var during Snapshot
		p, err := Alloc(h, &probe{fin: func() { during = h.Snapshot() }})
		require.NoError(t, err)
		p.Value().next.Set(p.Clone())
		p.Drop()

		h.Collect()
		assert.Empty(t, during.Objects)
	})

	t.Run("EmptyAfterClose", func(t *testing.T) {
		h := newTestHeap(t)

		_, err := Alloc(h, &leaf{})
		require.NoError(t, err)
		require.NoError(t, h.Close())

		snap := h.Snapshot()
		assert.Empty(t, snap.Objects)
	})

	t.Run("CountsPasses", func(t *testing.T) {
		h := newTestHeap(t)

		h.Collect()
		h.Collect()

		snap := h.Snapshot()
		assert.Equal(t, uint64(2), snap.Passes)
	})
}

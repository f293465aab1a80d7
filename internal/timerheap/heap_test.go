// File: internal/timerheap/heap_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package timerheap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	node Node
	id   int
}

func (e *entry) HeapNode() *Node { return &e.node }

func newEntries(expires ...int64) []*entry {
	out := make([]*entry, len(expires))
	for i, x := range expires {
		out[i] = &entry{node: Node{Expires: x}, id: i}
	}
	return out
}

func drain(t *testing.T, h *Heap[*entry]) []int64 {
	t.Helper()
	var out []int64
	for h.Len() > 0 {
		e, ok := h.PopDue(1 << 62)
		require.True(t, ok)
		require.False(t, e.node.Scheduled())
		out = append(out, e.node.Expires)
		require.NoError(t, h.Verify())
	}
	return out
}

func TestHeapOrdersAnyPermutation(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		n := 1 + rng.Intn(600)
		expires := make([]int64, n)
		for i := range expires {
			expires[i] = int64(rng.Intn(1000))
		}
		var h Heap[*entry]
		for _, e := range newEntries(expires...) {
			require.NoError(t, h.Push(e))
		}
		require.NoError(t, h.Verify())
		got := drain(t, &h)
		require.Len(t, got, n)
		for i := 1; i < len(got); i++ {
			assert.LessOrEqual(t, got[i-1], got[i])
		}
	}
}

func TestHeapPeekIsSoonest(t *testing.T) {
	var h Heap[*entry]
	_, ok := h.Peek()
	assert.False(t, ok)

	es := newEntries(50, 20, 70, 10, 30)
	for _, e := range es {
		require.NoError(t, h.Push(e))
	}
	root, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, int64(10), root.node.Expires)
	assert.Equal(t, 1, root.node.Index())

	require.NoError(t, h.Remove(es[3]))
	root, _ = h.Peek()
	assert.Equal(t, int64(20), root.node.Expires)
}

func TestHeapPopDueRespectsNow(t *testing.T) {
	var h Heap[*entry]
	for _, e := range newEntries(100, 200) {
		require.NoError(t, h.Push(e))
	}
	_, ok := h.PopDue(99)
	assert.False(t, ok)
	e, ok := h.PopDue(100)
	require.True(t, ok)
	assert.Equal(t, int64(100), e.node.Expires)
	_, ok = h.PopDue(150)
	assert.False(t, ok)
	assert.Equal(t, 1, h.Len())
}

func TestHeapRemoveArbitrary(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	expires := make([]int64, 300)
	for i := range expires {
		expires[i] = int64(rng.Intn(500))
	}
	es := newEntries(expires...)
	var h Heap[*entry]
	for _, e := range es {
		require.NoError(t, h.Push(e))
	}

	removed := map[int]bool{}
	for _, i := range rng.Perm(len(es))[:150] {
		require.NoError(t, h.Remove(es[i]))
		removed[i] = true
		require.NoError(t, h.Verify())
	}
	assert.Equal(t, 150, h.Len())

	got := drain(t, &h)
	var want []int64
	for i, e := range es {
		if !removed[i] {
			want = append(want, e.node.Expires)
		}
	}
	assert.ElementsMatch(t, want, got)
}

func TestHeapMisuse(t *testing.T) {
	var h Heap[*entry]
	es := newEntries(1, 2)
	require.NoError(t, h.Push(es[0]))
	assert.ErrorIs(t, h.Push(es[0]), ErrScheduled)
	assert.ErrorIs(t, h.Remove(es[1]), ErrNotScheduled)

	// forge a slot that points at another item
	es[1].node.index = 1
	assert.ErrorIs(t, h.Remove(es[1]), ErrCorrupt)
	es[1].node.index = 5
	assert.ErrorIs(t, h.Remove(es[1]), ErrCorrupt)
}

func TestHeapReschedule(t *testing.T) {
	var h Heap[*entry]
	es := newEntries(10, 20, 30)
	for _, e := range es {
		require.NoError(t, h.Push(e))
	}
	require.NoError(t, h.Remove(es[0]))
	es[0].node.Expires = 40
	require.NoError(t, h.Push(es[0]))
	assert.Equal(t, []int64{20, 30, 40}, drain(t, &h))
}

func TestRadixGrowShrink(t *testing.T) {
	var a radixArray[int]
	assert.Equal(t, 0, a.capacity())
	a.grow(1)
	assert.Equal(t, 1, a.depth)
	a.grow(radixSize)
	assert.Equal(t, 2, a.depth)
	a.grow(radixSize * radixSize)
	assert.Equal(t, 3, a.depth)

	for _, i := range []int{0, 1, radixSize - 1, radixSize, radixSize*radixSize + 3} {
		*a.at(i) = i + 1
	}
	for _, i := range []int{0, 1, radixSize - 1, radixSize, radixSize*radixSize + 3} {
		assert.Equal(t, i+1, *a.at(i))
	}

	a.shrink(radixSize + 1)
	assert.Equal(t, 2, a.depth)
	assert.Equal(t, radixSize+1, *a.at(radixSize))
	a.shrink(1)
	assert.Equal(t, 1, a.depth)
	assert.Equal(t, 2, *a.at(1))
}

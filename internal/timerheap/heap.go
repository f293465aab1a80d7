// File: internal/timerheap/heap.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Index-addressable binary min-heap over absolute expiry times.

// Package timerheap implements the timer priority structure used by the
// reactor: a binary min-heap keyed on absolute expiry, stored in a
// radix-indexed array so every scheduled item always knows its own heap slot.
package timerheap

import "errors"

var (
	// ErrScheduled is returned when pushing an item that is already in a heap.
	ErrScheduled = errors.New("timerheap: item already scheduled")
	// ErrNotScheduled is returned when removing an item that is not in a heap.
	ErrNotScheduled = errors.New("timerheap: item not scheduled")
	// ErrCorrupt is returned when an item's recorded slot holds another item.
	ErrCorrupt = errors.New("timerheap: heap slot does not hold item")
)

// Node carries the heap bookkeeping of one item. The zero value is an
// unscheduled node.
type Node struct {
	// Expires is the absolute expiry, in clock nanoseconds.
	Expires int64
	index   int
}

// Scheduled reports whether the node currently sits in a heap.
func (n *Node) Scheduled() bool { return n.index != 0 }

// Index returns the 1-based heap slot, or 0 when unscheduled.
func (n *Node) Index() int { return n.index }

// Item is anything embedding a Node.
type Item interface {
	HeapNode() *Node
}

// Heap is a min-heap of items ordered by Node.Expires. Ties are unordered.
// The root lives at slot 1. Not safe for concurrent use.
type Heap[T Item] struct {
	cells radixArray[T]
	count int
}

// Len returns the number of scheduled items.
func (h *Heap[T]) Len() int { return h.count }

// Push schedules item.
func (h *Heap[T]) Push(item T) error {
	n := item.HeapNode()
	if n.index != 0 {
		return ErrScheduled
	}
	h.count++
	h.cells.grow(h.count)
	*h.cells.at(h.count) = item
	n.index = h.count
	h.siftUp(h.count)
	return nil
}

// Remove cancels item, which must currently be scheduled in h.
func (h *Heap[T]) Remove(item T) error {
	n := item.HeapNode()
	if n.index == 0 {
		return ErrNotScheduled
	}
	if n.index > h.count {
		return ErrCorrupt
	}
	slot := h.cells.at(n.index)
	if (*slot).HeapNode() != n {
		return ErrCorrupt
	}

	index := n.index
	last := h.cells.at(h.count)
	var zero T
	if index != h.count {
		*slot = *last
		(*slot).HeapNode().index = index
	}
	*last = zero
	h.count--
	n.index = 0

	if index <= h.count {
		h.siftDown(h.siftUp(index))
	}
	h.cells.shrink(h.count + 1)
	return nil
}

// Peek returns the item with the earliest expiry.
func (h *Heap[T]) Peek() (item T, ok bool) {
	if h.count == 0 {
		return item, false
	}
	return *h.cells.at(1), true
}

// PopDue removes and returns the root if it expires at or before now.
func (h *Heap[T]) PopDue(now int64) (item T, ok bool) {
	root, ok := h.Peek()
	if !ok || root.HeapNode().Expires > now {
		return item, false
	}
	if err := h.Remove(root); err != nil {
		panic(err)
	}
	return root, true
}

// Verify checks the heap-order and back-index invariants over every slot.
func (h *Heap[T]) Verify() error {
	for i := 1; i <= h.count; i++ {
		n := (*h.cells.at(i)).HeapNode()
		if n.index != i {
			return ErrCorrupt
		}
		if i > 1 && (*h.cells.at(i / 2)).HeapNode().Expires > n.Expires {
			return errors.New("timerheap: heap order violated")
		}
	}
	return nil
}

func (h *Heap[T]) siftUp(index int) int {
	for index > 1 {
		parent := index / 2
		p, c := h.cells.at(parent), h.cells.at(index)
		if (*p).HeapNode().Expires <= (*c).HeapNode().Expires {
			break
		}
		h.swap(p, c, parent, index)
		index = parent
	}
	return index
}

func (h *Heap[T]) siftDown(index int) {
	for {
		least := index
		for _, child := range [2]int{2 * index, 2*index + 1} {
			if child <= h.count &&
				(*h.cells.at(child)).HeapNode().Expires < (*h.cells.at(least)).HeapNode().Expires {
				least = child
			}
		}
		if least == index {
			return
		}
		h.swap(h.cells.at(index), h.cells.at(least), index, least)
		index = least
	}
}

func (h *Heap[T]) swap(a, b *T, ai, bi int) {
	*a, *b = *b, *a
	(*a).HeapNode().index = ai
	(*b).HeapNode().index = bi
}

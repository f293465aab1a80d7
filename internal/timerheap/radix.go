// File: internal/timerheap/radix.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Radix-indexed cell storage backing the timer heap. Cell N is reached by
// walking one radix level per radixBits bits of N, so the storage never has
// to be contiguous and never has to move existing cells when it grows.

package timerheap

const (
	radixBits = 7
	radixSize = 1 << radixBits
	radixMask = radixSize - 1
)

// radixNode is an interior level; children are either *radixNode or *radixLeaf.
type radixNode struct {
	child [radixSize]any
}

type radixLeaf[T any] struct {
	cell [radixSize]T
}

// radixArray is a sparse array of T addressed by non-negative index.
type radixArray[T any] struct {
	root  any
	depth int // number of levels, leaf level included; 0 when empty
}

// capacity returns how many cells are addressable at the current depth.
func (a *radixArray[T]) capacity() int {
	if a.depth == 0 {
		return 0
	}
	c := 1
	for i := 0; i < a.depth; i++ {
		c <<= radixBits
	}
	return c
}

// grow adds radix levels until index is addressable.
func (a *radixArray[T]) grow(index int) {
	for index >= a.capacity() {
		if a.depth == 0 {
			a.root = new(radixLeaf[T])
			a.depth = 1
			continue
		}
		n := new(radixNode)
		n.child[0] = a.root
		a.root = n
		a.depth++
	}
}

// shrink drops top radix levels while every index below count fits in a
// shallower tree. The bottom level is kept.
func (a *radixArray[T]) shrink(count int) {
	for a.depth > 1 && count <= a.capacity()>>radixBits {
		n := a.root.(*radixNode)
		a.root = n.child[0]
		a.depth--
	}
}

// at returns a pointer to cell index, allocating intermediate levels as needed.
// The index must be addressable, see grow.
func (a *radixArray[T]) at(index int) *T {
	node := a.root
	for level := a.depth - 1; level > 0; level-- {
		n := node.(*radixNode)
		slot := (index >> (level * radixBits)) & radixMask
		next := n.child[slot]
		if next == nil {
			if level == 1 {
				next = new(radixLeaf[T])
			} else {
				next = new(radixNode)
			}
			n.child[slot] = next
		}
		node = next
	}
	return &node.(*radixLeaf[T]).cell[index&radixMask]
}

package common

import "container/heap"

// Ordered is satisfied by any type that can compare itself against another
// value of the same type, returning a negative, zero, or positive int the
// way sort.Interface-style comparators do.
type Ordered[T any] interface {
	CompareTo(other T) int
}

// Heap is a generic min-heap: Pop always returns the smallest element
// according to CompareTo.
type Heap[T Ordered[T]] struct {
	items innerHeap[T]
}

// NewHeap builds an empty Heap.
func NewHeap[T Ordered[T]]() *Heap[T] {
	h := &Heap[T]{}
	heap.Init(&h.items)
	return h
}

// Len returns the number of elements in the heap.
func (h *Heap[T]) Len() int { return h.items.Len() }

// Push adds v to the heap.
func (h *Heap[T]) Push(v T) { heap.Push(&h.items, v) }

// Pop removes and returns the smallest element.
func (h *Heap[T]) Pop() T { return heap.Pop(&h.items).(T) }

// Peek returns the smallest element without removing it.
func (h *Heap[T]) Peek() T { return h.items[0] }

type innerHeap[T Ordered[T]] []T

func (h innerHeap[T]) Len() int            { return len(h) }
func (h innerHeap[T]) Less(i, j int) bool  { return h[i].CompareTo(h[j]) < 0 }
func (h innerHeap[T]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *innerHeap[T]) Push(x interface{}) { *h = append(*h, x.(T)) }
func (h *innerHeap[T]) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

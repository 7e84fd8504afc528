// Package heap provides an array-backed binary min-heap ordered by a
// caller-supplied comparator. The heap does not own its elements and is not
// safe for concurrent use.
package heap

// Heap is a binary min-heap. For every non-root element e with parent p,
// cmp(p, e) <= 0.
type Heap[T any] struct {
	cmp   func(a, b T) int
	items []T
}

// New creates an empty heap ordered by cmp, which returns a negative value
// when a orders before b, zero when equal, and a positive value otherwise.
func New[T any](cmp func(a, b T) int) *Heap[T] {
	if cmp == nil {
		panic("heap: nil comparator")
	}
	return &Heap[T]{cmp: cmp}
}

// Len returns the number of elements.
func (h *Heap[T]) Len() int { return len(h.items) }

// IsEmpty reports whether the heap holds no elements.
func (h *Heap[T]) IsEmpty() bool { return len(h.items) == 0 }

// Push adds x, maintaining the heap invariant.
func (h *Heap[T]) Push(x T) {
	h.items = append(h.items, x)
	h.up(len(h.items) - 1)
}

// Peek returns the minimum element without removing it.
// Panics if the heap is empty.
func (h *Heap[T]) Peek() T {
	if len(h.items) == 0 {
		panic("heap: Peek on empty heap")
	}
	return h.items[0]
}

// Pop removes and returns the minimum element.
// Panics if the heap is empty.
func (h *Heap[T]) Pop() T {
	if len(h.items) == 0 {
		panic("heap: Pop on empty heap")
	}
	root := h.items[0]
	h.removeAt(0)
	return root
}

// Remove deletes the first element, in array order, for which match returns
// true. It reports false if no element matched.
func (h *Heap[T]) Remove(match func(T) bool) (T, bool) {
	for i, x := range h.items {
		if match(x) {
			h.removeAt(i)
			return x, true
		}
	}
	var zero T
	return zero, false
}

// removeAt swaps index i with the last element, shrinks the heap and repairs
// the invariant at i. The replacement may belong above or below i, so both
// directions are tried.
func (h *Heap[T]) removeAt(i int) {
	last := len(h.items) - 1
	h.swap(i, last)
	var zero T
	h.items[last] = zero
	h.items = h.items[:last]
	if i < last {
		h.up(i)
		h.down(i)
	}
}

func (h *Heap[T]) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.cmp(h.items[i], h.items[parent]) >= 0 {
			return
		}
		h.swap(i, parent)
		i = parent
	}
}

func (h *Heap[T]) down(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			return
		}
		child := left
		// Ties go to the left child.
		if right := left + 1; right < n && h.cmp(h.items[left], h.items[right]) > 0 {
			child = right
		}
		if h.cmp(h.items[i], h.items[child]) <= 0 {
			return
		}
		h.swap(i, child)
		i = child
	}
}

func (h *Heap[T]) swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
}

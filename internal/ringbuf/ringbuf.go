// Package ringbuf provides a fixed-capacity FIFO that evicts its oldest element on overflow.
package ringbuf

// Buffer is not safe for concurrent use.
type Buffer[T any] struct {
	items []T
	head  int // index of the oldest element
	size  int
}

// New returns an empty buffer. Capacity below one is raised to one.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full. It reports whether an element was evicted.
func (b *Buffer[T]) Push(v T) bool {
	c := len(b.items)
	if b.size < c {
		b.items[(b.head+b.size)%c] = v
		b.size++
		return false
	}
	b.items[b.head] = v
	b.head = (b.head + 1) % c
	return true
}

func (b *Buffer[T]) Len() int { return b.size }

func (b *Buffer[T]) Cap() int { return len(b.items) }

func (b *Buffer[T]) Full() bool { return b.size == len(b.items) }

// At returns the i-th oldest element. It panics when i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ringbuf: index out of range")
	}
	return b.items[(b.head+i)%len(b.items)]
}

// Last returns the newest element.
func (b *Buffer[T]) Last() (T, bool) {
	var zero T
	if b.size == 0 {
		return zero, false
	}
	return b.At(b.size - 1), true
}

// Slice copies the contents oldest first.
func (b *Buffer[T]) Slice() []T {
	out := make([]T, b.size)
	for i := range out {
		out[i] = b.At(i)
	}
	return out
}

// Tail copies the newest n elements, oldest first.
func (b *Buffer[T]) Tail(n int) []T {
	if n > b.size {
		n = b.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]T, n)
	start := b.size - n
	for i := range out {
		out[i] = b.At(start + i)
	}
	return out
}

package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_PushEvictsOldest(t *testing.T) {
	// Arrange
	b := New[int](3)

	// Act
	evicted := make([]bool, 0, 5)
	for i := 1; i <= 5; i++ {
		evicted = append(evicted, b.Push(i))
	}

	// Assert
	assert.Equal(t, []bool{false, false, false, true, true}, evicted)
	assert.Equal(t, 3, b.Len())
	assert.True(t, b.Full())
	assert.Equal(t, []int{3, 4, 5}, b.Slice())
	assert.Equal(t, []int{4, 5}, b.Tail(2))
	assert.Equal(t, []int{3, 4, 5}, b.Tail(10))
	last, ok := b.Last()
	assert.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestBuffer_Empty(t *testing.T) {
	b := New[string](0)

	_, ok := b.Last()

	assert.False(t, ok)
	assert.Equal(t, 1, b.Cap())
	assert.Empty(t, b.Slice())
	assert.Panics(t, func() { b.At(0) })
}

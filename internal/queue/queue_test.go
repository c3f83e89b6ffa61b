package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/ossched/pkg/model"
)

func TestBounded_FIFO(t *testing.T) {
	q := New[int](3)
	require.NoError(t, q.Enqueue(10))
	require.NoError(t, q.Enqueue(20))
	require.NoError(t, q.Enqueue(30))
	assert.Equal(t, 3, q.Size())

	for _, want := range []int{10, 20, 30} {
		got, err := q.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.True(t, q.IsEmpty())
}

func TestBounded_CapacityError(t *testing.T) {
	q := NewLevel[string](2, 4)
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))

	err := q.Enqueue("c")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrCapacity))

	var ce *model.CapacityError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 4, ce.Level)
	assert.Equal(t, 2, ce.Capacity)

	// The rejected item must not have overwritten anything.
	assert.Equal(t, []string{"a", "b"}, q.Items())
}

func TestBounded_EmptyError(t *testing.T) {
	q := New[int](1)
	_, err := q.Dequeue()
	assert.ErrorIs(t, err, model.ErrEmpty)

	_, ok := q.Peek()
	assert.False(t, ok)
}

func TestBounded_WrapAround(t *testing.T) {
	q := New[int](3)
	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(i))
		if i%2 == 1 {
			v, err := q.Dequeue()
			require.NoError(t, err)
			require.NoError(t, q.Enqueue(v+100))
		}
		if q.Size() == q.Cap() {
			q.Dequeue()
		}
	}
	items := q.Items()
	assert.Len(t, items, q.Size())
	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, items[0], head)
}

func TestBounded_OrderAfterWrap(t *testing.T) {
	q := New[int](2)
	require.NoError(t, q.Enqueue(1))
	require.NoError(t, q.Enqueue(2))
	v, _ := q.Dequeue()
	assert.Equal(t, 1, v)
	require.NoError(t, q.Enqueue(3))
	assert.Equal(t, []int{2, 3}, q.Items())
	v, _ = q.Dequeue()
	assert.Equal(t, 2, v)
	v, _ = q.Dequeue()
	assert.Equal(t, 3, v)
}

func TestBounded_Reset(t *testing.T) {
	q := New[int](2)
	q.Enqueue(1)
	q.Enqueue(2)
	q.Reset()
	assert.True(t, q.IsEmpty())
	assert.Equal(t, 2, q.Cap())
	require.NoError(t, q.Enqueue(5))
	assert.Equal(t, []int{5}, q.Items())
}

func TestNew_PanicsOnZeroCapacity(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

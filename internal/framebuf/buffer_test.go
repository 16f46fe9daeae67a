package framebuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indices(frames []*Frame) []int {
	out := make([]int, len(frames))
	for i, f := range frames {
		out[i] = f.Index
	}
	return out
}

func TestBuffer_HoldsMostRecent(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct{ capacity, pushes int }{
		{1, 5}, {2, 1}, {2, 2}, {2, 10}, {3, 7}, {5, 3},
	} {
		b := NewBuffer(tc.capacity)
		for i := 0; i < tc.pushes; i++ {
			b.Push(&Frame{Index: i})
			assert.LessOrEqual(t, b.Len(), b.Cap())
		}
		want := min(tc.pushes, tc.capacity)
		require.Equal(t, want, b.Len())

		expected := make([]int, 0, want)
		for i := tc.pushes - want; i < tc.pushes; i++ {
			expected = append(expected, i)
		}
		assert.Equal(t, expected, indices(b.All()), "capacity %d pushes %d", tc.capacity, tc.pushes)
	}
}

func TestBuffer_PushReturnsEvicted(t *testing.T) {
	t.Parallel()
	b := NewBuffer(2)
	assert.Nil(t, b.Push(&Frame{Index: 0}))
	assert.Nil(t, b.Push(&Frame{Index: 1}))

	evicted := b.Push(&Frame{Index: 2})
	require.NotNil(t, evicted)
	assert.Equal(t, 0, evicted.Index)
}

func TestBuffer_CurrentAndPrevious(t *testing.T) {
	t.Parallel()
	b := NewBuffer(2)
	assert.Nil(t, b.Current())
	assert.Nil(t, b.Previous())

	b.Push(&Frame{Index: 7})
	assert.Equal(t, 7, b.Current().Index)
	assert.Nil(t, b.Previous())

	b.Push(&Frame{Index: 8})
	b.Push(&Frame{Index: 9})
	assert.Equal(t, 9, b.Current().Index)
	assert.Equal(t, 8, b.Previous().Index)
	assert.Nil(t, b.Back(3))
	assert.Nil(t, b.Back(0))
}

func TestBuffer_CapacityClamped(t *testing.T) {
	t.Parallel()
	b := NewBuffer(0)
	assert.Equal(t, 1, b.Cap())
	b.Push(&Frame{Index: 1})
	b.Push(&Frame{Index: 2})
	assert.Equal(t, []int{2}, indices(b.All()))
}

func TestBuffer_Reset(t *testing.T) {
	t.Parallel()
	b := NewBuffer(3)
	b.Push(&Frame{Index: 1})
	b.Push(&Frame{Index: 2})
	b.Reset()

	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.All())
	assert.Nil(t, b.Current())
}

package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Tick uint64
	Gate string
}

func ticks(items []record) []uint64 {
	out := make([]uint64, len(items))
	for i, r := range items {
		out[i] = r.Tick
	}
	return out
}

func TestQueue_New(t *testing.T) {
	q := New[record]()
	require.NotNil(t, q)
	assert.True(t, q.Empty())
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PushAndGetAndEmpty(t *testing.T) {
	q := New[record]()

	q.Push(record{Tick: 1, Gate: "start"})
	q.Push(record{Tick: 2}, record{Tick: 3})
	assert.Equal(t, 3, q.Len())

	items := q.GetAndEmpty()
	assert.Equal(t, []uint64{1, 2, 3}, ticks(items))
	assert.Equal(t, "start", items[0].Gate)
	assert.True(t, q.Empty())

	// The returned slice is not shared with later pushes.
	q.Push(record{Tick: 4})
	assert.Equal(t, uint64(1), items[0].Tick)
}

func TestQueue_GetAndEmpty_Empty(t *testing.T) {
	q := New[record]()
	assert.Empty(t, q.GetAndEmpty())
}

func TestQueue_RequeueKeepsOrder(t *testing.T) {
	q := New[record]()
	q.Push(record{Tick: 1}, record{Tick: 2})

	batch := q.GetAndEmpty()
	q.Push(record{Tick: 3})
	q.Requeue(batch...)

	assert.Equal(t, []uint64{1, 2, 3}, ticks(q.GetAndEmpty()))
}

func TestQueue_RequeueNothing(t *testing.T) {
	q := New[record]()
	q.Push(record{Tick: 1})
	q.Requeue()
	assert.Equal(t, 1, q.Len())
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[record](3)

	for i := uint64(1); i <= 5; i++ {
		q.Push(record{Tick: i})
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, []uint64{3, 4, 5}, ticks(q.GetAndEmpty()))
}

func TestQueue_BoundedRequeue(t *testing.T) {
	q := NewBounded[record](2)
	q.Push(record{Tick: 3})
	q.Requeue(record{Tick: 1}, record{Tick: 2})

	assert.Equal(t, []uint64{2, 3}, ticks(q.GetAndEmpty()))
	assert.Equal(t, uint64(1), q.Dropped())
}

func TestQueue_Clear(t *testing.T) {
	q := New[record]()
	q.Push(record{Tick: 1}, record{Tick: 2})

	q.Clear()
	assert.True(t, q.Empty())
	assert.Equal(t, uint64(2), q.Dropped())

	q.Push(record{Tick: 3})
	assert.Equal(t, []uint64{3}, ticks(q.GetAndEmpty()))
}

func TestQueue_NegativeLimitIsUnbounded(t *testing.T) {
	q := NewBounded[record](-1)
	for i := 0; i < 100; i++ {
		q.Push(record{})
	}
	assert.Equal(t, 100, q.Len())
	assert.Equal(t, uint64(0), q.Dropped())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[record]()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(record{Tick: uint64(j)})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000, q.Len())
}

package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msgN(i int) Message {
	return Message{Topic: TopicTrafficReport, Key: fmt.Sprintf("%06X", i)}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	for i := 0; i < 3; i++ {
		evicted, err := q.Push(msgN(i))
		require.NoError(t, err)
		assert.False(t, evicted)
	}
	assert.Equal(t, 3, q.Len())

	for i := 0; i < 3; i++ {
		msg, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, msgN(i).Key, msg.Key)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(3)
	evictions := 0
	for i := 0; i < 5; i++ {
		evicted, err := q.Push(msgN(i))
		require.NoError(t, err)
		if evicted {
			evictions++
		}
	}

	assert.Equal(t, 2, evictions)
	assert.Equal(t, uint64(2), q.Dropped())
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, 3, q.Cap())

	// survivors keep their order
	for _, want := range []int{2, 3, 4} {
		msg, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, msgN(want).Key, msg.Key)
	}
}

func TestQueuePopWaitsForPush(t *testing.T) {
	q := NewQueue(2)

	got := make(chan Message, 1)
	go func() {
		msg, err := q.Pop(context.Background())
		if err == nil {
			got <- msg
		}
	}()

	time.Sleep(20 * time.Millisecond)
	_, err := q.Push(msgN(7))
	require.NoError(t, err)

	select {
	case msg := <-got:
		assert.Equal(t, msgN(7).Key, msg.Key)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueuePopContextCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueClose(t *testing.T) {
	q := NewQueue(4)
	_, err := q.Push(msgN(1))
	require.NoError(t, err)

	q.Close()
	q.Close()

	_, err = q.Push(msgN(2))
	assert.ErrorIs(t, err, ErrQueueClosed)

	// queued messages survive Close
	msg, err := q.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, msgN(1).Key, msg.Key)

	_, err = q.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueCloseWakesPop(t *testing.T) {
	q := NewQueue(1)
	errs := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		errs <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Close")
	}
}

func TestQueueFlush(t *testing.T) {
	q := NewQueue(8)
	for i := 0; i < 5; i++ {
		_, err := q.Push(msgN(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 5, q.Flush())
	assert.Equal(t, 0, q.Len())
	assert.Equal(t, 0, q.Flush())
}

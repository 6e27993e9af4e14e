package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"video-assembly-service/ddd/domain/service"
)

func TestEnqueueDequeue(t *testing.T) {
	q := NewMemoryTaskQueue(2)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, service.AssemblyTask{JobID: "J1"}))
	require.NoError(t, q.Enqueue(ctx, service.AssemblyTask{JobID: "J2"}))
	assert.ErrorIs(t, q.Enqueue(ctx, service.AssemblyTask{JobID: "J3"}), ErrQueueFull)
	assert.Error(t, q.Enqueue(ctx, service.AssemblyTask{}))

	task, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "J1", task.JobID)

	m := q.GetMetrics()
	assert.Equal(t, uint64(2), m.EnqueueCount)
	assert.Equal(t, uint64(1), m.DequeueCount)
	assert.Equal(t, 2, m.MaxSize)
	assert.Equal(t, 1, m.CurrentSize)
}

func TestCloseReturnsPending(t *testing.T) {
	q := NewMemoryTaskQueue(5)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, service.AssemblyTask{JobID: "J1"}))
	require.NoError(t, q.Enqueue(ctx, service.AssemblyTask{JobID: "J2"}))

	rest := q.Close()
	require.Len(t, rest, 2)
	assert.Equal(t, "J1", rest[0].JobID)
	assert.True(t, q.IsClosed())
	assert.Nil(t, q.Close())

	assert.ErrorIs(t, q.Enqueue(ctx, service.AssemblyTask{JobID: "J3"}), ErrQueueClosed)
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestDequeueUnblocksOnClose(t *testing.T) {
	q := NewMemoryTaskQueue(1)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return after close")
	}
}

func TestDequeueContextCancel(t *testing.T) {
	q := NewMemoryTaskQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

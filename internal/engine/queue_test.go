package engine

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestQueueRunsTasksInOrder verifies FIFO execution on a single worker.
func TestQueueRunsTasksInOrder(t *testing.T) {
	q := newTaskQueue()
	defer q.close()

	var order []int
	for i := 0; i < 100; i++ {
		i := i
		q.submit(func() { order = append(order, i) })
	}
	q.sync()

	assert.Len(t, order, 100)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

// TestQueueSyncWaitsForPendingWork verifies sync blocks until every
// previously submitted task ran.
func TestQueueSyncWaitsForPendingWork(t *testing.T) {
	q := newTaskQueue()
	defer q.close()

	var counter atomic.Int64
	for i := 0; i < 50; i++ {
		q.submit(func() { counter.Add(1) })
	}
	q.sync()
	assert.Equal(t, int64(50), counter.Load())
}

// TestQueueSubmitAfterCloseIsDropped verifies submitting to a closed
// queue neither panics nor runs the task.
func TestQueueSubmitAfterCloseIsDropped(t *testing.T) {
	q := newTaskQueue()
	q.close()

	var ran atomic.Bool
	q.submit(func() { ran.Store(true) })
	assert.False(t, ran.Load())
}

// TestQueueCloseDrains verifies close waits for queued tasks to finish.
func TestQueueCloseDrains(t *testing.T) {
	q := newTaskQueue()

	var counter atomic.Int64
	for i := 0; i < 20; i++ {
		q.submit(func() { counter.Add(1) })
	}
	q.close()
	assert.Equal(t, int64(20), counter.Load())
}

// Package engine contains the rule-evaluation engines: app behavior,
// app cooldown, idle monitoring and system snapshots.
package engine

import "sync"

// taskQueue serializes an engine's mutating operations on one worker
// goroutine. Tasks run strictly in submission order, so two rapid
// foreground-change signals can never interleave an apply and a revert.
type taskQueue struct {
	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *taskQueue) run() {
	defer close(q.done)
	for task := range q.tasks {
		task()
	}
}

// submit enqueues a task. Blocks only if the queue is saturated.
func (q *taskQueue) submit(task func()) {
	defer func() {
		// A submit racing close loses the task; the engine is shutting
		// down and the signal no longer matters.
		_ = recover()
	}()
	q.tasks <- task
}

// sync blocks until every previously submitted task has run.
func (q *taskQueue) sync() {
	ran := make(chan struct{})
	q.submit(func() { close(ran) })
	select {
	case <-ran:
	case <-q.done:
	}
}

// close stops the worker after draining pending tasks.
func (q *taskQueue) close() {
	q.closeOnce.Do(func() { close(q.tasks) })
	<-q.done
}

package core

import (
	"sync"
	"time"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// =============================================================================
// TaskQueue: multi-producer, single-consumer FIFO with a wakeup signal
// =============================================================================

// TaskQueue buffers pending tasks between producers and the event loop.
//
// Push is safe from any goroutine and only ever holds the mutex for an append.
// DrainAll is called only by the loop goroutine: it swaps the active buffer with
// a spare one, so producers never wait on task application.
type TaskQueue struct {
	mu      sync.Mutex
	tasks   []Task
	spare   []Task
	nextSeq uint64

	// signal holds at most one pending wakeup.
	signal chan struct{}
}

// NewTaskQueue creates an empty queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{
		tasks:  make([]Task, 0, defaultQueueCap),
		spare:  make([]Task, 0, defaultQueueCap),
		signal: make(chan struct{}, 1),
	}
}

// Push appends t to the tail, stamps its sequence number and wakes the consumer.
// It returns the sequence number assigned.
func (q *TaskQueue) Push(t Task) uint64 {
	q.mu.Lock()
	q.nextSeq++
	t.Seq = q.nextSeq
	t.EnqueuedAt = time.Now()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
		// A wakeup is already pending
	}
	return t.Seq
}

// Signal returns the channel that receives a value after Push.
func (q *TaskQueue) Signal() <-chan struct{} {
	return q.signal
}

// DrainAll detaches and returns the entire backlog in enqueue order, leaving
// the queue empty. The returned slice is valid until the next DrainAll call.
func (q *TaskQueue) DrainAll() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}

	// Release references held by the previous batch before reusing it
	clear(q.spare)
	batch := q.tasks
	q.tasks = q.spare[:0]
	q.spare = batch
	q.maybeCompactLocked()

	return batch
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// IsEmpty reports whether no tasks are pending.
func (q *TaskQueue) IsEmpty() bool {
	return q.Len() == 0
}

// maybeCompactLocked shrinks the active buffer after a burst.
func (q *TaskQueue) maybeCompactLocked() {
	n := len(q.tasks)
	c := cap(q.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]Task, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]Task, n, newCap)
	copy(newSlice, q.tasks)
	q.tasks = newSlice
}

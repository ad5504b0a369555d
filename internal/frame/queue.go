package frame

import "sync"

// taskQueue is a thread-safe FIFO of frame callbacks.
//
// The queue is unbounded so a cycle may schedule any number of follow-up
// cycles without blocking. Enqueue is safe from any goroutine; the owning
// scheduler is the only consumer.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
}

func newTaskQueue() *taskQueue {
	return &taskQueue{tasks: make([]func(), 0, 16)}
}

// Enqueue adds fn to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, fn)
	return true
}

// TakeAll removes and returns every pending task, oldest first. Tasks
// enqueued afterwards belong to the next frame.
func (q *taskQueue) TakeAll() []func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil
	}
	batch := q.tasks
	q.tasks = make([]func(), 0, cap(batch))
	return batch
}

// Len returns the number of pending tasks.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close rejects further tasks. Pending tasks stay queued.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
}

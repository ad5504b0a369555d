package frame

import "fmt"

// Manual is a Scheduler whose frames run only when the caller flushes.
// Callback panics propagate out of Flush.
type Manual struct {
	queue  *taskQueue
	frames int
}

// NewManual returns an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{queue: newTaskQueue()}
}

// RequestFrame schedules fn for the next Flush.
func (m *Manual) RequestFrame(fn func()) bool {
	return m.queue.Enqueue(fn)
}

// Flush runs one frame and returns the number of callbacks it ran.
func (m *Manual) Flush() int {
	tasks := m.queue.TakeAll()
	if len(tasks) == 0 {
		return 0
	}
	m.frames++
	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

// FlushAll runs frames until nothing is pending, at most limit frames.
// It returns the number of frames run.
func (m *Manual) FlushAll(limit int) (int, error) {
	ran := 0
	for m.queue.Len() > 0 {
		if ran == limit {
			return ran, fmt.Errorf("%w: %d frames, %d pending", ErrFrameLimit, ran, m.queue.Len())
		}
		m.Flush()
		ran++
	}
	return ran, nil
}

// Pending returns the number of callbacks waiting for the next frame.
func (m *Manual) Pending() int {
	return m.queue.Len()
}

// Frames returns the number of non-empty frames run so far.
func (m *Manual) Frames() int {
	return m.frames
}

// Close rejects further requests.
func (m *Manual) Close() {
	m.queue.Close()
}

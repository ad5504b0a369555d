package frame

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the frame period at 60 frames per second.
const DefaultInterval = time.Second / 60

// Loop is a Scheduler that runs frames on its own goroutine at a fixed
// interval. Frames only run while Run is active; a tick with nothing
// pending is skipped.
type Loop struct {
	interval time.Duration
	logger   *slog.Logger
	queue    *taskQueue

	stopOnce sync.Once
	stop     chan struct{}

	mu      sync.Mutex
	inFrame bool
	waiters []chan struct{}

	frames atomic.Int64
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// NewLoop creates a loop ticking every interval. A non-positive interval
// selects DefaultInterval.
func NewLoop(interval time.Duration, opts ...LoopOption) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}
	l := &Loop{
		interval: interval,
		logger:   slog.Default(),
		queue:    newTaskQueue(),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RequestFrame schedules fn for the next frame. Safe from any goroutine.
// Returns false after Stop.
func (l *Loop) RequestFrame(fn func()) bool {
	return l.queue.Enqueue(fn)
}

// Run ticks until ctx is cancelled or Stop is called. If a callback
// panics, Run stops the loop and returns a *PanicError.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Debug("frame loop started", "interval", l.interval)
	defer l.logger.Debug("frame loop stopped", "frames", l.frames.Load())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.stop:
			return nil
		case <-ticker.C:
			if err := l.tick(); err != nil {
				l.logger.Error("frame failed", "error", err)
				l.Stop()
				return err
			}
		}
	}
}

func (l *Loop) tick() error {
	l.mu.Lock()
	tasks := l.queue.TakeAll()
	if len(tasks) == 0 {
		l.mu.Unlock()
		return nil
	}
	l.inFrame = true
	l.mu.Unlock()

	err := runFrame(tasks)
	n := l.frames.Add(1)
	l.logger.Debug("frame", "n", n, "tasks", len(tasks))

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFrame = false
	if l.queue.Len() == 0 {
		for _, w := range l.waiters {
			close(w)
		}
		l.waiters = nil
	}
	return err
}

// Drain blocks until no callbacks are pending or running, or ctx is done.
// Work scheduled by running callbacks is waited for as well. Draining a
// stopped loop with pending work waits for ctx.
func (l *Loop) Drain(ctx context.Context) error {
	l.mu.Lock()
	if !l.inFrame && l.queue.Len() == 0 {
		l.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	l.waiters = append(l.waiters, w)
	l.mu.Unlock()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends Run and rejects further requests. Callbacks still pending are
// never run, so callers that must not lose work Drain first.
// Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.queue.Close()
		close(l.stop)
	})
}

// Len returns the number of pending callbacks.
func (l *Loop) Len() int {
	return l.queue.Len()
}

// Frames returns the number of frames run so far.
func (l *Loop) Frames() int64 {
	return l.frames.Load()
}

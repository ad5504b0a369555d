package program

import (
	"context"
	"sync"
)

// work counts the messages a program has accepted but not yet finished:
// deferred cycles waiting for a frame, effects running off the dispatching
// goroutine, and their results waiting in the inbox for the immediate
// policy to run them.
type work[M any] struct {
	mu      sync.Mutex
	pending int
	inbox   []envelope[M]
	err     error
	wake    chan struct{}
}

func newWork[M any]() *work[M] {
	return &work[M]{wake: make(chan struct{}, 1)}
}

func (w *work[M]) add() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending++
}

func (w *work[M]) done() {
	w.mu.Lock()
	w.pending--
	w.mu.Unlock()
	w.signal()
}

// fail finishes one unit that could not be delivered. The first failure is
// kept until Settle reports it.
func (w *work[M]) fail(err error) {
	w.mu.Lock()
	w.pending--
	if w.err == nil {
		w.err = err
	}
	w.mu.Unlock()
	w.signal()
}

// push queues an async result. Its unit stays pending until the cycle
// runs.
func (w *work[M]) push(env envelope[M]) {
	w.mu.Lock()
	w.inbox = append(w.inbox, env)
	w.mu.Unlock()
	w.signal()
}

func (w *work[M]) pop() (envelope[M], bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.inbox) == 0 {
		return envelope[M]{}, false
	}
	env := w.inbox[0]
	w.inbox[0] = envelope[M]{}
	w.inbox = w.inbox[1:]
	return env, true
}

func (w *work[M]) takeErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.err
	w.err = nil
	return err
}

func (w *work[M]) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending
}

func (w *work[M]) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Go runs fn off the dispatching goroutine and delivers its result as a
// message of the emitting cycle's flow. Under the immediate policy the
// result waits in the inbox until the next Dispatch or Settle runs it on
// the caller's goroutine, so cycles never run concurrently. Under the
// deferred policy it is scheduled like any other emitted message.
func (d *dispatcher[M]) Go(fn func() M) {
	p := d.program
	p.quotas.hold(d.flow)
	p.work.add()
	go func() {
		p.deliver(envelope[M]{
			msg:       fn(),
			origin:    d.origin,
			flow:      d.flow,
			parentSeq: d.parentSeq,
			depth:     d.depth,
		})
	}()
}

func (p *Program[M]) deliver(env envelope[M]) {
	if !p.policy.IsDeferred() {
		p.work.push(env)
		return
	}
	if p.policy.scheduler.RequestFrame(p.scheduled(env)) {
		return
	}
	p.quotas.release(env.flow)
	err := p.scheduleRejected(env)
	p.logger.Error("frame scheduler rejected async result",
		"flow_token", env.flow,
		"origin", env.origin.String())
	p.work.fail(err)
}

// scheduled wraps the cycle for env as a frame callback. It finishes one
// unit of pending work whether or not the cycle panics.
func (p *Program[M]) scheduled(env envelope[M]) func() {
	return func() {
		defer p.work.done()
		p.runCycle(env)
	}
}

// runInbox runs queued async results in arrival order on the calling
// goroutine.
func (p *Program[M]) runInbox() {
	for {
		env, ok := p.work.pop()
		if !ok {
			return
		}
		p.scheduled(env)()
	}
}

// Settle blocks until every message the program has accepted is finished:
// asynchronous effects have delivered their results and those results
// have gone through a cycle. Under the immediate policy Settle runs the
// delivered cycles itself, on the calling goroutine; under the deferred
// policy the scheduler must keep running frames meanwhile.
//
// A result the scheduler refused is reported as a *RuntimeError with
// ErrCodeScheduleRejected. Cycle failures under the immediate policy
// panic out of Settle as they do out of Dispatch.
func (p *Program[M]) Settle(ctx context.Context) error {
	for {
		if !p.policy.IsDeferred() {
			p.runInbox()
		}
		if err := p.work.takeErr(); err != nil {
			return err
		}
		if p.work.count() == 0 {
			return nil
		}
		select {
		case <-p.work.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Pending returns the number of accepted messages not yet finished.
func (p *Program[M]) Pending() int {
	return p.work.count()
}

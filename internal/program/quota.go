package program

import (
	"errors"
	"fmt"
	"sync"
)

// QuotaEnforcer counts the cycles of one flow against a limit. It bounds
// effects that keep dispatching follow-up messages.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates an enforcer allowing maxSteps cycles.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one cycle and returns a *StepsExceededError once the
// count passes the limit.
func (q *QuotaEnforcer) Check(flowToken string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			FlowToken: flowToken,
			Steps:     q.current,
			Limit:     q.maxSteps,
		}
	}
	return nil
}

// Current returns the number of cycles counted so far.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// quotaTable holds one enforcer per live flow. A non-positive limit
// disables counting entirely.
//
// A flow is live while any of its messages is scheduled, queued, running
// or awaited from an asynchronous effect. Each of those holds the flow's
// entry; the entry is dropped with the last release.
type quotaTable struct {
	mu       sync.Mutex
	maxSteps int
	flows    map[string]*flowQuota
}

type flowQuota struct {
	enforcer *QuotaEnforcer
	pending  int
}

func newQuotaTable(maxSteps int) *quotaTable {
	return &quotaTable{
		maxSteps: maxSteps,
		flows:    make(map[string]*flowQuota),
	}
}

func (t *quotaTable) enabled() bool { return t.maxSteps > 0 }

// entry returns flowToken's entry, creating it. Callers hold t.mu.
func (t *quotaTable) entry(flowToken string) *flowQuota {
	f, ok := t.flows[flowToken]
	if !ok {
		f = &flowQuota{enforcer: NewQuotaEnforcer(t.maxSteps)}
		t.flows[flowToken] = f
	}
	return f
}

// hold marks one more outstanding message of flowToken.
func (t *quotaTable) hold(flowToken string) {
	if !t.enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entry(flowToken).pending++
}

// release undoes one hold and forgets the flow once nothing of it is
// outstanding.
func (t *quotaTable) release(flowToken string) {
	if !t.enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.flows[flowToken]
	if !ok {
		return
	}
	f.pending--
	if f.pending <= 0 {
		delete(t.flows, flowToken)
	}
}

func (t *quotaTable) check(flowToken string) *StepsExceededError {
	if !t.enabled() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var se *StepsExceededError
	errors.As(t.entry(flowToken).enforcer.Check(flowToken), &se)
	return se
}

func (t *quotaTable) steps(flowToken string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if f, ok := t.flows[flowToken]; ok {
		return f.enforcer.Current()
	}
	return 0
}

func (t *quotaTable) live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.flows)
}

// StepsExceededError is the panic value raised when a flow runs more
// cycles than its quota allows.
type StepsExceededError struct {
	FlowToken string
	Steps     int
	Limit     int
}

func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("flow %s exceeded max steps quota: %d steps > %d limit",
		e.FlowToken, e.Steps, e.Limit)
}

// IsStepsExceededError reports whether err is a *StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}

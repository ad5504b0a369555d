package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/weft/internal/apps/counter"
	"github.com/roach88/weft/internal/frame"
	"github.com/roach88/weft/internal/host"
	"github.com/roach88/weft/internal/program"
	"github.com/roach88/weft/internal/testutil"
	"github.com/roach88/weft/internal/vdom"
)

// ErrCodeUnknown labels a run stopped by an error that is not a
// *program.RuntimeError.
const ErrCodeUnknown = "UNKNOWN"

// settleTimeout bounds the wait for asynchronous effects after an
// immediate dispatch step.
const settleTimeout = 5 * time.Second

// Harness holds the state of one scenario run.
type Harness struct {
	scenario *Scenario
	doc      *host.Document
	model    *counter.Model
	updater  *vdom.Updater
	sched    *frame.Manual
	program  *program.Program[counter.Msg]
	result   *Result
}

// Run executes a scenario and returns its result. Failed assertions are
// reported in the result; the error is for scenarios that cannot run at
// all, such as a failed mount.
func Run(scenario *Scenario) (*Result, error) {
	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}

	var stopped string
	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			h.result.RuntimeError = errorCode(err)
			stopped = fmt.Sprintf("steps[%d]: %v", i, err)
			break
		}
	}

	h.collect()
	if stopped != "" && !expectsRuntimeError(scenario.Assertions) {
		h.result.AddError(stopped)
	}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func newHarness(s *Scenario) (*Harness, error) {
	h := &Harness{
		scenario: s,
		doc:      host.NewDocument(),
		model:    counter.New(s.Start),
		result:   NewResult(),
	}
	inits, err := counter.ParseMsgs(s.Init)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	h.model.InitMsgs = inits

	opts := []program.Option{
		program.WithProgramID("scenario-" + s.Name),
		program.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		program.WithClock(testutil.NewDeterministicClock()),
		program.WithFlowGenerator(testutil.NewCountingFlowGenerator("flow")),
		program.WithObserver(program.ObserverFunc(h.record)),
		program.WithReconciler(func(initial *vdom.Node) program.Reconciler {
			h.updater = vdom.NewUpdater(initial)
			return h.updater
		}),
	}
	if s.MaxSteps != nil {
		opts = append(opts, program.WithMaxSteps(*s.MaxSteps))
	}
	if s.deferred() {
		h.sched = frame.NewManual()
		opts = append(opts, program.WithPolicy(program.Deferred(h.sched)))
	}

	h.program, err = mount(h.model, h.doc, opts)
	if err != nil {
		return nil, fmt.Errorf("mount: %w", err)
	}
	return h, nil
}

// mount converts a panic from an immediate Init cycle into an error.
func mount(m *counter.Model, doc *host.Document, opts []program.Option) (p *program.Program[counter.Msg], err error) {
	defer program.Recover(&err)
	return program.MountToDefaultRoot[counter.Msg](m, doc, opts...)
}

func (h *Harness) execute(step Step) (err error) {
	defer program.Recover(&err)

	if step.Dispatch != "" {
		msg, err := counter.ParseMsg(step.Dispatch)
		if err != nil {
			return err
		}
		h.program.Dispatch(msg)
		if h.sched != nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()
		return h.program.Settle(ctx)
	}
	for range step.Frames {
		h.sched.Flush()
	}
	return nil
}

func (h *Harness) record(info program.CycleInfo) {
	msg, _ := info.Msg.(counter.Msg)
	h.result.Trace = append(h.result.Trace, TraceEvent{
		Seq:       info.Seq,
		ParentSeq: info.ParentSeq,
		FlowToken: info.FlowToken,
		Origin:    info.Origin.String(),
		Depth:     info.Depth,
		Msg:       msg.String(),
		View:      info.View.TextContent(),
	})
}

func (h *Harness) collect() {
	h.result.Count = h.model.Count
	h.result.Inits = h.model.Inits
	h.result.Cycles = h.program.Cycles()
	h.result.Reconciles = h.updater.Reconciles()
	h.result.Styles = len(h.doc.Styles())
	h.result.Document = h.doc.String()
}

func errorCode(err error) string {
	var re *program.RuntimeError
	switch {
	case errors.As(err, &re):
		return string(re.Code)
	case program.IsQuotaError(err):
		return string(program.ErrCodeQuotaExceeded)
	}
	return ErrCodeUnknown
}

func expectsRuntimeError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertRuntimeError {
			return true
		}
	}
	return false
}

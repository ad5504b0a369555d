package program

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/roach88/weft/internal/cell"
	"github.com/roach88/weft/internal/effect"
	"github.com/roach88/weft/internal/host"
	"github.com/roach88/weft/internal/vdom"
)

// Application is the embedder's state and logic. Update may mutate the
// application; View must not.
type Application[M any] interface {
	Init() effect.Cmd[M]
	Update(msg M) effect.Cmd[M]
	View() *vdom.Node
	Styles() []string
}

// Reconciler owns the live tree produced from the last view.
type Reconciler interface {
	AppendToMount(mount *html.Node) error
	ReplaceMount(mount *html.Node) error
	Reconcile(view *vdom.Node) error
}

// Program binds one Application to one live tree.
type Program[M any] struct {
	id  string
	doc *host.Document

	state        *cell.Cell[Application[M]]
	presentation *cell.Cell[Reconciler]

	policy   Policy
	logger   *slog.Logger
	measurer Measurer
	observer Observer
	flowGen  FlowTokenGenerator
	clock    Sequencer
	maxSteps int
	quotas   *quotaTable
	work     *work[M]

	cycles atomic.Int64
}

// New builds a program around app. It calls app.View once and hands the
// result to the reconciler factory, which materializes it without
// attaching it to doc. New never fails; mount the program with one of the
// Mount functions.
func New[M any](app Application[M], doc *host.Document, opts ...Option) *Program[M] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.id == "" {
		s.id = newProgramID()
	}

	p := &Program[M]{
		id:       s.id,
		doc:      doc,
		state:    cell.New("application", app),
		policy:   s.policy,
		logger:   s.logger.With("program_id", s.id),
		measurer: s.measurer,
		observer: nopObserver{},
		flowGen:  s.flowGen,
		clock:    s.clock,
		maxSteps: s.maxSteps,
		quotas:   newQuotaTable(s.maxSteps),
		work:     newWork[M](),
	}
	switch len(s.observers) {
	case 0:
	case 1:
		p.observer = s.observers[0]
	default:
		p.observer = s.observers
	}

	var initial *vdom.Node
	p.state.With(func(app Application[M]) {
		initial = app.View()
	})
	if initial == nil {
		panic(fmt.Errorf("program: %T.View returned nil: %w", app, vdom.ErrNilView))
	}
	p.presentation = cell.New("reconciler", s.reconciler(initial))
	return p
}

// MountReplacing builds a program whose tree takes the place of mount.
func MountReplacing[M any](app Application[M], doc *host.Document, mount *html.Node, opts ...Option) (*Program[M], error) {
	p := New(app, doc, opts...)
	if err := p.attach(mount, Reconciler.ReplaceMount); err != nil {
		return nil, err
	}
	if err := p.afterMounted("replace"); err != nil {
		return nil, err
	}
	return p, nil
}

// MountAppending builds a program whose tree becomes the last child of
// mount.
func MountAppending[M any](app Application[M], doc *host.Document, mount *html.Node, opts ...Option) (*Program[M], error) {
	p := New(app, doc, opts...)
	if err := p.attach(mount, Reconciler.AppendToMount); err != nil {
		return nil, err
	}
	if err := p.afterMounted("append"); err != nil {
		return nil, err
	}
	return p, nil
}

// MountToDefaultRoot appends the program's tree to doc's body.
func MountToDefaultRoot[M any](app Application[M], doc *host.Document, opts ...Option) (*Program[M], error) {
	body, err := doc.Body()
	if err != nil {
		return nil, &RuntimeError{
			Code:    ErrCodeAttachFailed,
			Message: "resolve default mount root",
			Err:     err,
		}
	}
	return MountAppending(app, doc, body, opts...)
}

func (p *Program[M]) attach(mount *html.Node, how func(Reconciler, *html.Node) error) error {
	var err error
	p.presentation.WithMut(func(r Reconciler) {
		err = how(r, mount)
	})
	if err != nil {
		return &RuntimeError{
			Code:      ErrCodeAttachFailed,
			Message:   "attach initial view",
			ProgramID: p.id,
			Err:       err,
		}
	}
	return nil
}

// afterMounted injects the application's styles, then runs Init and emits
// its command.
func (p *Program[M]) afterMounted(strategy string) error {
	var styles []string
	p.state.With(func(app Application[M]) {
		styles = app.Styles()
	})
	for i, text := range styles {
		if err := p.injectStyle(text); err != nil {
			return &RuntimeError{
				Code:      ErrCodeStyleInjection,
				Message:   fmt.Sprintf("inject style %d of %d", i+1, len(styles)),
				ProgramID: p.id,
				Err:       err,
			}
		}
	}

	p.logger.Info("program mounted",
		"strategy", strategy,
		"policy", p.policy.String(),
		"styles", len(styles),
		"max_steps", p.maxSteps)

	var cmd effect.Cmd[M]
	p.state.WithMut(func(app Application[M]) {
		cmd = app.Init()
	})
	if cmd.IsNone() {
		return nil
	}
	cmd.Emit(&dispatcher[M]{
		program: p,
		origin:  OriginInit,
		flow:    p.flowGen.Generate(),
	})
	return nil
}

func (p *Program[M]) injectStyle(text string) error {
	if p.doc == nil {
		return host.ErrNoHead
	}
	return p.doc.InjectStyle(text)
}

// Dispatch feeds msg into the program as the start of a new flow. Under
// the immediate policy the cycle has completed when Dispatch returns;
// under the deferred policy it has only been scheduled. Immediate dispatch
// first runs any async results already waiting; see Settle.
//
// Deferred dispatch is safe from any goroutine. Immediate dispatch must
// not overlap with another cycle of the same program except by nesting
// from an emitting command.
//
// A deferred dispatch the scheduler refuses panics with a *RuntimeError
// carrying ErrCodeScheduleRejected.
func (p *Program[M]) Dispatch(msg M) {
	if !p.policy.IsDeferred() {
		p.runInbox()
	}
	p.submit(envelope[M]{
		msg:    msg,
		origin: OriginExternal,
		flow:   p.flowGen.Generate(),
	})
}

// envelope is a message plus its causal context.
type envelope[M any] struct {
	msg       M
	origin    Origin
	flow      string
	parentSeq int64
	depth     int
}

func (p *Program[M]) submit(env envelope[M]) {
	p.quotas.hold(env.flow)
	if !p.policy.IsDeferred() {
		p.runCycle(env)
		return
	}
	p.work.add()
	if p.policy.scheduler.RequestFrame(p.scheduled(env)) {
		return
	}
	p.work.done()
	p.quotas.release(env.flow)
	err := p.scheduleRejected(env)
	p.logger.Error("frame scheduler rejected cycle",
		"flow_token", env.flow,
		"origin", env.origin.String())
	panic(err)
}

func (p *Program[M]) scheduleRejected(env envelope[M]) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeScheduleRejected,
		Message:   fmt.Sprintf("frame scheduler refused %s message", env.origin),
		ProgramID: p.id,
		Seq:       env.parentSeq,
		FlowToken: env.flow,
	}
}

// dispatcher is the handle a command emits into. It stamps every message
// with the flow and sequence of the cycle (or Init) that emitted it, and
// implements effect.AsyncDispatcher so off-goroutine effects stay
// serialized with the program's cycles.
type dispatcher[M any] struct {
	program   *Program[M]
	origin    Origin
	flow      string
	parentSeq int64
	depth     int
}

var _ effect.AsyncDispatcher[int] = (*dispatcher[int])(nil)

func (d *dispatcher[M]) Dispatch(msg M) {
	d.program.submit(envelope[M]{
		msg:       msg,
		origin:    d.origin,
		flow:      d.flow,
		parentSeq: d.parentSeq,
		depth:     d.depth,
	})
}

// runCycle executes update, emit, view and reconcile for one message.
func (p *Program[M]) runCycle(env envelope[M]) {
	seq := p.clock.Next()
	defer p.quotas.release(env.flow)
	if err := p.quotas.check(env.flow); err != nil {
		rerr := NewQuotaError(p.id, seq, err)
		p.logger.Error("flow quota exceeded",
			"seq", seq,
			"flow_token", env.flow,
			"error", rerr)
		panic(rerr)
	}

	var (
		cmd     effect.Cmd[M]
		view    *vdom.Node
		err     error
		timings Timings
	)

	timings.Update = measure(p.measurer, PhaseUpdate, func() {
		p.state.WithMut(func(app Application[M]) {
			cmd = app.Update(env.msg)
		})
	})

	timings.Emit = measure(p.measurer, PhaseEmit, func() {
		cmd.Emit(&dispatcher[M]{
			program:   p,
			origin:    OriginEffect,
			flow:      env.flow,
			parentSeq: seq,
			depth:     env.depth + 1,
		})
	})

	timings.View = measure(p.measurer, PhaseView, func() {
		p.state.With(func(app Application[M]) {
			view = app.View()
		})
	})

	timings.Reconcile = measure(p.measurer, PhaseReconcile, func() {
		p.presentation.WithMut(func(r Reconciler) {
			err = r.Reconcile(view)
		})
	})
	if err != nil {
		rerr := &RuntimeError{
			Code:      ErrCodeReconcileFailed,
			Message:   "reconcile view",
			ProgramID: p.id,
			Seq:       seq,
			FlowToken: env.flow,
			Err:       err,
		}
		p.logger.Error("cycle failed", "seq", seq, "error", rerr)
		panic(rerr)
	}

	p.cycles.Add(1)
	p.logger.Debug("cycle completed",
		"seq", seq,
		"flow_token", env.flow,
		"origin", env.origin.String(),
		"depth", env.depth,
		"duration", timings.Total())

	p.observer.CycleCompleted(CycleInfo{
		ProgramID: p.id,
		Seq:       seq,
		ParentSeq: env.parentSeq,
		FlowToken: env.flow,
		Origin:    env.origin,
		Depth:     env.depth,
		Msg:       env.msg,
		View:      view,
		Timings:   timings,
	})
}

// Inspect calls fn with the application under a shared checkout.
func (p *Program[M]) Inspect(fn func(app Application[M])) {
	p.state.With(fn)
}

// ID returns the program ID.
func (p *Program[M]) ID() string { return p.id }

// Cycles returns the number of completed cycles.
func (p *Program[M]) Cycles() int64 { return p.cycles.Load() }

// Policy returns the dispatch policy.
func (p *Program[M]) Policy() Policy { return p.policy }

// FlowSteps returns the number of cycles counted against flowToken's
// quota while the flow is live. Always 0 when the quota is disabled or the
// flow has finished.
func (p *Program[M]) FlowSteps(flowToken string) int {
	return p.quotas.steps(flowToken)
}

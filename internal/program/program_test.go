package program

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/apps/counter"
	"github.com/roach88/weft/internal/cell"
	"github.com/roach88/weft/internal/effect"
	"github.com/roach88/weft/internal/frame"
	"github.com/roach88/weft/internal/host"
	"github.com/roach88/weft/internal/testutil"
	"github.com/roach88/weft/internal/vdom"
)

// probe is a test application that logs every call. Each message names
// the follow-up messages its command dispatches.
type probe struct {
	events []string
	count  int

	styles   []string
	initMsgs []string
	inits    int

	// hooks run inside the checked-out calls
	onUpdate func(msg string)
	onView   func()
}

func (a *probe) Init() effect.Cmd[string] {
	a.inits++
	a.events = append(a.events, "init")
	return effect.Message(a.initMsgs...)
}

// Update handles "name" or "name>child1,child2".
func (a *probe) Update(msg string) effect.Cmd[string] {
	name, children, _ := strings.Cut(msg, ">")
	a.count++
	a.events = append(a.events, "update:"+name)
	if a.onUpdate != nil {
		a.onUpdate(msg)
	}
	if children == "" {
		return effect.None[string]()
	}
	return effect.Message(strings.Split(children, ",")...)
}

func (a *probe) View() *vdom.Node {
	a.events = append(a.events, "view:"+strconv.Itoa(a.count))
	if a.onView != nil {
		a.onView()
	}
	return vdom.El("p", nil, vdom.Textf("%d", a.count))
}

func (a *probe) Styles() []string { return a.styles }

// recordInto installs a RecordingReconciler that also logs reconcile calls
// into the probe's event list.
func recordInto(a *probe, rec **testutil.RecordingReconciler) Option {
	return WithReconciler(func(initial *vdom.Node) Reconciler {
		r := testutil.NewRecordingReconciler(initial)
		r.OnReconcile = func(view *vdom.Node) {
			a.events = append(a.events, "reconcile:"+view.TextContent())
		}
		*rec = r
		return r
	})
}

func panicValue(fn func()) (v any) {
	defer func() { v = recover() }()
	fn()
	return nil
}

func testOptions(t *testing.T, extra ...Option) []Option {
	opts := []Option{
		WithLogger(testutil.NewLogger(t)),
		WithClock(testutil.NewDeterministicClock()),
		WithFlowGenerator(testutil.NewCountingFlowGenerator("flow")),
		WithProgramID("test-program"),
	}
	return append(opts, extra...)
}

func mountCounter(t *testing.T, m *counter.Model, extra ...Option) (*Program[counter.Msg], *host.Document) {
	t.Helper()
	doc := host.NewDocument()
	p, err := MountToDefaultRoot[counter.Msg](m, doc, testOptions(t, extra...)...)
	require.NoError(t, err)
	return p, doc
}

func TestNew_MaterializesWithoutAttaching(t *testing.T) {
	app := &probe{}
	var rec *testutil.RecordingReconciler
	p := New[string](app, host.NewDocument(), testOptions(t, recordInto(app, &rec))...)

	require.NotNil(t, rec)
	assert.Equal(t, "0", rec.Initial.TextContent())
	assert.Empty(t, rec.Appended)
	assert.Empty(t, rec.Replaced)
	assert.Equal(t, []string{"view:0"}, app.events)
	assert.Equal(t, int64(0), p.Cycles())
}

func TestDispatch_ImmediateCounterIncrement(t *testing.T) {
	m := counter.New(0)
	var views []*vdom.Node
	p, doc := mountCounter(t, m, WithObserver(ObserverFunc(func(info CycleInfo) {
		views = append(views, info.View)
	})))

	p.Dispatch(counter.Increment)

	assert.Equal(t, 1, m.Count)
	assert.Equal(t, int64(1), p.Cycles())
	require.Len(t, views, 1)
	assert.Contains(t, views[0].String(), "Count: 1")
	assert.Contains(t, doc.String(), `<h1 class="count">Count: 1</h1>`)
}

func TestDispatch_ImmediateOneReconcilePerCycle(t *testing.T) {
	app := &probe{}
	var rec *testutil.RecordingReconciler
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t, recordInto(app, &rec))...)
	require.NoError(t, err)

	p.Dispatch("a")

	assert.Equal(t, 1, rec.Count())
	assert.Equal(t, "1", rec.Views()[0].TextContent())
}

func TestDispatch_IncrementTwiceRunsTwoCycles(t *testing.T) {
	m := counter.New(0)
	p, _ := mountCounter(t, m)

	p.Dispatch(counter.IncrementTwice)

	assert.Equal(t, 2, m.Count)
	assert.Equal(t, int64(2), p.Cycles())
}

func TestDispatch_NestedCycleCompletesBeforeOuterView(t *testing.T) {
	app := &probe{}
	var rec *testutil.RecordingReconciler
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t, recordInto(app, &rec))...)
	require.NoError(t, err)
	app.events = nil

	p.Dispatch("outer>inner")

	assert.Equal(t, []string{
		"update:outer",
		"update:inner",
		"view:2",
		"reconcile:2",
		"view:2",
		"reconcile:2",
	}, app.events)
	assert.Equal(t, 2, rec.Count())
}

func TestDispatch_CycleCountIncludesTransitiveMessages(t *testing.T) {
	app := &probe{}
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t)...)
	require.NoError(t, err)

	p.Dispatch("a")
	p.Dispatch("b>c,d")
	p.Dispatch("e>f>g")

	// a; b c d; e, whose child "f>g" dispatches g
	assert.Equal(t, int64(7), p.Cycles())
	assert.Equal(t, 7, app.count)
}

func TestDispatch_DeferredTwoDispatchesOneFrame(t *testing.T) {
	sched := frame.NewManual()
	m := counter.New(0)
	var order []int64
	p, _ := mountCounter(t, m,
		WithPolicy(Deferred(sched)),
		WithObserver(ObserverFunc(func(info CycleInfo) { order = append(order, info.Seq) })))

	p.Dispatch(counter.Increment)
	p.Dispatch(counter.Add(10))

	assert.Equal(t, 0, m.Count, "deferred dispatch does not touch state")
	assert.Equal(t, 2, sched.Pending())

	assert.Equal(t, 2, sched.Flush())
	assert.Equal(t, 11, m.Count)
	assert.Equal(t, int64(2), p.Cycles())
	assert.Equal(t, []int64{1, 2}, order)
	assert.Equal(t, 1, sched.Frames())
}

func TestDispatch_DeferredNestedDispatchSchedulesLater(t *testing.T) {
	sched := frame.NewManual()
	m := counter.New(0)
	p, doc := mountCounter(t, m, WithPolicy(Deferred(sched)))

	p.Dispatch(counter.IncrementTwice)
	sched.Flush()

	assert.Equal(t, 1, m.Count)
	assert.Equal(t, int64(1), p.Cycles())
	assert.Equal(t, 1, sched.Pending())
	assert.Contains(t, doc.String(), "Count: 1")

	sched.Flush()
	assert.Equal(t, 2, m.Count)
	assert.Equal(t, int64(2), p.Cycles())
	assert.Contains(t, doc.String(), "Count: 2")
}

func TestDispatch_ReentrantFromUpdatePanics(t *testing.T) {
	app := &probe{}
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t)...)
	require.NoError(t, err)

	app.onUpdate = func(msg string) {
		if msg == "outer" {
			p.Dispatch("inner")
		}
	}

	v := panicValue(func() { p.Dispatch("outer") })

	var be *cell.BorrowError
	require.ErrorAs(t, v.(error), &be)
	assert.Equal(t, cell.Exclusive, be.Requested)
	assert.Equal(t, cell.Exclusive, be.Held)
	assert.Equal(t, []string{"init", "update:outer"}, app.events[len(app.events)-2:])

	// The checkout was released while unwinding; the program still works.
	app.onUpdate = nil
	p.Dispatch("again")
	assert.Equal(t, int64(1), p.Cycles())
}

func TestDispatch_ReentrantFromViewPanics(t *testing.T) {
	app := &probe{}
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t)...)
	require.NoError(t, err)

	app.onView = func() { p.Dispatch("inner") }
	v := panicValue(func() { p.Dispatch("outer") })

	assert.ErrorIs(t, v.(error), cell.ErrBorrowed)
}

func TestDispatch_UpdatePanicPropagatesWithoutRollback(t *testing.T) {
	app := &probe{}
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t)...)
	require.NoError(t, err)

	app.onUpdate = func(string) { panic("broken invariant") }
	assert.PanicsWithValue(t, "broken invariant", func() { p.Dispatch("x") })
	assert.Equal(t, 1, app.count, "state keeps the partial mutation")
	assert.Equal(t, int64(0), p.Cycles())
}

func TestDispatch_ReconcileFailureIsFatal(t *testing.T) {
	app := &probe{}
	var rec *testutil.RecordingReconciler
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t, recordInto(app, &rec))...)
	require.NoError(t, err)

	rec.FailReconcile = testutil.ErrInjected
	v := panicValue(func() { p.Dispatch("x") })

	err, ok := v.(error)
	require.True(t, ok)
	assert.True(t, IsReconcileError(err))
	assert.ErrorIs(t, err, testutil.ErrInjected)

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, int64(1), re.Seq)
	assert.Equal(t, "flow-1", re.FlowToken)
	assert.Equal(t, "test-program", re.ProgramID)
}

func TestDispatch_DefaultReconcilerBeforeMountIsFatal(t *testing.T) {
	p := New[counter.Msg](counter.New(0), host.NewDocument(), testOptions(t)...)
	v := panicValue(func() { p.Dispatch(counter.Increment) })
	err, ok := v.(error)
	require.True(t, ok)
	assert.ErrorIs(t, err, vdom.ErrNotMounted)
}

func TestDispatch_SchedulerRejectionIsFatal(t *testing.T) {
	sched := frame.NewManual()
	var logs testutil.LogBuffer
	p, _ := mountCounter(t, counter.New(0), WithPolicy(Deferred(sched)), WithLogger(logs.Logger()))

	sched.Close()
	v := panicValue(func() { p.Dispatch(counter.Increment) })

	err, ok := v.(error)
	require.True(t, ok)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeScheduleRejected, re.Code)
	assert.Equal(t, "flow-1", re.FlowToken)
	assert.Equal(t, "test-program", re.ProgramID)

	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, 0, p.Pending())
	assert.Contains(t, logs.String(), "frame scheduler rejected cycle")
}

func TestNew_NilViewPanics(t *testing.T) {
	app := &nilViewApp{}
	v := panicValue(func() { New[string](app, host.NewDocument(), testOptions(t)...) })

	err, ok := v.(error)
	require.True(t, ok, "panic value is an error, got %v", v)
	assert.ErrorIs(t, err, vdom.ErrNilView)
	assert.Contains(t, err.Error(), "*program.nilViewApp")
}

func TestDispatch_NilViewIsReconcileFailure(t *testing.T) {
	app := &nilViewApp{first: true}
	p, err := MountToDefaultRoot[string](app, host.NewDocument(), testOptions(t)...)
	require.NoError(t, err)

	v := panicValue(func() { p.Dispatch("x") })
	err, ok := v.(error)
	require.True(t, ok)
	assert.True(t, IsReconcileError(err))
	assert.ErrorIs(t, err, vdom.ErrNilView)
}

// nilViewApp renders nothing. With first set, only its initial view is
// non-nil.
type nilViewApp struct {
	first bool
	views int
}

func (a *nilViewApp) Init() effect.Cmd[string]         { return effect.None[string]() }
func (a *nilViewApp) Update(string) effect.Cmd[string] { return effect.None[string]() }
func (a *nilViewApp) Styles() []string                 { return nil }

func (a *nilViewApp) View() *vdom.Node {
	a.views++
	if a.first && a.views == 1 {
		return vdom.Text("ready")
	}
	return nil
}

func TestInspect(t *testing.T) {
	p, _ := mountCounter(t, counter.New(4))
	var got int
	p.Inspect(func(app Application[counter.Msg]) {
		got = app.(*counter.Model).Count
	})
	assert.Equal(t, 4, got)
}

func TestProgram_Introspection(t *testing.T) {
	p := New[counter.Msg](counter.New(0), host.NewDocument())
	assert.Len(t, p.ID(), 36)
	assert.Equal(t, "immediate", p.Policy().String())
	assert.False(t, p.Policy().IsDeferred())

	sched := frame.NewManual()
	q := New[counter.Msg](counter.New(0), host.NewDocument(), WithPolicy(Deferred(sched)), WithProgramID("fixed"))
	assert.Equal(t, "fixed", q.ID())
	assert.Equal(t, "deferred", q.Policy().String())
	assert.Same(t, sched, q.Policy().Scheduler())
}

func TestDeferred_NilSchedulerPanics(t *testing.T) {
	assert.Panics(t, func() { Deferred(nil) })
}

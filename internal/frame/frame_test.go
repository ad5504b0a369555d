package frame

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type trace struct {
	mu  sync.Mutex
	ids []string
}

func (tr *trace) add(id string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.ids = append(tr.ids, id)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.ids...)
}

func TestManual_FlushRunsPendingInOrder(t *testing.T) {
	m := NewManual()
	tr := &trace{}

	require.True(t, m.RequestFrame(func() { tr.add("a") }))
	require.True(t, m.RequestFrame(func() { tr.add("b") }))
	assert.Equal(t, 2, m.Pending())
	assert.Empty(t, tr.get(), "nothing runs before a frame")

	assert.Equal(t, 2, m.Flush())
	assert.Equal(t, []string{"a", "b"}, tr.get())
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, 1, m.Frames())
}

func TestManual_RequestsDuringFrameRunNextFrame(t *testing.T) {
	m := NewManual()
	tr := &trace{}

	m.RequestFrame(func() {
		tr.add("outer")
		m.RequestFrame(func() { tr.add("nested") })
	})

	assert.Equal(t, 1, m.Flush())
	assert.Equal(t, []string{"outer"}, tr.get())
	assert.Equal(t, 1, m.Pending())

	assert.Equal(t, 1, m.Flush())
	assert.Equal(t, []string{"outer", "nested"}, tr.get())
}

func TestManual_FlushEmpty(t *testing.T) {
	m := NewManual()
	assert.Equal(t, 0, m.Flush())
	assert.Equal(t, 0, m.Frames())
}

func TestManual_FlushAll(t *testing.T) {
	m := NewManual()
	count := 0
	var again func()
	again = func() {
		count++
		if count < 3 {
			m.RequestFrame(again)
		}
	}
	m.RequestFrame(again)

	frames, err := m.FlushAll(10)
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Equal(t, 3, count)
}

func TestManual_FlushAllLimit(t *testing.T) {
	m := NewManual()
	var forever func()
	forever = func() { m.RequestFrame(forever) }
	m.RequestFrame(forever)

	frames, err := m.FlushAll(5)
	assert.ErrorIs(t, err, ErrFrameLimit)
	assert.Equal(t, 5, frames)
	assert.Equal(t, 1, m.Pending())
}

func TestManual_Close(t *testing.T) {
	m := NewManual()
	m.Close()
	assert.False(t, m.RequestFrame(func() {}))
}

func TestManual_PanicPropagates(t *testing.T) {
	m := NewManual()
	m.RequestFrame(func() { panic("boom") })
	assert.PanicsWithValue(t, "boom", func() { m.Flush() })
}

func startLoop(t *testing.T, l *Loop) (stop func() error) {
	t.Helper()
	errc := make(chan error, 1)
	go func() { errc <- l.Run(context.Background()) }()
	return func() error {
		l.Stop()
		select {
		case err := <-errc:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("loop did not stop")
			return nil
		}
	}
}

func TestLoop_RunsRequestsAndDrains(t *testing.T) {
	l := NewLoop(time.Millisecond)
	stop := startLoop(t, l)

	tr := &trace{}
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, l.RequestFrame(func() { tr.add(id) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Drain(ctx))

	assert.Equal(t, []string{"a", "b", "c"}, tr.get())
	assert.Equal(t, 0, l.Len())
	require.NoError(t, stop())
}

func TestLoop_DrainWaitsForNestedRequests(t *testing.T) {
	l := NewLoop(time.Millisecond)
	stop := startLoop(t, l)

	tr := &trace{}
	l.RequestFrame(func() {
		tr.add("first")
		l.RequestFrame(func() { tr.add("second") })
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Drain(ctx))

	assert.Equal(t, []string{"first", "second"}, tr.get())
	assert.GreaterOrEqual(t, l.Frames(), int64(2))
	require.NoError(t, stop())
}

func TestLoop_DrainIdle(t *testing.T) {
	l := NewLoop(time.Hour)
	require.NoError(t, l.Drain(context.Background()))
}

func TestLoop_StopAfterDrainRunsEverything(t *testing.T) {
	l := NewLoop(time.Millisecond)
	stop := startLoop(t, l)

	tr := &trace{}
	for i := 0; i < 50; i++ {
		l.RequestFrame(func() {
			tr.add("x")
			l.RequestFrame(func() { tr.add("y") })
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Drain(ctx))
	require.NoError(t, stop())

	assert.Len(t, tr.get(), 100)
	assert.Equal(t, 0, l.Len())
}

func TestLoop_StopLeavesPendingUnrun(t *testing.T) {
	l := NewLoop(time.Hour)
	ran := false
	l.RequestFrame(func() { ran = true })
	l.Stop()

	assert.NoError(t, l.Run(context.Background()))
	assert.False(t, ran)
	assert.Equal(t, 1, l.Len())
}

func TestLoop_DrainHonorsContext(t *testing.T) {
	l := NewLoop(time.Hour)
	l.RequestFrame(func() {})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Drain(ctx), context.DeadlineExceeded)
}

func TestLoop_RequestAfterStop(t *testing.T) {
	l := NewLoop(time.Millisecond)
	l.Stop()
	l.Stop()

	assert.False(t, l.RequestFrame(func() {}))
	assert.NoError(t, l.Run(context.Background()), "run after stop returns at once")
}

func TestLoop_ContextCancel(t *testing.T) {
	l := NewLoop(time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
}

func TestLoop_PanicStopsLoop(t *testing.T) {
	l := NewLoop(time.Millisecond)
	boom := errors.New("boom")
	l.RequestFrame(func() { panic(boom) })

	err := l.Run(context.Background())

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, boom)
	assert.NotEmpty(t, pe.Stack)
	assert.False(t, l.RequestFrame(func() {}), "loop rejects work after a panic")
}

func TestNewLoop_DefaultInterval(t *testing.T) {
	l := NewLoop(0)
	assert.Equal(t, DefaultInterval, l.interval)
}

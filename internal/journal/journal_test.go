package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/program"
)

func TestOpen_AppliesPragmasAndMigrations(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	mode, err := j.pragma(ctx, "journal_mode")
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)

	fk, err := j.pragma(ctx, "foreign_keys")
	require.NoError(t, err)
	assert.Equal(t, "1", fk)

	version, err := j.pragma(ctx, "user_version")
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.db")
	j, err := Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, j.WriteMount(ctx, createTestMount("p1")))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	m, err := j.ReadMount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "counter", m.App)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "weft.db"))
	assert.Error(t, err)
}

func TestWriteMount_RoundTrip(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	want := createTestMount("p1")
	want.Params = ir.Object{"start": ir.Int(3), "label": ir.String("a")}
	want.MaxSteps = 250
	require.NoError(t, j.WriteMount(ctx, want))

	got, err := j.ReadMount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, want.Params, got.Params)
	assert.Equal(t, ir.RuntimeVersion, got.RuntimeVersion)
	assert.Equal(t, ir.FormatVersion, got.FormatVersion)
	assert.Equal(t, 250, got.MaxSteps)
}

func TestWriteMount_Idempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.WriteMount(ctx, createTestMount("p1")))
	other := createTestMount("p1")
	other.App = "other"
	require.NoError(t, j.WriteMount(ctx, other))

	got, err := j.ReadMount(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "counter", got.App, "first write wins")
}

func TestWriteMount_RejectsUnknownPolicy(t *testing.T) {
	j := createTestJournal(t)
	m := createTestMount("p1")
	m.Policy = "sometimes"
	assert.Error(t, j.WriteMount(context.Background(), m))
}

func TestReadMount_NotFound(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	_, err := j.ReadMount(ctx, "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = j.LatestMount(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	mounts, err := j.ReadMounts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, mounts)
	assert.Empty(t, mounts)
}

func TestReadMounts_WriteOrder(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	for _, id := range []string{"b", "a", "c"} {
		mustWriteMount(t, j, createTestMount(id))
	}

	mounts, err := j.ReadMounts(ctx)
	require.NoError(t, err)
	var ids []string
	for _, m := range mounts {
		ids = append(ids, m.ProgramID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)

	latest, err := j.LatestMount(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", latest.ProgramID)
}

func TestWriteCycle_RoundTrip(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	mustWriteMount(t, j, createTestMount("p1"))

	c := createTestCycle("p1", "f1", 2, program.OriginEffect)
	c.ParentSeq = 1
	c.Depth = 1
	c.Msg = ir.Object{"kind": ir.String("add"), "n": ir.Int(5)}
	c.Duration = 1500 * time.Microsecond
	require.NoError(t, j.WriteCycle(ctx, c))

	cycles, err := j.ReadCycles(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, cycles, 1)

	got := cycles[0]
	assert.Equal(t, c.Msg, got.Msg)
	assert.Equal(t, ir.MustMessageHash(c.Msg), got.MsgHash)
	assert.Equal(t, program.OriginEffect, got.Origin)
	assert.Equal(t, int64(1), got.ParentSeq)
	assert.Equal(t, 1, got.Depth)
	assert.Equal(t, c.Duration, got.Duration)
	assert.Equal(t, "view-hash", got.ViewHash)
}

func TestWriteCycle_Idempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	mustWriteMount(t, j, createTestMount("p1"))

	c := createTestCycle("p1", "f1", 1, program.OriginExternal)
	require.NoError(t, j.WriteCycle(ctx, c))
	c.ViewHash = "different"
	require.NoError(t, j.WriteCycle(ctx, c))

	cycles, err := j.ReadCycles(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, "view-hash", cycles[0].ViewHash)
}

func TestWriteCycle_RequiresMount(t *testing.T) {
	j := createTestJournal(t)
	err := j.WriteCycle(context.Background(), createTestCycle("ghost", "f1", 1, program.OriginExternal))
	assert.Error(t, err)
}

func TestReadCycles_OrderedBySeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	mustWriteMount(t, j, createTestMount("p1"))

	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, j.WriteCycle(ctx, createTestCycle("p1", "f1", seq, program.OriginExternal)))
	}

	cycles, err := j.ReadCycles(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, cycles, 3)
	for i, c := range cycles {
		assert.Equal(t, int64(i+1), c.Seq)
	}

	empty, err := j.ReadCycles(ctx, "nope")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestReadFlow_AndRootMessages(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	mustWriteMount(t, j, createTestMount("p1"))

	write := func(c Cycle) { require.NoError(t, j.WriteCycle(ctx, c)) }
	write(createTestCycle("p1", "init", 1, program.OriginInit))
	write(createTestCycle("p1", "f1", 2, program.OriginExternal))
	write(createTestCycle("p1", "f1", 3, program.OriginEffect))
	write(createTestCycle("p1", "f2", 4, program.OriginExternal))

	flow, err := j.ReadFlow(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, flow, 2)
	assert.Equal(t, int64(2), flow[0].Seq)
	assert.Equal(t, int64(3), flow[1].Seq)

	roots, err := j.RootMessages(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, int64(2), roots[0].Seq)
	assert.Equal(t, int64(4), roots[1].Seq)
}

func TestClose_Twice(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "weft.db"))
	require.NoError(t, err)
	require.NoError(t, j.Close())
	assert.NoError(t, j.Close())
}

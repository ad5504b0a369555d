package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordRun(t *testing.T, args ...string) (db, programID string) {
	t.Helper()
	db = filepath.Join(t.TempDir(), "weft.db")
	resp, err := runJSON(t, append([]string{"--db", db}, args...)...)
	require.NoError(t, err)
	return db, resp.Data.ProgramID
}

func TestReplay_ReproducesImmediateRun(t *testing.T) {
	db, id := recordRun(t, "increment", "twice", "add:3")

	out, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "Replay OK: program "+id+", 4 cycles reproduced\n", out)
}

func TestReplay_ReproducesDeferredReplaceRun(t *testing.T) {
	db, id := recordRun(t, "--policy", "deferred", "--mount", "replace", "twice", "twice")

	out, err := execute(t, "--format", "json", "replay", "--db", db, "--program", id)
	require.NoError(t, err)

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.OK)
	assert.Equal(t, 4, resp.Data.Recorded)
	assert.Equal(t, 4, resp.Data.Replayed)
	assert.Empty(t, resp.Data.Divergences)
}

func TestReplay_MissingJournal(t *testing.T) {
	_, err := execute(t, "replay", "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "journal not found")
}

func TestReplay_UnknownProgram(t *testing.T) {
	db, _ := recordRun(t, "increment")

	_, err := execute(t, "replay", "--db", db, "--program", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplay_RequiresDB(t *testing.T) {
	_, err := execute(t, "replay")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required flag(s) "db" not set`)
}

func TestWriteReplayText_Diverged(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, writeReplayText(&sb, ReplayOutput{
		ProgramID:   "p",
		Recorded:    3,
		Replayed:    2,
		Divergences: []string{"seq 3: missing: recorded external cycle was not replayed"},
		Error:       "QUOTA_EXCEEDED",
	}))
	assert.Equal(t, "Replay DIVERGED: program p, 3 recorded, 2 replayed\n"+
		"  seq 3: missing: recorded external cycle was not replayed\n"+
		"  stopped: QUOTA_EXCEEDED\n", sb.String())
}

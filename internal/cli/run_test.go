package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runResponse struct {
	Status string     `json:"status"`
	Data   RunSummary `json:"data"`
	Error  *CLIError  `json:"error"`
}

func runJSON(t *testing.T, args ...string) (runResponse, error) {
	t.Helper()
	out, err := execute(t, append([]string{"--format", "json", "run"}, args...)...)
	var resp runResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp, err
}

func TestRun_ImmediatePrintsDocument(t *testing.T) {
	out, err := execute(t, "run", "increment", "twice", "add:5")
	require.NoError(t, err)
	assert.Contains(t, out, `<h1 class="count">Count: 8</h1>`)
	assert.Contains(t, out, "<style>")
}

func TestRun_Pretty(t *testing.T) {
	plain, err := execute(t, "run", "add:3")
	require.NoError(t, err)
	pretty, err := execute(t, "run", "--pretty", "add:3")
	require.NoError(t, err)

	assert.Contains(t, pretty, "Count: 3")
	assert.Greater(t, strings.Count(pretty, "\n"), strings.Count(plain, "\n"))
}

func TestRun_JSONSummary(t *testing.T) {
	resp, err := runJSON(t, "--start", "10", "decrement")
	require.NoError(t, err)

	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "immediate", resp.Data.Policy)
	assert.Equal(t, "append", resp.Data.Mount)
	assert.Equal(t, 9, resp.Data.Count)
	assert.Equal(t, int64(1), resp.Data.Cycles)
	assert.Len(t, resp.Data.ProgramID, 36)
	assert.Empty(t, resp.Data.Journal)
}

func TestRun_Deferred(t *testing.T) {
	resp, err := runJSON(t, "--policy", "deferred", "twice", "increment")
	require.NoError(t, err)

	assert.Equal(t, "deferred", resp.Data.Policy)
	assert.Equal(t, 3, resp.Data.Count)
	assert.Equal(t, int64(3), resp.Data.Cycles)
	assert.Contains(t, resp.Data.HTML, "Count: 3")
}

func TestRun_AsyncRequest(t *testing.T) {
	for _, policy := range []string{"immediate", "deferred"} {
		t.Run(policy, func(t *testing.T) {
			resp, err := runJSON(t, "--policy", policy, "request", "request", "add:10")
			require.NoError(t, err)

			assert.Equal(t, 12, resp.Data.Count)
			assert.Equal(t, int64(5), resp.Data.Cycles)
			assert.Contains(t, resp.Data.HTML, "Count: 12")
		})
	}
}

func TestRun_PolicyFromConfig(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "weft.cue", "policy: \"deferred\"\nframe_rate: 240\n")

	resp, err := runJSON(t, "--config", cfg, "increment")
	require.NoError(t, err)
	assert.Equal(t, "deferred", resp.Data.Policy)
	assert.Equal(t, 1, resp.Data.Count)
}

func TestRun_Replace(t *testing.T) {
	resp, err := runJSON(t, "--mount", "replace", "increment")
	require.NoError(t, err)

	assert.Equal(t, "replace", resp.Data.Mount)
	assert.NotContains(t, resp.Data.HTML, `id="app"`)
	assert.Contains(t, resp.Data.HTML, `<body><div id="counter">`)
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"message", []string{"run", "explode"}, "invalid message"},
		{"policy", []string{"run", "--policy", "eventually"}, "invalid policy"},
		{"mount", []string{"run", "--mount", "prepend"}, "invalid mount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_QuotaExceeded(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "weft.cue", "max_steps: 1\n")

	resp, err := runJSON(t, "--config", cfg, "twice")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "QUOTA_EXCEEDED", resp.Error.Code)
}

func TestRun_RecordsJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "weft.db")

	resp, err := runJSON(t, "--db", db, "--start", "2", "twice")
	require.NoError(t, err)
	assert.Equal(t, db, resp.Data.Journal)

	j, err := openJournal(db)
	require.NoError(t, err)
	defer j.Close()

	mount, err := j.LatestMount(t.Context())
	require.NoError(t, err)
	assert.Equal(t, resp.Data.ProgramID, mount.ProgramID)
	assert.Equal(t, "counter", mount.App)
	assert.Equal(t, "immediate", mount.Policy)

	app, err := counterFromMount(mount)
	require.NoError(t, err)
	assert.NotNil(t, app)

	cycles, err := j.ReadCycles(t.Context(), mount.ProgramID)
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, "increment_twice", cycles[0].Msg.Kind())
	assert.Equal(t, "increment", cycles[1].Msg.Kind())
	assert.Equal(t, int64(1), cycles[1].ParentSeq)
}

package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/weft/internal/apps/counter"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/program"
)

// createTestJournal opens a journal in a temporary directory.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func createTestMount(programID string) Mount {
	return Mount{
		ProgramID: programID,
		App:       "counter",
		Policy:    "immediate",
		Strategy:  "append",
		Params:    ir.Object{"start": ir.Int(0)},
		MaxSteps:  1000,
	}
}

func createTestCycle(programID, flowToken string, seq int64, origin program.Origin) Cycle {
	return Cycle{
		ProgramID: programID,
		Seq:       seq,
		FlowToken: flowToken,
		Origin:    origin,
		Msg:       ir.Object{"kind": ir.String("increment")},
		ViewHash:  "view-hash",
	}
}

func mustWriteMount(t *testing.T, j *Journal, m Mount) {
	t.Helper()
	if err := j.WriteMount(context.Background(), m); err != nil {
		t.Fatalf("WriteMount() failed: %v", err)
	}
}

// newCounter builds a counter from a mount's "start" parameter.
func newCounter(m Mount) (program.Application[counter.Msg], error) {
	start, _ := m.Params["start"].(ir.Int)
	return counter.New(int(start)), nil
}

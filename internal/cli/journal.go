package cli

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/roach88/weft/internal/journal"
)

// openJournal opens an existing journal. Unlike journal.Open it refuses
// to create a new database.
func openJournal(path string) (*journal.Journal, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, NewExitError(ExitCommandError, "journal not found: "+path)
	}
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

// resolveProgram returns id, or the latest mounted program when id is
// empty.
func resolveProgram(ctx context.Context, j *journal.Journal, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	m, err := j.LatestMount(ctx)
	if errors.Is(err, journal.ErrNotFound) {
		return "", NewExitError(ExitCommandError, "journal has no programs")
	}
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	return m.ProgramID, nil
}

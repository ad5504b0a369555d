package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/weft/internal/apps/counter"
	"github.com/roach88/weft/internal/journal"
	"github.com/roach88/weft/internal/program"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	ProgramID string
	Timeout   time.Duration
}

// ReplayOutput is the JSON output of the replay command.
type ReplayOutput struct {
	ProgramID   string   `json:"program_id"`
	Recorded    int      `json:"recorded"`
	Replayed    int      `json:"replayed"`
	OK          bool     `json:"ok"`
	Divergences []string `json:"divergences"`
	Error       string   `json:"error,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a journaled program and check determinism",
		Long: `Replay a recorded program from the journal.

The external messages of the program are dispatched again into a fresh
counter and every resulting cycle is compared with the journal: message,
causality (origin, parent, depth) and view hash.

Exit codes:
  0 - Replay reproduced the journal
  1 - Divergence or runtime error
  2 - Command error (journal not found, unknown program)

Examples:
  weft replay --db ./weft.db
  weft replay --db ./weft.db --program 0192...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ProgramID, "program", "", "program ID (default: latest mount)")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "maximum time to wait for asynchronous effects")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)
	out := newFormatter(cmd, opts.RootOptions)

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	defer cancel()

	programID, err := resolveProgram(ctx, j, opts.ProgramID)
	if err != nil {
		return err
	}

	res, err := journal.Replay[counter.Msg](ctx, j, programID, counter.Codec{}, counterFromMount,
		program.WithLogger(logger))
	if err != nil {
		if errors.Is(err, journal.ErrNotFound) {
			return WrapExitError(ExitCommandError, "program not found", err)
		}
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	output := ReplayOutput{
		ProgramID:   res.ProgramID,
		Recorded:    res.Recorded,
		Replayed:    res.Replayed,
		OK:          res.OK(),
		Divergences: make([]string, 0, len(res.Divergences)),
	}
	for _, d := range res.Divergences {
		output.Divergences = append(output.Divergences, d.String())
	}
	if res.Err != nil {
		output.Error = res.Err.Error()
	}

	if err := out.Success(output, func(w io.Writer) error {
		return writeReplayText(w, output)
	}); err != nil {
		return err
	}
	if !output.OK {
		return NewExitError(ExitFailure, fmt.Sprintf("replay of %s diverged", output.ProgramID))
	}
	return nil
}

func writeReplayText(w io.Writer, o ReplayOutput) error {
	if o.OK {
		_, err := fmt.Fprintf(w, "Replay OK: program %s, %d cycles reproduced\n", o.ProgramID, o.Replayed)
		return err
	}
	fmt.Fprintf(w, "Replay DIVERGED: program %s, %d recorded, %d replayed\n", o.ProgramID, o.Recorded, o.Replayed)
	for _, d := range o.Divergences {
		fmt.Fprintf(w, "  %s\n", d)
	}
	if o.Error != "" {
		fmt.Fprintf(w, "  stopped: %s\n", o.Error)
	}
	return nil
}

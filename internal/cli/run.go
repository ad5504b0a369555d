package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/yosssi/gohtml"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/weft/internal/apps/counter"
	"github.com/roach88/weft/internal/config"
	"github.com/roach88/weft/internal/frame"
	"github.com/roach88/weft/internal/host"
	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/journal"
	"github.com/roach88/weft/internal/program"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Mount    string // "append" | "replace"
	Policy   string // overrides the config file when set
	Database string // overrides the config file when set
	Start    int
	Pretty   bool
}

// RunSummary is the JSON output of the run command.
type RunSummary struct {
	ProgramID string `json:"program_id"`
	Policy    string `json:"policy"`
	Mount     string `json:"mount"`
	Count     int    `json:"count"`
	Cycles    int64  `json:"cycles"`
	Journal   string `json:"journal,omitempty"`
	HTML      string `json:"html"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [messages...]",
		Short: "Mount the counter and dispatch messages",
		Long: `Mount the counter application into a fresh document, dispatch the given
messages in order and print the resulting document.

Messages: increment, decrement, reset, increment_twice, request, add:N.

Under the deferred policy every message is scheduled before the frame loop
starts. Either way the program settles before the document is printed:
results of asynchronous effects such as request have gone through a cycle.

Examples:
  weft run increment increment add:5
  weft run --policy deferred twice
  weft run --mount replace --db ./weft.db inc inc
  weft run --pretty add:3`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mount, "mount", "append", "mount strategy (append|replace)")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "dispatch policy (immediate|deferred), overrides config")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record cycles to this journal, overrides config")
	cmd.Flags().IntVar(&opts.Start, "start", 0, "initial count")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "indent the printed document")

	return cmd
}

func runProgram(opts *RunOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if opts.Policy != "" {
		cfg.Policy = opts.Policy
	}
	if opts.Database != "" {
		cfg.Journal = opts.Database
	}
	if cfg.Policy != "immediate" && cfg.Policy != "deferred" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid policy %q: must be immediate or deferred", cfg.Policy))
	}
	if opts.Mount != "append" && opts.Mount != "replace" {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid mount %q: must be append or replace", opts.Mount))
	}

	msgs, err := counter.ParseMsgs(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid message", err)
	}

	logger := opts.newLogger(cmd.ErrOrStderr(), cfg)
	out := newFormatter(cmd, opts.RootOptions)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	programID := uuid.Must(uuid.NewV7()).String()
	popts := []program.Option{
		program.WithProgramID(programID),
		program.WithLogger(logger),
		program.WithMaxSteps(cfg.MaxSteps),
	}
	if cfg.Measure {
		popts = append(popts, program.WithMeasurer(program.NewSlogMeasurer(logger)))
	}

	if cfg.Journal != "" {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		err = j.WriteMount(ctx, journal.Mount{
			ProgramID: programID,
			App:       "counter",
			Policy:    cfg.Policy,
			Strategy:  opts.Mount,
			Params:    ir.Object{"start": ir.Int(opts.Start)},
			MaxSteps:  cfg.MaxSteps,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record mount", err)
		}
		popts = append(popts, program.WithObserver(journal.NewRecorder[counter.Msg](ctx, j, counter.Codec{}, logger)))
	}

	model := counter.New(opts.Start)
	doc := host.NewDocument()

	var p *program.Program[counter.Msg]
	if cfg.Deferred() {
		p, err = runDeferred(ctx, cfg, logger, model, doc, opts.Mount, msgs, popts)
	} else {
		p, err = runImmediate(ctx, model, doc, opts.Mount, msgs, popts)
	}
	if err != nil {
		var re *program.RuntimeError
		code := "RUNTIME_ERROR"
		if errors.As(err, &re) {
			code = string(re.Code)
		} else if program.IsQuotaError(err) {
			code = string(program.ErrCodeQuotaExceeded)
		}
		return out.Failure(ExitFailure, code, err.Error(), nil)
	}

	var count int
	p.Inspect(func(app program.Application[counter.Msg]) {
		count = app.(*counter.Model).Count
	})
	summary := RunSummary{
		ProgramID: p.ID(),
		Policy:    cfg.Policy,
		Mount:     opts.Mount,
		Count:     count,
		Cycles:    p.Cycles(),
		Journal:   cfg.Journal,
		HTML:      doc.String(),
	}
	return out.Success(summary, func(w io.Writer) error {
		text := summary.HTML
		if opts.Pretty {
			text = gohtml.Format(text)
		}
		_, err := fmt.Fprintln(w, text)
		return err
	})
}

// mountCounter mounts model into doc with the given strategy. Replace mounts
// take the place of a placeholder <div id="app"> in the body.
func mountCounter(model *counter.Model, doc *host.Document, strategy string, popts []program.Option) (p *program.Program[counter.Msg], err error) {
	defer program.Recover(&err)

	if strategy == "replace" {
		body, berr := doc.Body()
		if berr != nil {
			return nil, berr
		}
		placeholder := host.NewElement("div", html.Attribute{Key: "id", Val: "app"})
		body.AppendChild(placeholder)
		return program.MountReplacing[counter.Msg](model, doc, placeholder, popts...)
	}
	return program.MountToDefaultRoot[counter.Msg](model, doc, popts...)
}

func runImmediate(ctx context.Context, model *counter.Model, doc *host.Document, strategy string, msgs []counter.Msg, popts []program.Option) (*program.Program[counter.Msg], error) {
	p, err := mountCounter(model, doc, strategy, popts)
	if err != nil {
		return nil, err
	}
	if err := dispatchAll(ctx, p, msgs); err != nil {
		return nil, err
	}
	return p, nil
}

// dispatchAll dispatches msgs in order, then runs the results of
// asynchronous effects until the program settles.
func dispatchAll(ctx context.Context, p *program.Program[counter.Msg], msgs []counter.Msg) (err error) {
	defer program.Recover(&err)
	for _, msg := range msgs {
		p.Dispatch(msg)
	}
	return p.Settle(ctx)
}

// runDeferred schedules Init and every message, then runs the frame loop
// until the program settles, asynchronous effects included. A panicking
// cycle stops the loop and is returned.
func runDeferred(ctx context.Context, cfg config.Config, logger *slog.Logger, model *counter.Model, doc *host.Document, strategy string, msgs []counter.Msg, popts []program.Option) (*program.Program[counter.Msg], error) {
	loop := frame.NewLoop(cfg.FrameInterval(), frame.WithLogger(logger))
	popts = append(popts, program.WithPolicy(program.Deferred(loop)))

	p, err := mountCounter(model, doc, strategy, popts)
	if err != nil {
		return nil, err
	}
	if err := scheduleAll(p, msgs); err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		defer loop.Stop()
		if err := p.Settle(gctx); err != nil {
			return err
		}
		// The last cycle's frame may still be finishing.
		return loop.Drain(gctx)
	})
	if err := g.Wait(); err != nil {
		var pe *frame.PanicError
		if errors.As(err, &pe) {
			if cause := pe.Unwrap(); cause != nil {
				return nil, cause
			}
		}
		return nil, err
	}
	logger.Debug("frame loop drained", "frames", loop.Frames())
	return p, nil
}

func scheduleAll(p *program.Program[counter.Msg], msgs []counter.Msg) (err error) {
	defer program.Recover(&err)
	for _, msg := range msgs {
		p.Dispatch(msg)
	}
	return nil
}

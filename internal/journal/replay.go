package journal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/weft/internal/frame"
	"github.com/roach88/weft/internal/host"
	"github.com/roach88/weft/internal/program"
)

const (
	// settleInterval is how often Replay flushes a deferred program whose
	// asynchronous effects are still running.
	settleInterval = 5 * time.Millisecond

	// settleTimeout bounds the wait for asynchronous effects.
	settleTimeout = 2 * time.Second
)

// DivergenceKind classifies a mismatch between a recorded and a replayed
// cycle.
type DivergenceKind string

const (
	DivergenceMissing    DivergenceKind = "missing"    // recorded, not replayed
	DivergenceUnexpected DivergenceKind = "unexpected" // replayed, not recorded
	DivergenceMessage    DivergenceKind = "message"
	DivergenceCausality  DivergenceKind = "causality" // origin, parent or depth differ
	DivergenceView       DivergenceKind = "view"
)

// Divergence is one mismatch found by Replay.
type Divergence struct {
	Seq    int64
	Kind   DivergenceKind
	Detail string
}

func (d Divergence) String() string {
	return fmt.Sprintf("seq %d: %s: %s", d.Seq, d.Kind, d.Detail)
}

// ReplayResult is the outcome of replaying one program.
type ReplayResult struct {
	ProgramID   string
	Recorded    int
	Replayed    int
	Divergences []Divergence
	// Err is the runtime error that stopped the replayed program, if any.
	Err error
}

// OK reports whether the replay reproduced the journal exactly.
func (r *ReplayResult) OK() bool {
	return r.Err == nil && len(r.Divergences) == 0
}

// AppFactory builds a fresh application for a recorded mount.
type AppFactory[M any] func(m Mount) (program.Application[M], error)

// Replay mounts a fresh program for the recorded mount of programID,
// dispatches its external messages in seq order and compares every
// resulting cycle with the journal. Init messages are reproduced by the
// application's own Init.
//
// A deferred program is replayed on a frame.Manual scheduler. Replay waits
// until the program has settled, it has produced more cycles than were
// recorded, settleTimeout has passed, or ctx is done.
func Replay[M any](ctx context.Context, j *Journal, programID string, codec Codec[M], newApp AppFactory[M], opts ...program.Option) (*ReplayResult, error) {
	mount, err := j.ReadMount(ctx, programID)
	if err != nil {
		return nil, err
	}
	recorded, err := j.ReadCycles(ctx, programID)
	if err != nil {
		return nil, err
	}
	roots, err := j.RootMessages(ctx, programID)
	if err != nil {
		return nil, err
	}

	msgs := make([]M, len(roots))
	for i, c := range roots {
		if msgs[i], err = codec.Decode(c.Msg); err != nil {
			return nil, fmt.Errorf("decode root message %d: %w", c.Seq, err)
		}
	}

	app, err := newApp(mount)
	if err != nil {
		return nil, fmt.Errorf("build application %s: %w", mount.App, err)
	}

	col := &collector[M]{codec: codec}
	var sched *frame.Manual
	opts = append(opts,
		program.WithProgramID(programID),
		program.WithClock(program.NewClock()),
		program.WithMaxSteps(mount.MaxSteps),
		program.WithObserver(col))
	if mount.Policy == "deferred" {
		sched = frame.NewManual()
		opts = append(opts, program.WithPolicy(program.Deferred(sched)))
	} else {
		opts = append(opts, program.WithPolicy(program.Immediate()))
	}

	result := &ReplayResult{ProgramID: programID, Recorded: len(recorded)}
	result.Err = run(ctx, mount, app, msgs, sched, col, len(recorded), opts)

	replayed, err := col.result()
	if err != nil {
		return nil, err
	}
	result.Replayed = len(replayed)
	result.Divergences = compare(recorded, replayed)
	return result, nil
}

// run mounts the program, feeds it msgs and waits for it to settle. It
// returns the runtime error that stopped the program, if any.
func run[M any](ctx context.Context, mount Mount, app program.Application[M], msgs []M, sched *frame.Manual, col *collector[M], want int, opts []program.Option) (err error) {
	defer program.Recover(&err)

	doc := host.NewDocument()
	var p *program.Program[M]
	if mount.Strategy == "replace" {
		body, berr := doc.Body()
		if berr != nil {
			return berr
		}
		placeholder := host.NewElement("div")
		body.AppendChild(placeholder)
		p, err = program.MountReplacing(app, doc, placeholder, opts...)
	} else {
		p, err = program.MountToDefaultRoot(app, doc, opts...)
	}
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		p.Dispatch(msg)
	}

	settleCtx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	if sched == nil {
		if err := p.Settle(settleCtx); err != nil && settleCtx.Err() == nil {
			return err
		}
		return nil
	}
	for {
		if _, ferr := sched.FlushAll(want + 1); ferr != nil && !errors.Is(ferr, frame.ErrFrameLimit) {
			return ferr
		}
		if p.Pending() == 0 || col.len() > want {
			return nil
		}
		select {
		case <-settleCtx.Done():
			return nil
		case <-time.After(settleInterval):
		}
	}
}

type collector[M any] struct {
	codec Codec[M]

	mu     sync.Mutex
	cycles []Cycle
	err    error
}

func (c *collector[M]) CycleCompleted(info program.CycleInfo) {
	cy, err := cycleFromInfo(c.codec, info)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("replayed cycle %d: %w", info.Seq, err)
		}
		return
	}
	c.cycles = append(c.cycles, cy)
}

func (c *collector[M]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cycles)
}

func (c *collector[M]) result() ([]Cycle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Cycle(nil), c.cycles...)
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out, c.err
}

// compare matches cycles by seq. Both inputs are sorted by seq.
func compare(recorded, replayed []Cycle) []Divergence {
	var out []Divergence
	i, k := 0, 0
	for i < len(recorded) || k < len(replayed) {
		switch {
		case k == len(replayed) || (i < len(recorded) && recorded[i].Seq < replayed[k].Seq):
			r := recorded[i]
			out = append(out, Divergence{Seq: r.Seq, Kind: DivergenceMissing,
				Detail: fmt.Sprintf("recorded %s cycle %s was not replayed", r.Origin, r.Msg.Kind())})
			i++
		case i == len(recorded) || replayed[k].Seq < recorded[i].Seq:
			p := replayed[k]
			out = append(out, Divergence{Seq: p.Seq, Kind: DivergenceUnexpected,
				Detail: fmt.Sprintf("replay produced %s cycle %s", p.Origin, p.Msg.Kind())})
			k++
		default:
			out = append(out, diffCycle(recorded[i], replayed[k])...)
			i++
			k++
		}
	}
	return out
}

func diffCycle(r, p Cycle) []Divergence {
	var out []Divergence
	if r.MsgHash != p.MsgHash {
		out = append(out, Divergence{Seq: r.Seq, Kind: DivergenceMessage,
			Detail: fmt.Sprintf("recorded %s, replayed %s", r.Msg.Kind(), p.Msg.Kind())})
	}
	if r.Origin != p.Origin || r.ParentSeq != p.ParentSeq || r.Depth != p.Depth {
		out = append(out, Divergence{Seq: r.Seq, Kind: DivergenceCausality,
			Detail: fmt.Sprintf("recorded %s parent=%d depth=%d, replayed %s parent=%d depth=%d",
				r.Origin, r.ParentSeq, r.Depth, p.Origin, p.ParentSeq, p.Depth)})
	}
	if r.ViewHash != p.ViewHash {
		out = append(out, Divergence{Seq: r.Seq, Kind: DivergenceView,
			Detail: fmt.Sprintf("recorded %s, replayed %s", short(r.ViewHash), short(p.ViewHash))})
	}
	return out
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

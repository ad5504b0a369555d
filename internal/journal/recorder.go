package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/program"
)

// Codec converts an application's messages to and from their journaled
// form.
type Codec[M any] interface {
	Encode(msg M) (ir.Object, error)
	Decode(obj ir.Object) (M, error)
}

// Recorder is a program.Observer that writes every completed cycle to a
// journal. Failed writes are logged and counted; they never stop the
// program.
type Recorder[M any] struct {
	ctx     context.Context
	journal *Journal
	codec   Codec[M]
	logger  *slog.Logger

	written atomic.Int64
	failed  atomic.Int64
}

// NewRecorder returns a recorder writing to j. ctx bounds every write.
func NewRecorder[M any](ctx context.Context, j *Journal, codec Codec[M], logger *slog.Logger) *Recorder[M] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder[M]{
		ctx:     ctx,
		journal: j,
		codec:   codec,
		logger:  logger,
	}
}

// CycleCompleted implements program.Observer.
func (r *Recorder[M]) CycleCompleted(info program.CycleInfo) {
	c, err := cycleFromInfo(r.codec, info)
	if err == nil {
		err = r.journal.WriteCycle(r.ctx, c)
	}
	if err != nil {
		r.failed.Add(1)
		r.logger.Warn("journal write failed",
			"program_id", info.ProgramID,
			"seq", info.Seq,
			"error", err)
		return
	}
	r.written.Add(1)
}

// Written returns the number of cycles recorded.
func (r *Recorder[M]) Written() int64 { return r.written.Load() }

// Failed returns the number of cycles that could not be recorded.
func (r *Recorder[M]) Failed() int64 { return r.failed.Load() }

func cycleFromInfo[M any](codec Codec[M], info program.CycleInfo) (Cycle, error) {
	msg, ok := info.Msg.(M)
	if !ok {
		return Cycle{}, fmt.Errorf("message of type %T", info.Msg)
	}
	obj, err := codec.Encode(msg)
	if err != nil {
		return Cycle{}, fmt.Errorf("encode message: %w", err)
	}
	msgHash, err := ir.MessageHash(obj)
	if err != nil {
		return Cycle{}, fmt.Errorf("hash message: %w", err)
	}
	viewHash, err := info.View.Hash()
	if err != nil {
		return Cycle{}, fmt.Errorf("hash view: %w", err)
	}
	return Cycle{
		ProgramID: info.ProgramID,
		Seq:       info.Seq,
		ParentSeq: info.ParentSeq,
		FlowToken: info.FlowToken,
		Origin:    info.Origin,
		Depth:     info.Depth,
		Msg:       obj,
		MsgHash:   msgHash,
		ViewHash:  viewHash,
		Duration:  info.Timings.Total(),
	}, nil
}

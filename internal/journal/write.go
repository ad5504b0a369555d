package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/program"
)

// Mount describes one mounted program.
type Mount struct {
	ProgramID      string
	App            string
	Policy         string // "immediate" or "deferred"
	Strategy       string // "append" or "replace"
	Params         ir.Object
	MaxSteps       int
	RuntimeVersion string
	FormatVersion  string
}

// Cycle is one completed cycle as stored in the journal.
type Cycle struct {
	ProgramID string
	Seq       int64
	ParentSeq int64
	FlowToken string
	Origin    program.Origin
	Depth     int
	Msg       ir.Object
	MsgHash   string
	ViewHash  string
	Duration  time.Duration
}

// WriteMount records a mount. Writing the same program ID twice is a
// no-op. Empty version fields are filled with the current versions.
func (j *Journal) WriteMount(ctx context.Context, m Mount) error {
	if m.RuntimeVersion == "" {
		m.RuntimeVersion = ir.RuntimeVersion
	}
	if m.FormatVersion == "" {
		m.FormatVersion = ir.FormatVersion
	}
	params := m.Params
	if params == nil {
		params = ir.Object{}
	}
	paramsJSON, err := ir.MarshalCanonical(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO mounts (program_id, app, policy, strategy, params, max_steps, runtime_version, format_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(program_id) DO NOTHING
	`, m.ProgramID, m.App, m.Policy, m.Strategy, string(paramsJSON), m.MaxSteps, m.RuntimeVersion, m.FormatVersion)
	if err != nil {
		return fmt.Errorf("insert mount %s: %w", m.ProgramID, err)
	}
	return nil
}

// WriteCycle records a completed cycle. Writing the same (program, seq)
// twice is a no-op. An empty MsgHash is computed from Msg.
func (j *Journal) WriteCycle(ctx context.Context, c Cycle) error {
	msg := c.Msg
	if msg == nil {
		msg = ir.Object{}
	}
	msgJSON, err := ir.MarshalCanonical(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if c.MsgHash == "" {
		if c.MsgHash, err = ir.MessageHash(msg); err != nil {
			return fmt.Errorf("hash message: %w", err)
		}
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO cycles (program_id, seq, parent_seq, flow_token, origin, depth, msg, msg_hash, view_hash, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(program_id, seq) DO NOTHING
	`, c.ProgramID, c.Seq, c.ParentSeq, c.FlowToken, c.Origin.String(), c.Depth,
		string(msgJSON), c.MsgHash, c.ViewHash, c.Duration.Nanoseconds())
	if err != nil {
		return fmt.Errorf("insert cycle %s/%d: %w", c.ProgramID, c.Seq, err)
	}
	return nil
}

package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/program"
)

const cycleColumns = `program_id, seq, parent_seq, flow_token, origin, depth, msg, msg_hash, view_hash, duration_ns`

const mountColumns = `program_id, app, policy, strategy, params, max_steps, runtime_version, format_version`

// ReadCycles returns every cycle of a program ordered by seq.
func (j *Journal) ReadCycles(ctx context.Context, programID string) ([]Cycle, error) {
	return j.queryCycles(ctx, `
		SELECT `+cycleColumns+`
		FROM cycles
		WHERE program_id = ?
		ORDER BY seq ASC
	`, programID)
}

// ReadFlow returns every cycle carrying flowToken ordered by seq.
func (j *Journal) ReadFlow(ctx context.Context, flowToken string) ([]Cycle, error) {
	return j.queryCycles(ctx, `
		SELECT `+cycleColumns+`
		FROM cycles
		WHERE flow_token = ?
		ORDER BY program_id ASC, seq ASC
	`, flowToken)
}

// RootMessages returns the externally dispatched cycles of a program in
// seq order. Replaying them reproduces the program.
func (j *Journal) RootMessages(ctx context.Context, programID string) ([]Cycle, error) {
	return j.queryCycles(ctx, `
		SELECT `+cycleColumns+`
		FROM cycles
		WHERE program_id = ? AND origin = 'external'
		ORDER BY seq ASC
	`, programID)
}

// ReadMount returns the mount of programID, or ErrNotFound.
func (j *Journal) ReadMount(ctx context.Context, programID string) (Mount, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+mountColumns+`
		FROM mounts
		WHERE program_id = ?
	`, programID)
	m, err := scanMount(row)
	if err != nil {
		return Mount{}, fmt.Errorf("read mount %s: %w", programID, err)
	}
	return m, nil
}

// LatestMount returns the most recently written mount, or ErrNotFound.
func (j *Journal) LatestMount(ctx context.Context) (Mount, error) {
	row := j.db.QueryRowContext(ctx, `
		SELECT `+mountColumns+`
		FROM mounts
		ORDER BY id DESC
		LIMIT 1
	`)
	m, err := scanMount(row)
	if err != nil {
		return Mount{}, fmt.Errorf("read latest mount: %w", err)
	}
	return m, nil
}

// ReadMounts returns every mount in write order.
func (j *Journal) ReadMounts(ctx context.Context) ([]Mount, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+mountColumns+`
		FROM mounts
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query mounts: %w", err)
	}
	defer rows.Close()

	mounts := []Mount{}
	for rows.Next() {
		m, err := scanMount(rows)
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate mounts: %w", err)
	}
	return mounts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMount(s scanner) (Mount, error) {
	var (
		m      Mount
		params string
	)
	err := s.Scan(&m.ProgramID, &m.App, &m.Policy, &m.Strategy, &params, &m.MaxSteps, &m.RuntimeVersion, &m.FormatVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return Mount{}, ErrNotFound
	}
	if err != nil {
		return Mount{}, fmt.Errorf("scan mount: %w", err)
	}
	if m.Params, err = ir.ParseObject([]byte(params)); err != nil {
		return Mount{}, fmt.Errorf("parse params of %s: %w", m.ProgramID, err)
	}
	return m, nil
}

func (j *Journal) queryCycles(ctx context.Context, query string, args ...any) ([]Cycle, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	cycles := []Cycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return cycles, nil
}

func scanCycle(s scanner) (Cycle, error) {
	var (
		c          Cycle
		origin     string
		msg        string
		durationNS int64
	)
	err := s.Scan(&c.ProgramID, &c.Seq, &c.ParentSeq, &c.FlowToken, &origin, &c.Depth, &msg, &c.MsgHash, &c.ViewHash, &durationNS)
	if err != nil {
		return Cycle{}, fmt.Errorf("scan cycle: %w", err)
	}
	if c.Origin, err = program.ParseOrigin(origin); err != nil {
		return Cycle{}, fmt.Errorf("cycle %s/%d: %w", c.ProgramID, c.Seq, err)
	}
	if c.Msg, err = ir.ParseObject([]byte(msg)); err != nil {
		return Cycle{}, fmt.Errorf("parse message of %s/%d: %w", c.ProgramID, c.Seq, err)
	}
	c.Duration = time.Duration(durationNS)
	return c, nil
}

package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/roach88/weft/internal/ir"
	"github.com/roach88/weft/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database  string
	ProgramID string
	FlowToken string
}

// TraceCycle is one row of the trace output.
type TraceCycle struct {
	ProgramID string `json:"program_id"`
	Seq       int64  `json:"seq"`
	ParentSeq int64  `json:"parent_seq"`
	FlowToken string `json:"flow_token"`
	Origin    string `json:"origin"`
	Depth     int    `json:"depth"`
	Msg       string `json:"msg"`
	ViewHash  string `json:"view_hash"`
	Duration  string `json:"duration"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	ProgramID string       `json:"program_id,omitempty"`
	FlowToken string       `json:"flow_token,omitempty"`
	Cycles    []TraceCycle `json:"cycles"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats summarizes a trace.
type TraceStats struct {
	Total    int `json:"total"`
	External int `json:"external"`
	Effect   int `json:"effect"`
	Init     int `json:"init"`
	Flows    int `json:"flows"`
	MaxDepth int `json:"max_depth"`
}

var (
	traceHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	traceCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	traceDimStyle    = traceCellStyle.Foreground(lipgloss.Color("243"))
	traceTitleStyle  = lipgloss.NewStyle().Bold(true)
)

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List journaled cycles",
		Long: `List the cycles recorded in a journal in seq order.

With --flow, lists every cycle of one flow: the external, init or effect
message that started it and every message its commands emitted.
Otherwise lists every cycle of one program (default: the latest mount).

Examples:
  weft trace --db ./weft.db
  weft trace --db ./weft.db --flow 0192...
  weft trace --db ./weft.db --program 0192... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to journal database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.ProgramID, "program", "", "program ID (default: latest mount)")
	cmd.Flags().StringVar(&opts.FlowToken, "flow", "", "flow token to trace")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(cmd, opts.RootOptions)

	j, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer j.Close()

	result := TraceResult{FlowToken: opts.FlowToken}
	var cycles []journal.Cycle
	if opts.FlowToken != "" {
		cycles, err = j.ReadFlow(ctx, opts.FlowToken)
	} else {
		result.ProgramID, err = resolveProgram(ctx, j, opts.ProgramID)
		if err != nil {
			return err
		}
		cycles, err = j.ReadCycles(ctx, result.ProgramID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cycles", err)
	}

	result.Cycles = buildTraceCycles(cycles)
	result.Stats = buildTraceStats(cycles)

	return out.Success(result, func(w io.Writer) error {
		return writeTraceText(w, result)
	})
}

func buildTraceCycles(cycles []journal.Cycle) []TraceCycle {
	rows := make([]TraceCycle, 0, len(cycles))
	for _, c := range cycles {
		rows = append(rows, TraceCycle{
			ProgramID: c.ProgramID,
			Seq:       c.Seq,
			ParentSeq: c.ParentSeq,
			FlowToken: c.FlowToken,
			Origin:    c.Origin.String(),
			Depth:     c.Depth,
			Msg:       describeMsg(c),
			ViewHash:  c.ViewHash,
			Duration:  c.Duration.Round(time.Microsecond).String(),
		})
	}
	return rows
}

// describeMsg renders a journaled message as its kind followed by its
// other fields.
func describeMsg(c journal.Cycle) string {
	var sb strings.Builder
	sb.WriteString(c.Msg.Kind())
	for _, k := range c.Msg.SortedKeys() {
		if k == "kind" {
			continue
		}
		data, err := ir.MarshalValue(c.Msg[k])
		if err != nil {
			data = []byte("?")
		}
		fmt.Fprintf(&sb, " %s=%s", k, data)
	}
	return sb.String()
}

func buildTraceStats(cycles []journal.Cycle) TraceStats {
	stats := TraceStats{Total: len(cycles)}
	flows := make(map[string]struct{})
	for _, c := range cycles {
		switch c.Origin.String() {
		case "external":
			stats.External++
		case "effect":
			stats.Effect++
		case "init":
			stats.Init++
		}
		flows[c.FlowToken] = struct{}{}
		stats.MaxDepth = max(stats.MaxDepth, c.Depth)
	}
	stats.Flows = len(flows)
	return stats
}

func writeTraceText(w io.Writer, r TraceResult) error {
	switch {
	case r.FlowToken != "":
		fmt.Fprintln(w, traceTitleStyle.Render("Flow "+r.FlowToken))
	default:
		fmt.Fprintln(w, traceTitleStyle.Render("Program "+r.ProgramID))
	}
	if len(r.Cycles) == 0 {
		_, err := fmt.Fprintln(w, "No cycles recorded.")
		return err
	}

	rows := make([][]string, 0, len(r.Cycles))
	for _, c := range r.Cycles {
		rows = append(rows, []string{
			strconv.FormatInt(c.Seq, 10),
			parentLabel(c.ParentSeq),
			c.Origin,
			strconv.Itoa(c.Depth),
			c.Msg,
			shortToken(c.FlowToken),
			shortToken(c.ViewHash),
			c.Duration,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("SEQ", "PARENT", "ORIGIN", "DEPTH", "MESSAGE", "FLOW", "VIEW", "TOOK").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return traceHeaderStyle
			case col >= 5:
				return traceDimStyle
			}
			return traceCellStyle
		})
	fmt.Fprintln(w, t.Render())

	s := r.Stats
	_, err := fmt.Fprintf(w, "%d cycles (%d external, %d effect, %d init) in %d flows, max depth %d\n",
		s.Total, s.External, s.Effect, s.Init, s.Flows, s.MaxDepth)
	return err
}

func parentLabel(seq int64) string {
	if seq == 0 {
		return "-"
	}
	return strconv.FormatInt(seq, 10)
}

func shortToken(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}

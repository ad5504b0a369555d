package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/weft/internal/ir"
)

// TraceSnapshot is the golden form of a run.
type TraceSnapshot struct {
	ScenarioName string
	Policy       string
	Trace        []TraceEvent
	Count        int
	RuntimeError string
}

// toCanonicalMap converts the snapshot for ir.MarshalCanonical.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = map[string]any{
			"seq":        ev.Seq,
			"parent_seq": ev.ParentSeq,
			"flow_token": ev.FlowToken,
			"origin":     ev.Origin,
			"depth":      ev.Depth,
			"msg":        ev.Msg,
			"view":       ev.View,
		}
	}
	out := map[string]any{
		"scenario_name": s.ScenarioName,
		"policy":        s.Policy,
		"trace":         trace,
		"count":         s.Count,
	}
	if s.RuntimeError != "" {
		out["runtime_error"] = s.RuntimeError
	}
	return out
}

// Snapshot returns the canonical JSON golden form of a scenario run.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	policy := scenario.Policy
	if policy == "" {
		policy = "immediate"
	}
	snap := TraceSnapshot{
		ScenarioName: scenario.Name,
		Policy:       policy,
		Trace:        result.Trace,
		Count:        result.Count,
		RuntimeError: result.RuntimeError,
	}
	return ir.MarshalCanonical(snap.toCanonicalMap())
}

// RunWithGolden runs a scenario and compares its trace with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := Snapshot(scenario, result)
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return result, nil
}

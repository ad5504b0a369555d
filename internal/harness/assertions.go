package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/weft/internal/apps/counter"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s depth=%d flow=%s\n", ev.Seq, ev.Origin, ev.Msg, ev.Depth, ev.FlowToken)
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against result and returns the
// failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCycleCount:
			err = assertNumber(result, a, int(result.Cycles))
		case AssertCounter:
			err = assertNumber(result, a, result.Count)
		case AssertReconcileCount:
			err = assertNumber(result, a, result.Reconciles)
		case AssertStyleCount:
			err = assertNumber(result, a, result.Styles)
		case AssertInitCount:
			err = assertNumber(result, a, result.Inits)
		case AssertViewContains:
			err = assertViewContains(result, a)
		case AssertCycleOrder:
			err = assertCycleOrder(result.Trace, a)
		case AssertRuntimeError:
			err = assertRuntimeError(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertNumber(result *Result, a Assertion, actual int) error {
	if a.Value == nil {
		return fmt.Errorf("%s: value is required", a.Type)
	}
	if *a.Value == actual {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%d", *a.Value),
		Actual:   fmt.Sprintf("%d", actual),
		Trace:    result.Trace,
	}
}

func assertViewContains(result *Result, a Assertion) error {
	if strings.Contains(result.Document, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("document containing %q", a.Text),
		Actual:   result.Document,
	}
}

// assertCycleOrder checks that the messages completed in the given order.
// Other cycles may complete in between, and each expected message matches
// a distinct cycle.
func assertCycleOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next == len(a.Messages) {
			break
		}
		want, err := counter.ParseMsg(a.Messages[next])
		if err != nil {
			return fmt.Errorf("cycle_order: %w", err)
		}
		if ev.Msg == want.String() {
			next++
		}
	}
	if next == len(a.Messages) {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("cycles in order: %v", a.Messages),
		Actual:   fmt.Sprintf("no completed %s after the first %d", a.Messages[next], next),
		Trace:    trace,
	}
}

func assertRuntimeError(result *Result, a Assertion) error {
	if result.RuntimeError == a.Code {
		return nil
	}
	actual := result.RuntimeError
	if actual == "" {
		actual = "no runtime error"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: a.Code,
		Actual:   actual,
		Trace:    result.Trace,
	}
}

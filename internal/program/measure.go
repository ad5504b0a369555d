package program

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Phase is one step of a cycle.
type Phase int

const (
	PhaseUpdate Phase = iota
	PhaseEmit
	PhaseView
	PhaseReconcile
)

func (p Phase) String() string {
	switch p {
	case PhaseUpdate:
		return "update"
	case PhaseEmit:
		return "emit"
	case PhaseView:
		return "view"
	case PhaseReconcile:
		return "reconcile"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Measurer receives the wall-clock duration of every cycle phase. The
// program measures unconditionally; NopMeasurer discards the results.
type Measurer interface {
	Observe(phase Phase, d time.Duration)
}

// MeasurerFunc adapts a function to the Measurer interface.
type MeasurerFunc func(phase Phase, d time.Duration)

// Observe calls f(phase, d).
func (f MeasurerFunc) Observe(phase Phase, d time.Duration) { f(phase, d) }

// NopMeasurer discards measurements.
type NopMeasurer struct{}

// Observe does nothing.
func (NopMeasurer) Observe(Phase, time.Duration) {}

// SlogMeasurer logs each measurement as "<phase> took".
type SlogMeasurer struct {
	Logger *slog.Logger
	Level  slog.Level
}

// NewSlogMeasurer logs measurements at debug level.
func NewSlogMeasurer(logger *slog.Logger) *SlogMeasurer {
	return &SlogMeasurer{Logger: logger, Level: slog.LevelDebug}
}

// Observe logs the measurement.
func (m *SlogMeasurer) Observe(phase Phase, d time.Duration) {
	m.Logger.Log(context.Background(), m.Level, phase.String()+" took", "duration", d)
}

// Timings holds the measured duration of each phase of one cycle.
type Timings struct {
	Update    time.Duration
	Emit      time.Duration
	View      time.Duration
	Reconcile time.Duration
}

// Total returns the sum of all phases. Emit includes nested cycles run
// under the immediate policy.
func (t Timings) Total() time.Duration {
	return t.Update + t.Emit + t.View + t.Reconcile
}

// measure runs fn and reports its duration. Nothing is reported if fn
// panics.
func measure(m Measurer, phase Phase, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	m.Observe(phase, d)
	return d
}

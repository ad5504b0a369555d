package program

import (
	"log/slog"

	"github.com/roach88/weft/internal/frame"
	"github.com/roach88/weft/internal/vdom"
)

// Policy selects how Dispatch runs cycles.
type Policy struct {
	scheduler frame.Scheduler
}

// Immediate runs each cycle inside Dispatch.
func Immediate() Policy {
	return Policy{}
}

// Deferred schedules each cycle on s. Panics if s is nil.
func Deferred(s frame.Scheduler) Policy {
	if s == nil {
		panic("program: deferred policy requires a scheduler")
	}
	return Policy{scheduler: s}
}

// IsDeferred reports whether cycles are scheduled rather than run inline.
func (p Policy) IsDeferred() bool {
	return p.scheduler != nil
}

// Scheduler returns the frame scheduler of a deferred policy.
func (p Policy) Scheduler() frame.Scheduler {
	return p.scheduler
}

func (p Policy) String() string {
	if p.IsDeferred() {
		return "deferred"
	}
	return "immediate"
}

// ReconcilerFactory builds the reconciler for a program from its initial
// view. The result must hold the view materialized but not attached.
type ReconcilerFactory func(initial *vdom.Node) Reconciler

// DefaultReconciler builds a *vdom.Updater.
func DefaultReconciler(initial *vdom.Node) Reconciler {
	return vdom.NewUpdater(initial)
}

type settings struct {
	policy     Policy
	logger     *slog.Logger
	measurer   Measurer
	observers  Observers
	flowGen    FlowTokenGenerator
	clock      Sequencer
	maxSteps   int
	reconciler ReconcilerFactory
	id         string
}

func defaultSettings() settings {
	return settings{
		policy:     Immediate(),
		logger:     slog.Default(),
		measurer:   NopMeasurer{},
		flowGen:    UUIDv7Generator{},
		clock:      NewClock(),
		reconciler: DefaultReconciler,
	}
}

// Option configures a Program.
type Option func(*settings)

// WithPolicy sets the dispatch policy. Default: Immediate().
func WithPolicy(p Policy) Option {
	return func(s *settings) {
		s.policy = p
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMeasurer sets the phase measurer. Default: NopMeasurer.
func WithMeasurer(m Measurer) Option {
	return func(s *settings) {
		if m != nil {
			s.measurer = m
		}
	}
}

// WithObserver adds a cycle observer. Observers are notified in the order
// they were added.
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithFlowGenerator sets the flow token generator. Default: UUIDv7Generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(s *settings) {
		if g != nil {
			s.flowGen = g
		}
	}
}

// WithClock sets the cycle sequencer. Default: a new Clock.
func WithClock(c Sequencer) Option {
	return func(s *settings) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithMaxSteps sets the per-flow cycle quota. Zero or a negative value
// disables it. Default: disabled.
func WithMaxSteps(maxSteps int) Option {
	return func(s *settings) {
		s.maxSteps = maxSteps
	}
}

// WithReconciler replaces the default vdom.Updater.
func WithReconciler(f ReconcilerFactory) Option {
	return func(s *settings) {
		if f != nil {
			s.reconciler = f
		}
	}
}

// WithProgramID fixes the program ID instead of generating a UUIDv7.
func WithProgramID(id string) Option {
	return func(s *settings) {
		s.id = id
	}
}

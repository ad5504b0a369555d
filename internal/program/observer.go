package program

import (
	"fmt"

	"github.com/roach88/weft/internal/vdom"
)

// Origin records where a message came from.
type Origin int

const (
	// OriginExternal marks a message passed to Program.Dispatch.
	OriginExternal Origin = iota + 1
	// OriginEffect marks a message dispatched by a cycle's command.
	OriginEffect
	// OriginInit marks a message dispatched by the Init command.
	OriginInit
)

func (o Origin) String() string {
	switch o {
	case OriginExternal:
		return "external"
	case OriginEffect:
		return "effect"
	case OriginInit:
		return "init"
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

// ParseOrigin is the inverse of Origin.String.
func ParseOrigin(s string) (Origin, error) {
	switch s {
	case "external":
		return OriginExternal, nil
	case "effect":
		return OriginEffect, nil
	case "init":
		return OriginInit, nil
	}
	return 0, fmt.Errorf("unknown origin %q", s)
}

// CycleInfo describes one completed cycle.
type CycleInfo struct {
	ProgramID string
	Seq       int64
	ParentSeq int64 // 0 for external and init messages
	FlowToken string
	Origin    Origin
	Depth     int // 0 for external and init messages
	Msg       any
	View      *vdom.Node
	Timings   Timings
}

// Observer is notified after every completed cycle, after Reconcile. Under
// the immediate policy nested cycles complete, and are reported, before
// the cycle that caused them.
type Observer interface {
	CycleCompleted(info CycleInfo)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(info CycleInfo)

// CycleCompleted calls f(info).
func (f ObserverFunc) CycleCompleted(info CycleInfo) { f(info) }

// Observers fans out to several observers in order.
type Observers []Observer

// CycleCompleted notifies every observer.
func (os Observers) CycleCompleted(info CycleInfo) {
	for _, o := range os {
		o.CycleCompleted(info)
	}
}

type nopObserver struct{}

func (nopObserver) CycleCompleted(CycleInfo) {}

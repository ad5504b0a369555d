package testutil

import (
	"errors"
	"sync"

	"golang.org/x/net/html"

	"github.com/roach88/weft/internal/vdom"
)

// ErrInjected is the default failure returned by fakes told to fail.
var ErrInjected = errors.New("testutil: injected failure")

// RecordingReconciler satisfies program.Reconciler and records every call.
// Set FailReconcile or FailAttach to make the matching calls fail.
type RecordingReconciler struct {
	mu sync.Mutex

	Initial  *vdom.Node
	Appended []*html.Node
	Replaced []*html.Node
	views    []*vdom.Node

	FailAttach    error
	FailReconcile error

	// OnReconcile, when set, runs inside Reconcile before it records.
	OnReconcile func(view *vdom.Node)
}

// NewRecordingReconciler records initial as the constructed view.
func NewRecordingReconciler(initial *vdom.Node) *RecordingReconciler {
	return &RecordingReconciler{Initial: initial}
}

func (r *RecordingReconciler) AppendToMount(mount *html.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAttach != nil {
		return r.FailAttach
	}
	r.Appended = append(r.Appended, mount)
	return nil
}

func (r *RecordingReconciler) ReplaceMount(mount *html.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAttach != nil {
		return r.FailAttach
	}
	r.Replaced = append(r.Replaced, mount)
	return nil
}

func (r *RecordingReconciler) Reconcile(view *vdom.Node) error {
	if r.OnReconcile != nil {
		r.OnReconcile(view)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailReconcile != nil {
		return r.FailReconcile
	}
	r.views = append(r.views, view)
	return nil
}

// Views returns the views passed to successful Reconcile calls, in order.
func (r *RecordingReconciler) Views() []*vdom.Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*vdom.Node(nil), r.views...)
}

// Count returns the number of successful Reconcile calls.
func (r *RecordingReconciler) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Package frame provides the rendering-frame schedulers behind the deferred
// dispatch policy.
//
// A frame runs exactly the callbacks that were pending when it started, in
// request order. Callbacks requested while a frame is running belong to the
// next frame. Scheduled callbacks cannot be withdrawn.
package frame

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Scheduler accepts one-shot callbacks for the next frame.
type Scheduler interface {
	// RequestFrame schedules fn. It returns false if the scheduler no
	// longer accepts work.
	RequestFrame(fn func()) bool
}

// ErrFrameLimit is returned by Manual.FlushAll when work remains after the
// allowed number of frames.
var ErrFrameLimit = errors.New("frame: tasks still pending after frame limit")

// PanicError carries a panic raised by a frame callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("frame callback panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// runFrame runs tasks in order. A panicking task ends the frame; the
// remaining tasks of the batch are not run.
func runFrame(tasks []func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	for _, fn := range tasks {
		fn()
	}
	return nil
}

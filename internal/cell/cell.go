// Package cell provides a runtime-checked exclusive-access container.
//
// A Cell holds a value that several code paths reach through one shared
// handle, such as a program and the commands that call back into it while it
// is still running. Access is checkout/check-in disciplined:
//
//   - With checks out a shared (read-only) borrow. Shared borrows nest.
//   - WithMut checks out an exclusive borrow. It fails if any borrow, shared
//     or exclusive, is outstanding.
//
// Overlapping access is a programming error and panics with *BorrowError.
// The Try variants report ErrBorrowed instead. A borrow is always checked
// back in when the callback returns, including when it panics; the value
// itself is never rolled back.
package cell

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrBorrowed is returned by TryWith and TryWithMut when the requested
// access conflicts with an outstanding borrow.
var ErrBorrowed = errors.New("cell: value already borrowed")

// Access identifies a kind of checkout.
type Access int

const (
	// Shared is a read-only checkout.
	Shared Access = iota + 1
	// Exclusive is a mutable checkout.
	Exclusive
)

func (a Access) String() string {
	switch a {
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("Access(%d)", int(a))
	}
}

// BorrowError describes a conflicting checkout.
type BorrowError struct {
	Name      string // Cell name, for diagnostics
	Requested Access // Access that was attempted
	Held      Access // Access that was outstanding
}

func (e *BorrowError) Error() string {
	return fmt.Sprintf("cell %q: %s borrow requested while %s borrow is held", e.Name, e.Requested, e.Held)
}

// Unwrap lets errors.Is(err, ErrBorrowed) match.
func (e *BorrowError) Unwrap() error {
	return ErrBorrowed
}

// exclusive marks the state word while a mutable borrow is out.
// Positive values count shared borrows.
const exclusive = -1

// Cell is a runtime-checked exclusive-access cell. The zero value is not
// usable; construct with New.
type Cell[T any] struct {
	name  string
	value T
	state atomic.Int32
}

// New creates a cell holding v. The name appears in borrow errors.
func New[T any](name string, v T) *Cell[T] {
	return &Cell[T]{name: name, value: v}
}

// With runs fn with a shared checkout of the value.
// Panics with *BorrowError if an exclusive borrow is outstanding.
func (c *Cell[T]) With(fn func(T)) {
	if err := c.acquireShared(); err != nil {
		panic(err)
	}
	defer c.state.Add(-1)
	fn(c.value)
}

// WithMut runs fn with an exclusive checkout of the value.
// Panics with *BorrowError if any borrow is outstanding.
func (c *Cell[T]) WithMut(fn func(T)) {
	if err := c.acquireExclusive(); err != nil {
		panic(err)
	}
	defer c.state.Store(0)
	fn(c.value)
}

// TryWith is like With but returns an error instead of panicking.
func (c *Cell[T]) TryWith(fn func(T)) error {
	if err := c.acquireShared(); err != nil {
		return err
	}
	defer c.state.Add(-1)
	fn(c.value)
	return nil
}

// TryWithMut is like WithMut but returns an error instead of panicking.
func (c *Cell[T]) TryWithMut(fn func(T)) error {
	if err := c.acquireExclusive(); err != nil {
		return err
	}
	defer c.state.Store(0)
	fn(c.value)
	return nil
}

// Borrowed reports the access currently held, or 0 when the cell is free.
func (c *Cell[T]) Borrowed() Access {
	switch s := c.state.Load(); {
	case s == exclusive:
		return Exclusive
	case s > 0:
		return Shared
	default:
		return 0
	}
}

func (c *Cell[T]) acquireShared() error {
	for {
		s := c.state.Load()
		if s == exclusive {
			return &BorrowError{Name: c.name, Requested: Shared, Held: Exclusive}
		}
		if c.state.CompareAndSwap(s, s+1) {
			return nil
		}
	}
}

func (c *Cell[T]) acquireExclusive() error {
	if c.state.CompareAndSwap(0, exclusive) {
		return nil
	}
	held := Shared
	if c.state.Load() == exclusive {
		held = Exclusive
	}
	return &BorrowError{Name: c.name, Requested: Exclusive, Held: held}
}

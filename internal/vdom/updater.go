package vdom

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"
)

var (
	// ErrNilView is reported when an application renders a nil view.
	ErrNilView = errors.New("vdom: nil view")

	// ErrNotMounted is returned by Reconcile before the tree is attached.
	ErrNotMounted = errors.New("vdom: tree is not mounted")

	// ErrAlreadyMounted is returned when attaching a tree twice.
	ErrAlreadyMounted = errors.New("vdom: tree is already mounted")

	// ErrNilMount is returned when the mount node is nil.
	ErrNilMount = errors.New("vdom: mount node is nil")
)

// Updater owns the association between the last reconciled view and the
// live node it produced. It is the default reconciler of a program.
//
// An Updater is not safe for concurrent use.
type Updater struct {
	current *Node
	root    *html.Node
	mounted bool

	reconciles int
}

// NewUpdater materializes initial without attaching it anywhere. Panics
// with ErrNilView if initial is nil.
func NewUpdater(initial *Node) *Updater {
	if initial == nil {
		panic(ErrNilView)
	}
	return &Updater{
		current: initial,
		root:    Materialize(initial),
	}
}

// AppendToMount attaches the tree as the last child of mount.
func (u *Updater) AppendToMount(mount *html.Node) error {
	if err := u.checkAttach(mount); err != nil {
		return err
	}
	mount.AppendChild(u.root)
	u.mounted = true
	return nil
}

// ReplaceMount puts the tree in place of mount. When mount has no parent,
// its children are replaced instead.
func (u *Updater) ReplaceMount(mount *html.Node) error {
	if err := u.checkAttach(mount); err != nil {
		return err
	}
	if parent := mount.Parent; parent != nil {
		parent.InsertBefore(u.root, mount)
		parent.RemoveChild(mount)
	} else {
		for c := mount.FirstChild; c != nil; c = mount.FirstChild {
			mount.RemoveChild(c)
		}
		mount.AppendChild(u.root)
	}
	u.mounted = true
	return nil
}

func (u *Updater) checkAttach(mount *html.Node) error {
	if mount == nil {
		return ErrNilMount
	}
	if u.mounted {
		return ErrAlreadyMounted
	}
	return nil
}

// Reconcile patches the live tree to match view and records view as current.
// On error the recorded view is left unchanged.
func (u *Updater) Reconcile(view *Node) error {
	if !u.mounted {
		return ErrNotMounted
	}
	if view == nil {
		return fmt.Errorf("reconcile: %w", ErrNilView)
	}
	patches := Diff(u.current, view)
	root, err := Apply(u.root, patches)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	u.root = root
	u.current = view
	u.reconciles++
	return nil
}

// View returns the most recently reconciled view, or the initial view.
func (u *Updater) View() *Node { return u.current }

// Root returns the live root node.
func (u *Updater) Root() *html.Node { return u.root }

// Mounted reports whether the tree has been attached.
func (u *Updater) Mounted() bool { return u.mounted }

// Reconciles returns the number of successful Reconcile calls.
func (u *Updater) Reconciles() int { return u.reconciles }

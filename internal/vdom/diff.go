package vdom

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// Op identifies a patch operation.
type Op int

const (
	// OpReplace swaps the node at Path for a freshly materialized Node.
	OpReplace Op = iota
	// OpSetText sets the data of the text node at Path.
	OpSetText
	// OpSetAttr sets attribute Key to Val on the element at Path.
	OpSetAttr
	// OpRemoveAttr removes attribute Key from the element at Path.
	OpRemoveAttr
	// OpAppend appends a materialized Node as the last child of Path.
	OpAppend
	// OpTruncate removes every child of Path from index Len on.
	OpTruncate
)

var opNames = [...]string{"replace", "set_text", "set_attr", "remove_attr", "append", "truncate"}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Patch is one structural change, addressed by the child index path from
// the root of the rendered tree. An empty Path addresses the root itself.
type Patch struct {
	Op   Op
	Path []int
	Node *Node  // OpReplace, OpAppend
	Key  string // OpSetAttr, OpRemoveAttr
	Val  string // OpSetText, OpSetAttr
	Len  int    // OpTruncate
}

func (p Patch) String() string {
	path := make([]string, len(p.Path))
	for i, idx := range p.Path {
		path[i] = fmt.Sprint(idx)
	}
	target := "/" + strings.Join(path, "/")
	switch p.Op {
	case OpReplace, OpAppend:
		return fmt.Sprintf("%s %s %s", p.Op, target, p.Node)
	case OpSetText:
		return fmt.Sprintf("%s %s %q", p.Op, target, p.Val)
	case OpSetAttr:
		return fmt.Sprintf("%s %s %s=%q", p.Op, target, p.Key, p.Val)
	case OpRemoveAttr:
		return fmt.Sprintf("%s %s %s", p.Op, target, p.Key)
	case OpTruncate:
		return fmt.Sprintf("%s %s %d", p.Op, target, p.Len)
	}
	return fmt.Sprintf("%s %s", p.Op, target)
}

// ErrBadPath is returned by Apply when a patch addresses a node that does
// not exist in the live tree.
var ErrBadPath = errors.New("vdom: patch path does not resolve")

// Diff computes the patches that turn a tree rendered from prev into one
// rendered from next. Children are compared by position. Patches are ordered
// so that applying them front to back never invalidates a later path.
func Diff(prev, next *Node) []Patch {
	var patches []Patch
	diff(prev, next, nil, &patches)
	return patches
}

func diff(prev, next *Node, path []int, out *[]Patch) {
	if prev == next {
		return
	}
	if prev.IsText() != next.IsText() || prev.Tag != next.Tag {
		*out = append(*out, Patch{Op: OpReplace, Path: path, Node: next})
		return
	}
	if next.IsText() {
		if prev.Text != next.Text {
			*out = append(*out, Patch{Op: OpSetText, Path: path, Val: next.Text})
		}
		return
	}

	for _, a := range next.Attrs {
		if v, ok := prev.Attr(a.Key); !ok || v != a.Val {
			*out = append(*out, Patch{Op: OpSetAttr, Path: path, Key: a.Key, Val: a.Val})
		}
	}
	for _, a := range prev.Attrs {
		if _, ok := next.Attr(a.Key); !ok {
			*out = append(*out, Patch{Op: OpRemoveAttr, Path: path, Key: a.Key})
		}
	}

	common := min(len(prev.Children), len(next.Children))
	for i := 0; i < common; i++ {
		diff(prev.Children[i], next.Children[i], childPath(path, i), out)
	}
	for _, c := range next.Children[common:] {
		*out = append(*out, Patch{Op: OpAppend, Path: path, Node: c})
	}
	if len(prev.Children) > len(next.Children) {
		*out = append(*out, Patch{Op: OpTruncate, Path: path, Len: len(next.Children)})
	}
}

func childPath(path []int, i int) []int {
	return append(slices.Clip(path), i)
}

// Apply applies patches to the live tree rooted at root and returns the
// resulting root, which differs from root only when the root itself was
// replaced. A replaced root keeps its position under root's parent.
func Apply(root *html.Node, patches []Patch) (*html.Node, error) {
	for i, p := range patches {
		target, err := resolve(root, p.Path)
		if err != nil {
			return root, fmt.Errorf("patch %d (%s): %w", i, p.Op, err)
		}
		switch p.Op {
		case OpReplace:
			fresh := Materialize(p.Node)
			if parent := target.Parent; parent != nil {
				parent.InsertBefore(fresh, target)
				parent.RemoveChild(target)
			}
			if target == root {
				root = fresh
			}
		case OpSetText:
			target.Data = p.Val
		case OpSetAttr:
			setAttr(target, p.Key, p.Val)
		case OpRemoveAttr:
			target.Attr = slices.DeleteFunc(target.Attr, func(a html.Attribute) bool {
				return a.Namespace == "" && a.Key == p.Key
			})
		case OpAppend:
			target.AppendChild(Materialize(p.Node))
		case OpTruncate:
			c := childAt(target, p.Len)
			for c != nil {
				next := c.NextSibling
				target.RemoveChild(c)
				c = next
			}
		default:
			return root, fmt.Errorf("patch %d: unknown op %s", i, p.Op)
		}
	}
	return root, nil
}

func resolve(root *html.Node, path []int) (*html.Node, error) {
	n := root
	for depth, idx := range path {
		n = childAt(n, idx)
		if n == nil {
			return nil, fmt.Errorf("%w: %v at depth %d", ErrBadPath, path, depth)
		}
	}
	return n, nil
}

func childAt(n *html.Node, idx int) *html.Node {
	c := n.FirstChild
	for ; c != nil && idx > 0; idx-- {
		c = c.NextSibling
	}
	return c
}

// setAttr keeps attributes sorted by key so a patched element renders the
// same as a freshly materialized one.
func setAttr(n *html.Node, key, val string) {
	i, found := slices.BinarySearchFunc(n.Attr, key, func(a html.Attribute, k string) int {
		return strings.Compare(a.Key, k)
	})
	if found {
		n.Attr[i].Val = val
		return
	}
	n.Attr = slices.Insert(n.Attr, i, html.Attribute{Key: key, Val: val})
}

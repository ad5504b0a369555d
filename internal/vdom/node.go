// Package vdom defines the view tree an application's View returns, and the
// default reconciler that patches a live golang.org/x/net/html tree to match
// it.
//
// A Node is an immutable snapshot: builders copy their inputs, and nothing
// in weft mutates a Node after construction.
package vdom

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/roach88/weft/internal/ir"
)

// Attr is one element attribute.
type Attr struct {
	Key string
	Val string
}

// A returns an attribute.
func A(key, val string) Attr {
	return Attr{Key: key, Val: val}
}

// Node is an element or a text node. Text nodes have an empty Tag.
type Node struct {
	Tag      string
	Attrs    []Attr // sorted by Key, unique
	Children []*Node
	Text     string
}

// El builds an element. Attributes are copied and sorted by key; when a key
// repeats, the last value wins. Nil children are dropped.
func El(tag string, attrs []Attr, children ...*Node) *Node {
	n := &Node{Tag: tag}
	if len(attrs) > 0 {
		byKey := make(map[string]string, len(attrs))
		for _, a := range attrs {
			byKey[a.Key] = a.Val
		}
		for k, v := range byKey {
			n.Attrs = append(n.Attrs, Attr{Key: k, Val: v})
		}
		slices.SortFunc(n.Attrs, func(a, b Attr) int { return strings.Compare(a.Key, b.Key) })
	}
	for _, c := range children {
		if c != nil {
			n.Children = append(n.Children, c)
		}
	}
	return n
}

// Text builds a text node.
func Text(s string) *Node {
	return &Node{Text: s}
}

// Textf builds a text node from a format string.
func Textf(format string, args ...any) *Node {
	return Text(fmt.Sprintf(format, args...))
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool {
	return n.Tag == ""
}

// Attr returns the value of the attribute key.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// TextContent returns the concatenated text of n and its descendants.
func (n *Node) TextContent() string {
	if n.IsText() {
		return n.Text
	}
	var sb strings.Builder
	for _, c := range n.Children {
		sb.WriteString(c.TextContent())
	}
	return sb.String()
}

// ToIR converts the tree to its canonical value form.
func (n *Node) ToIR() ir.Object {
	if n.IsText() {
		return ir.Object{"text": ir.String(n.Text)}
	}
	obj := ir.Object{"tag": ir.String(n.Tag)}
	if len(n.Attrs) > 0 {
		attrs := make(ir.Object, len(n.Attrs))
		for _, a := range n.Attrs {
			attrs[a.Key] = ir.String(a.Val)
		}
		obj["attrs"] = attrs
	}
	if len(n.Children) > 0 {
		children := make(ir.List, len(n.Children))
		for i, c := range n.Children {
			children[i] = c.ToIR()
		}
		obj["children"] = children
	}
	return obj
}

// Hash returns the content hash of the tree.
func (n *Node) Hash() (string, error) {
	return ir.ViewHash(n.ToIR())
}

// String renders the tree as HTML.
func (n *Node) String() string {
	var sb strings.Builder
	if err := html.Render(&sb, Materialize(n)); err != nil {
		return fmt.Sprintf("<render error: %v>", err)
	}
	return sb.String()
}

// Materialize builds a detached html.Node tree for n.
func Materialize(n *Node) *html.Node {
	if n.IsText() {
		return &html.Node{Type: html.TextNode, Data: n.Text}
	}
	out := &html.Node{
		Type:     html.ElementNode,
		Data:     n.Tag,
		DataAtom: atom.Lookup([]byte(n.Tag)),
	}
	for _, a := range n.Attrs {
		out.Attr = append(out.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	for _, c := range n.Children {
		out.AppendChild(Materialize(c))
	}
	return out
}

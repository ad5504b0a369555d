// Package host provides the document a weft program mounts into: an HTML
// node tree (golang.org/x/net/html) with a head that accepts style
// resources and a body that serves as the default mount root.
//
// A Document is not safe for concurrent use. Under the deferred dispatch
// policy it belongs to the frame scheduler's goroutine until the scheduler
// is drained.
package host

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrNoHead is returned when a document has no <head> element.
	ErrNoHead = errors.New("host: document has no head element")

	// ErrNoBody is returned when a document has no <body> element.
	ErrNoBody = errors.New("host: document has no body element")
)

const skeleton = "<!DOCTYPE html><html><head></head><body></body></html>"

// Document is a live HTML tree.
type Document struct {
	root *html.Node
}

// NewDocument returns an empty document with a head and a body.
func NewDocument() *Document {
	doc, err := Parse(strings.NewReader(skeleton))
	if err != nil {
		// The skeleton is constant; html.Parse only fails on reader errors.
		panic(fmt.Sprintf("host: parse skeleton: %v", err))
	}
	return doc
}

// Parse reads an HTML document. The HTML5 parser always synthesizes
// html, head and body elements.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &Document{root: root}, nil
}

// FromNode wraps an existing tree as-is. Nothing is synthesized, so the
// result may lack a head or a body.
func FromNode(root *html.Node) *Document {
	return &Document{root: root}
}

// NewElement returns a detached element, for use as a mount point.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Head returns the <head> element.
func (d *Document) Head() (*html.Node, error) {
	if n := findElement(d.root, atom.Head); n != nil {
		return n, nil
	}
	return nil, ErrNoHead
}

// Body returns the <body> element.
func (d *Document) Body() (*html.Node, error) {
	if n := findElement(d.root, atom.Body); n != nil {
		return n, nil
	}
	return nil, ErrNoBody
}

// InjectStyle creates one <style> element containing text verbatim and
// appends it to the head. Every call appends a new element; nothing is
// cached, replaced or de-duplicated.
func (d *Document) InjectStyle(text string) error {
	head, err := d.Head()
	if err != nil {
		return fmt.Errorf("inject style: %w", err)
	}
	style := &html.Node{
		Type:     html.ElementNode,
		Data:     "style",
		DataAtom: atom.Style,
	}
	style.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	head.AppendChild(style)
	return nil
}

// Styles returns the text of every <style> element in the head, in
// document order.
func (d *Document) Styles() []string {
	head, err := d.Head()
	if err != nil {
		return nil
	}
	var out []string
	for c := head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Style {
			out = append(out, textContent(c))
		}
	}
	return out
}

// FindByID returns the first element whose id attribute equals id.
func (d *Document) FindByID(id string) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == "id" && a.Val == id {
					found = n
					return false
				}
			}
		}
		return true
	})
	return found
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, or returns a rendering error message.
func (d *Document) String() string {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return fmt.Sprintf("<render error: %v>", err)
	}
	return sb.String()
}

// TextContent returns the concatenated text of n and its descendants.
func TextContent(n *html.Node) string {
	return textContent(n)
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		return true
	})
	return sb.String()
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// walk visits n and its descendants depth-first until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if n == nil {
		return true
	}
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

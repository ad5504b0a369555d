package host

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func TestNewDocument_HasHeadAndBody(t *testing.T) {
	doc := NewDocument()

	head, err := doc.Head()
	require.NoError(t, err)
	assert.Equal(t, "head", head.Data)

	body, err := doc.Body()
	require.NoError(t, err)
	assert.Equal(t, "body", body.Data)

	assert.Equal(t, "<!DOCTYPE html><html><head></head><body></body></html>", doc.String())
}

func TestInjectStyle_AppendsVerbatim(t *testing.T) {
	doc := NewDocument()

	require.NoError(t, doc.InjectStyle("h1 > b { color: red; }"))

	assert.Equal(t, []string{"h1 > b { color: red; }"}, doc.Styles())
	assert.Contains(t, doc.String(), "<head><style>h1 > b { color: red; }</style></head>")
}

func TestInjectStyle_NoDeduplication(t *testing.T) {
	doc := NewDocument()

	require.NoError(t, doc.InjectStyle("p{}"))
	require.NoError(t, doc.InjectStyle("p{}"))

	assert.Equal(t, []string{"p{}", "p{}"}, doc.Styles())
}

func TestInjectStyle_NoHead(t *testing.T) {
	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	doc := FromNode(root)

	err := doc.InjectStyle("p{}")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoHead)
	assert.Nil(t, doc.Styles())

	_, err = doc.Body()
	assert.ErrorIs(t, err, ErrNoBody)
}

func TestParse_FindByID(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<html><body><main><div id="app">hi</div></main></body></html>`))
	require.NoError(t, err)

	n := doc.FindByID("app")
	require.NotNil(t, n)
	assert.Equal(t, "div", n.Data)
	assert.Equal(t, "hi", TextContent(n))

	assert.Nil(t, doc.FindByID("missing"))
}

func TestParse_SynthesizesHead(t *testing.T) {
	doc, err := Parse(strings.NewReader(`<p>fragment</p>`))
	require.NoError(t, err)

	_, err = doc.Head()
	assert.NoError(t, err)
	assert.Equal(t, "fragment", TextContent(doc.Root()))
}

func TestNewElement(t *testing.T) {
	n := NewElement("div", html.Attribute{Key: "id", Val: "app"})
	assert.Equal(t, atom.Div, n.DataAtom)
	assert.Nil(t, n.Parent)

	doc := NewDocument()
	body, err := doc.Body()
	require.NoError(t, err)
	body.AppendChild(n)
	assert.Same(t, n, doc.FindByID("app"))
}

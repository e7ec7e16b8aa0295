package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML builds nodes backed by golang.org/x/net/html.
type HTML struct{}

var _ Builder = HTML{}

// Element wraps an *html.Node.
type Element struct {
	node *html.Node
}

// Len reports the number of direct element children.
func (e *Element) Len() int {
	if e == nil || e.node == nil {
		return 0
	}
	n := 0
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			n++
		}
	}
	return n
}

// HTMLNode exposes the underlying node.
func (e *Element) HTMLNode() *html.Node { return e.node }

// NewContainer returns an empty <main> element with the given id.
func NewContainer(id string) *Element {
	n := newElement(atom.Main)
	if id != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "id", Val: id})
	}
	return &Element{node: n}
}

// CreateGroup returns an <article> whose class is the product category.
func (HTML) CreateGroup(category string) Node {
	n := newElement(atom.Article)
	n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: category})
	return &Element{node: n}
}

// CreateLabel returns a <p> holding text.
func (HTML) CreateLabel(class, text string) Node {
	n := newElement(atom.P)
	if class != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "class", Val: class})
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return &Element{node: n}
}

// CreateImage returns an <img>.
func (HTML) CreateImage(src, alt string) Node {
	n := newElement(atom.Img)
	n.Attr = append(n.Attr,
		html.Attribute{Key: "src", Val: src},
		html.Attribute{Key: "alt", Val: alt},
	)
	return &Element{node: n}
}

// Append adds child to parent. It panics when either node was not built by HTML,
// or when child already has a parent.
func (HTML) Append(parent, child Node) {
	p := mustElement(parent)
	c := mustElement(child)
	p.node.AppendChild(c.node)
}

// Clear detaches all children of container.
func (HTML) Clear(container Node) {
	e := mustElement(container)
	for c := e.node.FirstChild; c != nil; c = e.node.FirstChild {
		e.node.RemoveChild(c)
	}
}

// WriteHTML serialises node and its subtree to w.
func WriteHTML(w io.Writer, node Node) error {
	e, ok := node.(*Element)
	if !ok || e == nil || e.node == nil {
		return fmt.Errorf("view: cannot serialise %T", node)
	}
	return html.Render(w, e.node)
}

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("main", "article", "p")
	p.AllowAttrs("id").OnElements("main")
	p.AllowAttrs("class").OnElements("article", "p")
	p.AllowImages()
	p.AllowDataURIImages()
	// AllowImages restricts alt to plain prose; product names may carry & or %.
	p.AllowAttrs("alt").OnElements("img")
	return p
}

// Sanitize serialises node and passes it through the catalog markup policy so the
// result can be embedded in templates.
func Sanitize(node Node) (template.HTML, error) {
	var buf bytes.Buffer
	if err := WriteHTML(&buf, node); err != nil {
		return "", err
	}
	return template.HTML(policy.SanitizeReader(&buf).String()), nil
}

func newElement(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
}

func mustElement(n Node) *Element {
	e, ok := n.(*Element)
	if !ok || e == nil || e.node == nil {
		panic(fmt.Sprintf("view: node %T was not created by view.HTML", n))
	}
	return e
}

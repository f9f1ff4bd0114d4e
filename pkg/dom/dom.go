// Package dom provides a mutable HTML document model for the deck controller.
//
// A Document wraps a parsed golang.org/x/net/html tree. Every element gets a
// stable data-tdk-id attribute at parse time so that a browser rendering the
// same markup can locate it again, and every effective mutation is appended
// to the document's op journal. The journal is what the server ships to the
// browser after each navigation command.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// IDAttr is the attribute carrying an element's stable identifier.
const IDAttr = "data-tdk-id"

// Element is the view of a document node the deck controller works with.
type Element interface {
	// ID returns the element's stable identifier (empty if it has none).
	ID() string
	// Tag returns the lower-case tag name.
	Tag() string
	AddClass(names ...string)
	RemoveClass(names ...string)
	HasClass(name string) bool
	Attr(name string) (string, bool)
	SetAttr(name, value string)
	RemoveAttr(name string)
	// QueryAll returns the descendants matching a CSS selector in document
	// order. The element itself is never part of the result. An invalid
	// selector matches nothing.
	QueryAll(selector string) []Element
	// Reload asks the host to reload the element's content (used for
	// iframes). It does not change the tree.
	Reload()
}

// Document is a parsed HTML document with an op journal.
type Document struct {
	root   *html.Node
	nextID int
	ops    []Op
}

// Node is an element of a Document. It implements Element.
type Node struct {
	doc *Document
	n   *html.Node
}

// Parse parses an HTML document and assigns ids to its elements.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	d := &Document{root: root}
	d.nextID = maxID(root) + 1
	d.assignIDs(root)
	return d, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Clone returns an independent copy of the document with the same element
// ids and an empty journal.
func (d *Document) Clone() *Document {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		// Rendering a tree we parsed ourselves only fails on writer errors,
		// which a bytes.Buffer never returns.
		panic(fmt.Sprintf("dom: render failed: %v", err))
	}
	c, err := Parse(&buf)
	if err != nil {
		panic(fmt.Sprintf("dom: reparse failed: %v", err))
	}
	return c
}

// QueryAll returns every element in the document matching selector.
func (d *Document) QueryAll(selector string) []Element {
	return d.wrapAll(queryNodes(d.root, selector))
}

// Query returns the first element matching selector, or nil.
func (d *Document) Query(selector string) *Node {
	nodes := queryNodes(d.root, selector)
	if len(nodes) == 0 {
		return nil
	}
	return d.wrap(nodes[0])
}

// ByID returns the element with the given id, or nil.
func (d *Document) ByID(id string) *Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && getAttr(n, IDAttr) == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return d.wrap(found)
}

// Title returns the text of the document's <title> element.
func (d *Document) Title() string {
	t := d.Query("title")
	if t == nil {
		return ""
	}
	return strings.TrimSpace(t.Text())
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// HTML returns the document as an HTML string.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func (d *Document) wrap(n *html.Node) *Node {
	return &Node{doc: d, n: n}
}

func (d *Document) wrapAll(nodes []*html.Node) []Element {
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out
}

func (d *Document) assignIDs(root *html.Node) {
	walk(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && getAttr(n, IDAttr) == "" {
			setAttr(n, IDAttr, "n"+strconv.Itoa(d.nextID))
			d.nextID++
		}
		return true
	})
}

// ID implements Element.
func (e *Node) ID() string { return getAttr(e.n, IDAttr) }

// Tag implements Element.
func (e *Node) Tag() string { return e.n.Data }

// Classes returns the element's class list.
func (e *Node) Classes() []string {
	return strings.Fields(getAttr(e.n, "class"))
}

// HasClass implements Element.
func (e *Node) HasClass(name string) bool {
	for _, c := range e.Classes() {
		if c == name {
			return true
		}
	}
	return false
}

// AddClass implements Element. Classes already present are not recorded.
func (e *Node) AddClass(names ...string) {
	classes := e.Classes()
	changed := false
	for _, name := range names {
		if name == "" || contains(classes, name) {
			continue
		}
		classes = append(classes, name)
		changed = true
		e.doc.Record(Op{Op: OpAddClass, Target: e.ID(), Name: name})
	}
	if changed {
		setAttr(e.n, "class", strings.Join(classes, " "))
	}
}

// RemoveClass implements Element. Absent classes are not recorded.
func (e *Node) RemoveClass(names ...string) {
	classes := e.Classes()
	kept := make([]string, 0, len(classes))
	removed := false
	for _, c := range classes {
		if contains(names, c) {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	if !removed {
		return
	}
	for _, name := range names {
		if contains(classes, name) {
			e.doc.Record(Op{Op: OpRemoveClass, Target: e.ID(), Name: name})
		}
	}
	if len(kept) == 0 {
		removeAttr(e.n, "class")
		return
	}
	setAttr(e.n, "class", strings.Join(kept, " "))
}

// Attr implements Element.
func (e *Node) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr implements Element. Setting an attribute to its current value is
// not recorded.
func (e *Node) SetAttr(name, value string) {
	if cur, ok := e.Attr(name); ok && cur == value {
		return
	}
	setAttr(e.n, name, value)
	e.doc.Record(Op{Op: OpSetAttr, Target: e.ID(), Name: name, Value: value})
}

// RemoveAttr implements Element.
func (e *Node) RemoveAttr(name string) {
	if _, ok := e.Attr(name); !ok {
		return
	}
	removeAttr(e.n, name)
	e.doc.Record(Op{Op: OpRemoveAttr, Target: e.ID(), Name: name})
}

// QueryAll implements Element.
func (e *Node) QueryAll(selector string) []Element {
	nodes := queryNodes(e.n, selector)
	out := nodes[:0]
	for _, n := range nodes {
		if n != e.n {
			out = append(out, n)
		}
	}
	return e.doc.wrapAll(out)
}

// Reload implements Element.
func (e *Node) Reload() {
	e.doc.Record(Op{Op: OpReload, Target: e.ID()})
}

// Text returns the concatenated text content of the element.
func (e *Node) Text() string {
	var b strings.Builder
	walk(e.n, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		return true
	})
	return b.String()
}

// AppendHTML parses fragment in the context of the element and appends the
// resulting nodes as children.
func (e *Node) AppendHTML(fragment string) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), e.contextNode())
	if err != nil {
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	var buf bytes.Buffer
	for _, n := range nodes {
		e.n.AppendChild(n)
		e.doc.assignIDs(n)
		if err := html.Render(&buf, n); err != nil {
			return fmt.Errorf("failed to render fragment: %w", err)
		}
	}
	e.doc.Record(Op{Op: OpAppend, Target: e.ID(), Value: buf.String()})
	return nil
}

// WrapChildren moves the element's children into a new child element with
// the given tag and class and returns it. An element whose only element child
// already is such a wrapper is left alone. It is meant for preparing a
// document before it is served and records no op.
func (e *Node) WrapChildren(tag, class string) *Node {
	if w := soleElementChild(e.n); w != nil && w.Data == tag && contains(strings.Fields(getAttr(w, "class")), class) {
		return e.doc.wrap(w)
	}
	w := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	setAttr(w, "class", class)
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		w.AppendChild(c)
		c = next
	}
	e.n.AppendChild(w)
	e.doc.assignIDs(w)
	return e.doc.wrap(w)
}

func soleElementChild(n *html.Node) *html.Node {
	var only *html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.ElementNode && only == nil:
			only = c
		case c.Type == html.ElementNode:
			return nil
		case c.Type == html.TextNode && strings.TrimSpace(c.Data) == "":
		case c.Type == html.CommentNode:
		default:
			return nil
		}
	}
	return only
}

// contextNode returns a detached copy of the element usable as the context
// argument of html.ParseFragment.
func (e *Node) contextNode() *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     e.n.Data,
		DataAtom: atom.Lookup([]byte(e.n.Data)),
	}
}

// HTML returns the outer HTML of the element.
func (e *Node) HTML() string {
	var buf bytes.Buffer
	_ = html.Render(&buf, e.n)
	return buf.String()
}

var selectorCache sync.Map // string -> cascadia.Selector

func compile(selector string) (cascadia.Selector, bool) {
	if s, ok := selectorCache.Load(selector); ok {
		return s.(cascadia.Selector), true
	}
	s, err := cascadia.Compile(selector)
	if err != nil {
		return nil, false
	}
	selectorCache.Store(selector, s)
	return s, true
}

func queryNodes(root *html.Node, selector string) []*html.Node {
	sel, ok := compile(selector)
	if !ok {
		return nil
	}
	return sel.MatchAll(root)
}

func walk(n *html.Node, visit func(*html.Node) bool) bool {
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

func maxID(root *html.Node) int {
	max := -1
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		id := getAttr(n, IDAttr)
		if !strings.HasPrefix(id, "n") {
			return true
		}
		if v, err := strconv.Atoi(id[1:]); err == nil && v > max {
			max = v
		}
		return true
	})
	return max
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

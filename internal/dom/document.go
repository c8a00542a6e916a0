// Package dom holds the page document owned by the embedded side.
//
// The document is a golang.org/x/net/html tree. Every element carries a
// stable data-le-id so a browser relay can address it, and every write made
// through Document is recorded as a Mutation so the live browser DOM can be
// kept in step. Attributes prefixed data-le- are editor artifacts and never
// appear in Content().
package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/standardbeagle/livedit/internal/protocol"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	// ArtifactPrefix marks attributes that belong to the editor, not the page.
	ArtifactPrefix = "data-le-"
	// IDAttr carries the stable node id used by the browser relay.
	IDAttr = "data-le-id"
	// ToolbarAttr marks the root of the floating toolbar subtree.
	ToolbarAttr = "data-le-toolbar"

	// Marker attributes projected from selection state.
	HoverAttr    = "data-le-hover"
	SelectedAttr = "data-le-selected"
	EditingAttr  = "data-le-editing"
)

// ErrNoBody is returned when a document cannot be given a body element.
var ErrNoBody = errors.New("document has no body")

// Size is a viewport size in CSS pixels.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultViewport is used until the relay reports the real one.
var DefaultViewport = Size{Width: 1280, Height: 800}

// Op is the kind of a recorded mutation.
type Op string

const (
	OpAttr    Op = "attr"     // set attribute Name=Value
	OpAttrDel Op = "attr_del" // remove attribute Name
	OpText    Op = "text"     // replace children with text Value
	OpHTML    Op = "html"     // replace children with markup Value
	OpInsert  Op = "insert"   // append markup Value to node ID
	OpScroll  Op = "scroll"   // scroll node ID into view
	OpReset   Op = "reset"    // entire document replaced with Value
)

// Mutation is one change to replay in the browser.
type Mutation struct {
	Op    Op     `json:"op"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

// Document is a parsed page plus its layout and mutation log.
// It is not safe for concurrent use; the selection controller owns it.
type Document struct {
	root *html.Node
	body *html.Node

	ids    map[string]*html.Node
	nextID int

	rects    map[*html.Node]protocol.Rect
	viewport Size

	// overrides holds the page's own value of attributes the editor replaced,
	// keyed by relay id then attribute name.
	overrides map[string]map[string]pageAttr

	mutations []Mutation
}

type pageAttr struct {
	val     string
	present bool
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	d := &Document{
		ids:      make(map[string]*html.Node),
		rects:    make(map[*html.Node]protocol.Rect),
		viewport: DefaultViewport,
	}
	if err := d.load(r); err != nil {
		return nil, err
	}
	return d, nil
}

// ParseString reads an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func (d *Document) load(r io.Reader) error {
	root, err := html.Parse(r)
	if err != nil {
		return fmt.Errorf("parse document: %w", err)
	}
	body := findElement(root, atom.Body)
	if body == nil {
		return ErrNoBody
	}
	d.root = root
	d.body = body
	d.ids = make(map[string]*html.Node)
	d.rects = make(map[*html.Node]protocol.Rect)
	d.overrides = make(map[string]map[string]pageAttr)
	d.register(root)
	return nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element.
func (d *Document) Body() *html.Node { return d.body }

// Replace reparses the document from content. Every previous node reference
// becomes invalid. A reset mutation carrying the rendered document is recorded.
func (d *Document) Replace(content string) error {
	if err := d.load(strings.NewReader(content)); err != nil {
		return err
	}
	rendered, err := d.Render()
	if err != nil {
		return err
	}
	d.record(Mutation{Op: OpReset, Value: rendered})
	return nil
}

// IsElement reports whether n is an element node.
func IsElement(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode
}

// TagName returns the lower-case tag name of an element, or "".
func TagName(n *html.Node) string {
	if !IsElement(n) {
		return ""
	}
	return strings.ToLower(n.Data)
}

// Contains reports whether n is ancestor or a descendant of it.
func Contains(ancestor, n *html.Node) bool {
	if ancestor == nil {
		return false
	}
	for c := n; c != nil; c = c.Parent {
		if c == ancestor {
			return true
		}
	}
	return false
}

// Attached reports whether n is still part of this document's tree.
func (d *Document) Attached(n *html.Node) bool {
	return Contains(d.root, n)
}

// ID returns the relay id of n.
func (d *Document) ID(n *html.Node) string {
	v, _ := Attr(n, IDAttr)
	return v
}

// NodeByID returns the attached element with the given relay id, or nil.
func (d *Document) NodeByID(id string) *html.Node {
	n := d.ids[id]
	if n == nil || !d.Attached(n) {
		return nil
	}
	return n
}

// register assigns relay ids to every element under n that lacks one.
func (d *Document) register(n *html.Node) {
	walk(n, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		id, ok := Attr(c, IDAttr)
		if !ok || id == "" || d.ids[id] != nil && d.ids[id] != c {
			d.nextID++
			id = strconv.Itoa(d.nextID)
			setAttr(c, IDAttr, id)
		}
		d.ids[id] = c
	})
}

func (d *Document) unregister(n *html.Node) {
	walk(n, func(c *html.Node) {
		if c.Type != html.ElementNode {
			return
		}
		if id, ok := Attr(c, IDAttr); ok && d.ids[id] == c {
			delete(d.ids, id)
			delete(d.overrides, id)
		}
		delete(d.rects, c)
	})
}

func (d *Document) record(m Mutation) {
	d.mutations = append(d.mutations, m)
}

// TakeMutations drains the mutation log.
func (d *Document) TakeMutations() []Mutation {
	out := d.mutations
	d.mutations = nil
	return out
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute and records the change. It reports whether the
// value changed.
func (d *Document) SetAttr(n *html.Node, key, val string) bool {
	if cur, ok := Attr(n, key); ok && cur == val {
		return false
	}
	setAttr(n, key, val)
	d.record(Mutation{Op: OpAttr, ID: d.ID(n), Name: key, Value: val})
	return true
}

// RemoveAttr removes an attribute and records the change. It reports whether
// the attribute was present.
func (d *Document) RemoveAttr(n *html.Node, key string) bool {
	if !removeAttr(n, key) {
		return false
	}
	d.record(Mutation{Op: OpAttrDel, ID: d.ID(n), Name: key})
	return true
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

func removeAttr(n *html.Node, key string) bool {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return true
		}
	}
	return false
}

// TextContent returns the concatenated text of n and its descendants.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

// SetText replaces the children of n with a single text node.
func (d *Document) SetText(n *html.Node, text string) bool {
	if c := n.FirstChild; c != nil && c.NextSibling == nil && c.Type == html.TextNode && c.Data == text {
		return false
	}
	if n.FirstChild == nil && text == "" {
		return false
	}
	d.removeChildren(n)
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	d.record(Mutation{Op: OpText, ID: d.ID(n), Value: text})
	return true
}

// SetInnerHTML parses fragment in the context of n and replaces its children.
func (d *Document) SetInnerHTML(n *html.Node, fragment string) error {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), n)
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}
	d.removeChildren(n)
	for _, c := range nodes {
		n.AppendChild(c)
	}
	d.register(n)
	d.record(Mutation{Op: OpHTML, ID: d.ID(n), Value: InnerHTML(n)})
	return nil
}

// CloneChildren returns deep copies of the children of n.
func CloneChildren(n *html.Node) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, clone(c))
	}
	return out
}

// RestoreChildren replaces the children of n with copies of saved.
func (d *Document) RestoreChildren(n *html.Node, saved []*html.Node) {
	d.removeChildren(n)
	for _, c := range saved {
		n.AppendChild(clone(c))
	}
	d.register(n)
	d.record(Mutation{Op: OpHTML, ID: d.ID(n), Value: InnerHTML(n)})
}

// AppendChild appends child to parent and records an insert.
func (d *Document) AppendChild(parent, child *html.Node) {
	parent.AppendChild(child)
	d.register(child)
	d.record(Mutation{Op: OpInsert, ID: d.ID(parent), Value: OuterHTML(child)})
}

// ScrollIntoView records a request to scroll n into view.
func (d *Document) ScrollIntoView(n *html.Node) {
	d.record(Mutation{Op: OpScroll, ID: d.ID(n)})
}

func (d *Document) removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		d.unregister(c)
		n.RemoveChild(c)
		c = next
	}
}

// InnerHTML renders the children of n.
func InnerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML renders n itself.
func OuterHTML(n *html.Node) string {
	var buf bytes.Buffer
	_ = html.Render(&buf, n)
	return buf.String()
}

// Render returns the live document including editor artifacts.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}

// Content returns the page content with every editor artifact removed.
func (d *Document) Content() (string, error) {
	c := d.Clean(clone(d.root))
	var buf bytes.Buffer
	if err := html.Render(&buf, c); err != nil {
		return "", fmt.Errorf("render content: %w", err)
	}
	return buf.String(), nil
}

// IsArtifact reports whether an attribute key belongs to the editor.
func IsArtifact(key string) bool {
	return strings.HasPrefix(key, ArtifactPrefix)
}

// Override sets an attribute on behalf of the editor. The page's own value
// is remembered until Restore, and Content and PageAttrs report it instead.
func (d *Document) Override(n *html.Node, key, val string) bool {
	id := d.ID(n)
	if id == "" {
		return d.SetAttr(n, key, val)
	}
	saved := d.overrides[id]
	if saved == nil {
		saved = make(map[string]pageAttr)
		d.overrides[id] = saved
	}
	if _, ok := saved[key]; !ok {
		v, present := Attr(n, key)
		saved[key] = pageAttr{val: v, present: present}
	}
	return d.SetAttr(n, key, val)
}

// Restore puts back the page's own value of an overridden attribute.
func (d *Document) Restore(n *html.Node, key string) bool {
	id := d.ID(n)
	if id == "" {
		return d.RemoveAttr(n, key)
	}
	saved, ok := d.overrides[id][key]
	if !ok {
		return false
	}
	delete(d.overrides[id], key)
	if len(d.overrides[id]) == 0 {
		delete(d.overrides, id)
	}
	if saved.present {
		return d.SetAttr(n, key, saved.val)
	}
	return d.RemoveAttr(n, key)
}

// PageAttrs returns the attributes of n as the page defines them: editor
// artifacts dropped and overridden values reverted. n may be a copy of a
// document node as long as it kept its relay id.
func (d *Document) PageAttrs(n *html.Node) []html.Attribute {
	id, _ := Attr(n, IDAttr)
	saved := d.overrides[id]
	out := make([]html.Attribute, 0, len(n.Attr))
	for _, a := range n.Attr {
		if IsArtifact(a.Key) {
			continue
		}
		if p, ok := saved[a.Key]; ok {
			if p.present {
				out = append(out, html.Attribute{Namespace: a.Namespace, Key: a.Key, Val: p.val})
			}
			continue
		}
		out = append(out, a)
	}
	return out
}

// Clean turns a detached copy of document nodes into page markup in place:
// the toolbar subtree is removed and every element gets its PageAttrs.
func (d *Document) Clean(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if _, ok := Attr(c, ToolbarAttr); ok && c.Type == html.ElementNode {
			n.RemoveChild(c)
		} else {
			d.Clean(c)
		}
		c = next
	}
	if n.Type == html.ElementNode {
		n.Attr = d.PageAttrs(n)
	}
	return n
}

// CreateElement returns a detached element with the given attributes.
func CreateElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// SetRect records the bounding client rect of n.
func (d *Document) SetRect(n *html.Node, r protocol.Rect) {
	if n != nil {
		d.rects[n] = r
	}
}

// Rect returns the last known bounding client rect of n.
func (d *Document) Rect(n *html.Node) protocol.Rect {
	return d.rects[n]
}

// SetViewport records the viewport size.
func (d *Document) SetViewport(s Size) {
	if s.Width > 0 && s.Height > 0 {
		d.viewport = s
	}
}

// Viewport returns the viewport size.
func (d *Document) Viewport() Size { return d.viewport }

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func clone(n *html.Node) *html.Node {
	c := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		c.Attr = make([]html.Attribute, len(n.Attr))
		copy(c.Attr, n.Attr)
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		c.AppendChild(clone(ch))
	}
	return c
}

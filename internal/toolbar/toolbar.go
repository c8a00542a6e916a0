// Package toolbar manages the floating contextual action bar shown over the
// selected element.
package toolbar

import (
	"fmt"
	"strconv"

	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/protocol"
	"golang.org/x/net/html"
)

// Action is a semantic toolbar action.
type Action string

const (
	ActionRegenerate Action = "regenerate"
	ActionCustomEdit Action = "custom-edit"
	ActionProps      Action = "props"
)

// Actions lists the buttons in display order.
var Actions = []Action{ActionRegenerate, ActionCustomEdit, ActionProps}

// MessageType returns the embedded->host message emitted for a.
func (a Action) MessageType() protocol.Type {
	return protocol.Type("action-" + string(a))
}

// ActionAttr names the action on each toolbar button.
const ActionAttr = "data-le-action"

const (
	// Gap is the distance between the toolbar and its anchor.
	Gap = 8.0
	// Margin is the minimum distance from the viewport edges.
	Margin = 10.0
)

// DefaultSize is the rendered toolbar size assumed for positioning.
var DefaultSize = dom.Size{Width: 240, Height: 36}

var labels = map[Action]string{
	ActionRegenerate: "Regenerate",
	ActionCustomEdit: "Edit with AI",
	ActionProps:      "Properties",
}

// Position is where the toolbar is drawn, in viewport coordinates.
type Position struct {
	Top   float64
	Left  float64
	Below bool
}

// Place centres a toolbar of the given size above anchor, flipping below it
// when it would leave the top margin, and clamps it horizontally inside the
// viewport.
func Place(anchor protocol.Rect, viewport, size dom.Size) Position {
	p := Position{
		Top:  anchor.Top - size.Height - Gap,
		Left: anchor.Left + anchor.Width/2 - size.Width/2,
	}
	if p.Top < Margin {
		p.Top = anchor.Bottom() + Gap
		p.Below = true
	}
	if right := viewport.Width - size.Width - Margin; p.Left > right {
		p.Left = right
	}
	if p.Left < Margin {
		p.Left = Margin
	}
	return p
}

// Toolbar is the floating container inside a document. It is created on the
// first Show and reused afterwards.
type Toolbar struct {
	doc     *dom.Document
	size    dom.Size
	root    *html.Node
	visible bool
}

// New returns a toolbar for doc. A zero size selects DefaultSize.
func New(doc *dom.Document, size dom.Size) *Toolbar {
	if size.Width <= 0 || size.Height <= 0 {
		size = DefaultSize
	}
	return &Toolbar{doc: doc, size: size}
}

// Show positions the toolbar over anchor and makes it visible.
func (t *Toolbar) Show(anchor *html.Node) Position {
	t.ensure()
	pos := Place(t.doc.Rect(anchor), t.doc.Viewport(), t.size)
	t.doc.SetAttr(t.root, "style", style(pos))
	t.visible = true
	return pos
}

// Hide makes the toolbar invisible without removing it.
func (t *Toolbar) Hide() {
	if t.root == nil || !t.visible {
		return
	}
	t.visible = false
	if t.doc.Attached(t.root) {
		t.doc.SetAttr(t.root, "style", "display: none")
	}
}

// Visible reports whether the toolbar is shown.
func (t *Toolbar) Visible() bool { return t.visible }

// Root returns the container, or nil before the first Show.
func (t *Toolbar) Root() *html.Node { return t.root }

// Contains reports whether n is the toolbar or inside it.
func (t *Toolbar) Contains(n *html.Node) bool {
	return t.root != nil && n != nil && dom.Contains(t.root, n)
}

// ActionFor returns the action of the button n belongs to.
func (t *Toolbar) ActionFor(n *html.Node) (Action, bool) {
	if !t.Contains(n) {
		return "", false
	}
	for c := n; c != nil && c != t.root.Parent; c = c.Parent {
		if v, ok := dom.Attr(c, ActionAttr); ok {
			return Action(v), true
		}
	}
	return "", false
}

// ensure creates the container, or recreates it after the document was replaced.
func (t *Toolbar) ensure() {
	if t.root != nil && t.doc.Attached(t.root) {
		return
	}
	root := dom.CreateElement("div",
		html.Attribute{Key: dom.ToolbarAttr, Val: ""},
		html.Attribute{Key: "role", Val: "toolbar"},
		html.Attribute{Key: "style", Val: "display: none"},
	)
	for _, a := range Actions {
		b := dom.CreateElement("button",
			html.Attribute{Key: "type", Val: "button"},
			html.Attribute{Key: ActionAttr, Val: string(a)},
		)
		b.AppendChild(&html.Node{Type: html.TextNode, Data: labels[a]})
		root.AppendChild(b)
	}
	t.doc.AppendChild(t.doc.Body(), root)
	t.root = root
	t.visible = false
}

func style(p Position) string {
	return fmt.Sprintf("position: fixed; z-index: 2147483647; top: %spx; left: %spx; display: flex",
		num(p.Top), num(p.Left))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

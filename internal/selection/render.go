package selection

import (
	"github.com/standardbeagle/livedit/internal/dom"
	"golang.org/x/net/html"
)

// render projects the in-memory state onto marker attributes. Each node
// carries at most one marker; stale markers are removed before new ones are
// set so a selection move never shows two selected nodes.
func (c *Controller) render() {
	if c.hovered != nil && !c.doc.Attached(c.hovered) {
		c.hovered = nil
	}

	want := make(map[*html.Node]string, 2)
	if c.hovered != nil && c.hovered != c.selected {
		want[c.hovered] = dom.HoverAttr
	}
	if c.selected != nil {
		if c.editing {
			want[c.selected] = dom.EditingAttr
		} else {
			want[c.selected] = dom.SelectedAttr
		}
	}

	for n, marker := range c.marked {
		if want[n] != marker && c.doc.Attached(n) {
			c.doc.RemoveAttr(n, marker)
		}
	}
	for n, marker := range want {
		c.doc.SetAttr(n, marker, "")
	}
	c.marked = want

	var edit *html.Node
	if c.editing {
		edit = c.selected
	}
	if c.editNode != nil && c.editNode != edit && c.doc.Attached(c.editNode) {
		c.doc.Restore(c.editNode, "contenteditable")
	}
	if edit != nil {
		c.doc.Override(edit, "contenteditable", "true")
	}
	c.editNode = edit
}

// reset forgets every node reference after the document was replaced.
func (c *Controller) reset() {
	c.blurGen++
	if c.blurTimer != nil {
		c.blurTimer.Stop()
		c.blurTimer = nil
	}
	c.hovered = nil
	c.selected = nil
	c.focused = nil
	c.editing = false
	c.originalText = ""
	c.originalChildren = nil
	c.marked = make(map[*html.Node]string)
	c.editNode = nil
	c.bar.Hide()
}

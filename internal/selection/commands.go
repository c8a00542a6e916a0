package selection

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/locator"
	"github.com/standardbeagle/livedit/internal/protocol"
	"golang.org/x/net/html"
)

// ErrUnknownField is returned for an update-element field the controller
// cannot apply.
var ErrUnknownField = errors.New("unknown update-element field")

// Handle applies a host command. Malformed, unknown and misdirected messages
// are logged and dropped; Handle never fails.
func (c *Controller) Handle(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch msg.Type {
	case protocol.TypeSetSelectionMode:
		var p protocol.SetSelectionMode
		if c.decode(msg, &p) {
			c.setMode(p.Enabled)
		}
	case protocol.TypeDeselect:
		c.deselect()
	case protocol.TypeUpdateElement:
		var p protocol.UpdateElement
		if c.decode(msg, &p) {
			c.applyPatch(p)
		}
	case protocol.TypeSelectByPath:
		var p protocol.SelectByPath
		if c.decode(msg, &p) {
			c.selectByPath(p.Path)
		}
	case protocol.TypeReplaceContent:
		var p protocol.ReplaceContent
		if c.decode(msg, &p) {
			c.replaceContent(p.Content)
		}
	default:
		if msg.Type.Known() {
			log.Debugf("ignoring %s: not a host command", msg.Type)
			return
		}
		log.Warnf("ignoring unknown message type %q", msg.Type)
	}
}

func (c *Controller) decode(msg protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		log.Warnf("ignoring %s: %v", msg.Type, err)
		return false
	}
	return true
}

func (c *Controller) setMode(enabled bool) {
	want := ModeInert
	if enabled {
		want = ModeSelect
	}
	if c.mode == want {
		return
	}
	c.mode = want
	if want == ModeInert {
		c.deselect()
		c.hovered = nil
		c.bar.Hide()
		c.render()
	}
}

func (c *Controller) applyPatch(p protocol.UpdateElement) {
	n := c.selected
	if n == nil || !c.doc.Attached(n) {
		log.Warnf("update-element %s: nothing selected", p.Field)
		return
	}
	changed, err := c.patch(n, p)
	if err != nil {
		log.Warnf("update-element: %v", err)
		return
	}
	if !changed {
		return
	}
	if c.editing {
		// A host patch becomes the new baseline for cancel.
		c.originalText = dom.TextContent(n)
		c.originalChildren = dom.CloneChildren(n)
	}
	c.render()
	if c.bar.Visible() {
		c.bar.Show(n)
	}
	c.sendContent()
}

func (c *Controller) patch(n *html.Node, p protocol.UpdateElement) (bool, error) {
	switch p.Field {
	case protocol.FieldText:
		return c.doc.SetText(n, p.Value), nil
	case protocol.FieldClasses:
		v := strings.Join(strings.Fields(p.Value), " ")
		if v == "" {
			return c.doc.RemoveAttr(n, "class"), nil
		}
		return c.doc.SetAttr(n, "class", v), nil
	case protocol.FieldHTML:
		if dom.InnerHTML(n) == p.Value {
			return false, nil
		}
		if err := c.doc.SetInnerHTML(n, p.Value); err != nil {
			return false, err
		}
		return true, nil
	case protocol.FieldSrc, protocol.FieldHref, protocol.FieldTarget, protocol.FieldAlt, protocol.FieldLoading:
		if p.Value == "" {
			return c.doc.RemoveAttr(n, p.Field), nil
		}
		return c.doc.SetAttr(n, p.Field, p.Value), nil
	case protocol.FieldDisabled:
		on := false
		if p.Value != "" {
			v, err := strconv.ParseBool(p.Value)
			if err != nil {
				return false, fmt.Errorf("disabled: %w", err)
			}
			on = v
		}
		if on {
			return c.doc.SetAttr(n, "disabled", ""), nil
		}
		return c.doc.RemoveAttr(n, "disabled"), nil
	}
	return false, fmt.Errorf("%w %q", ErrUnknownField, p.Field)
}

func (c *Controller) selectByPath(path string) {
	n := locator.ResolveString(c.doc, path)
	if n == nil {
		log.Warnf("select-by-path %q matched nothing, selection unchanged", path)
		return
	}
	if !c.selectNode(n, Point{}) {
		log.Warnf("select-by-path %q matched a node that cannot be selected", path)
		return
	}
	c.doc.ScrollIntoView(n)
}

func (c *Controller) replaceContent(content string) {
	if err := c.doc.Replace(content); err != nil {
		log.Warnf("replace-content: %v", err)
		return
	}
	c.reset()
}

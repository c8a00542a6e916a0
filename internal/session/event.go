package session

import (
	"errors"
	"fmt"

	"golang.org/x/net/html"

	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/selection"
)

// EventType names a browser input event forwarded by the relay script.
type EventType string

const (
	EventPointerEnter EventType = "pointerenter"
	EventPointerLeave EventType = "pointerleave"
	EventClick        EventType = "click"
	EventDoubleClick  EventType = "dblclick"
	EventKeyDown      EventType = "keydown"
	EventFocus        EventType = "focus"
	EventBlur         EventType = "blur"
	EventInput        EventType = "input"
	EventLayout       EventType = "layout"
)

// ErrUnknownEvent is returned for an event type the relay should not send.
var ErrUnknownEvent = errors.New("unknown relay event")

// Event is one input event from the browser. Node references are relay ids
// (the data-le-id attribute).
type Event struct {
	Seq     uint64    `json:"seq,omitempty"`
	Type    EventType `json:"type"`
	ID      string    `json:"id,omitempty"`
	Related string    `json:"related,omitempty"`
	X       float64   `json:"x,omitempty"`
	Y       float64   `json:"y,omitempty"`
	Key     string    `json:"key,omitempty"`
	Shift   bool      `json:"shiftKey,omitempty"`
	Text    string    `json:"text,omitempty"`

	Viewport *dom.Size               `json:"viewport,omitempty"`
	Rects    map[string]protocol.Rect `json:"rects,omitempty"`
}

// EventResult answers an event. Mutations produced by it are delivered to
// mutation subscribers, not here.
type EventResult struct {
	Seq             uint64 `json:"seq,omitempty"`
	PreventDefault  bool   `json:"preventDefault"`
	StopPropagation bool   `json:"stopPropagation"`
}

// Dispatch applies a relay event to the controller and flushes the
// resulting mutations. Events naming unknown or stale node ids are no-ops.
func (s *Session) Dispatch(ev Event) (EventResult, error) {
	if s.stopped.Load() {
		return EventResult{}, ErrStopped
	}
	defer s.flush()

	res := EventResult{Seq: ev.Seq}
	c := s.controller
	node := func(id string) *html.Node {
		if id == "" {
			return nil
		}
		return c.NodeByID(id)
	}

	switch ev.Type {
	case EventPointerEnter:
		if n := node(ev.ID); n != nil {
			c.PointerEnter(n)
		}
	case EventPointerLeave:
		if n := node(ev.ID); n != nil {
			c.PointerLeave(n)
		}
	case EventClick, EventDoubleClick:
		n := node(ev.ID)
		if n == nil {
			return res, nil
		}
		var r selection.ClickResult
		if ev.Type == EventClick {
			r = c.Click(n, selection.Point{X: ev.X, Y: ev.Y})
		} else {
			r = c.DoubleClick(n, selection.Point{X: ev.X, Y: ev.Y})
		}
		res.PreventDefault, res.StopPropagation = r.PreventDefault, r.StopPropagation
	case EventKeyDown:
		r := c.KeyDown(selection.Key{Name: ev.Key, Shift: ev.Shift})
		res.PreventDefault = r.PreventDefault
	case EventFocus:
		if n := node(ev.ID); n != nil {
			c.Focus(n)
		}
	case EventBlur:
		c.Blur(node(ev.Related))
	case EventInput:
		c.EditText(ev.Text)
	case EventLayout:
		viewport := dom.DefaultViewport
		if ev.Viewport != nil {
			viewport = *ev.Viewport
		}
		c.UpdateLayout(viewport, ev.Rects)
	default:
		return res, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	return res, nil
}

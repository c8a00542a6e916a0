// Package selection implements the embedded-side selection state machine.
//
// A Controller owns the page document for one load. Input events relayed
// from the browser (pointer, click, key, focus) drive transitions between
// Idle, Hovering, Selected and Editing. Every transition re-projects the
// in-memory state onto marker attributes through render; the markers are
// never read back. Notifications go to the host through a Sender, and host
// commands arrive through Handle.
package selection

import (
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/locator"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/toolbar"
	"golang.org/x/net/html"
)

var log = debug.For("selection")

// Version is reported in the ready notification.
const Version = "1.0.0"

// DefaultBlurDelay is how long a blur waits before deciding focus left the edit.
const DefaultBlurDelay = 100 * time.Millisecond

// Features is advertised in the ready notification.
var Features = []string{"hover", "select", "inline-edit", "toolbar", "select-by-path", "update-element", "replace-content"}

// DefaultEditableTags may be edited inline.
var DefaultEditableTags = []string{
	"p", "h1", "h2", "h3", "h4", "h5", "h6", "span", "a", "button", "li",
	"label", "blockquote", "figcaption", "td", "th", "strong", "em", "small", "div",
}

var excludedTags = map[string]bool{
	"html": true, "head": true, "body": true, "script": true, "style": true,
	"meta": true, "link": true, "title": true, "noscript": true,
	"template": true, "br": true,
}

// Sender delivers a notification to the host.
type Sender interface {
	Send(t protocol.Type, data any) error
}

// Mode is the interaction mode.
type Mode string

const (
	ModeSelect Mode = "select"
	ModeInert  Mode = "inert"
)

// State is the derived machine state.
type State int

const (
	Idle State = iota
	Hovering
	Selected
	Editing
)

func (s State) String() string {
	switch s {
	case Hovering:
		return "hovering"
	case Selected:
		return "selected"
	case Editing:
		return "editing"
	default:
		return "idle"
	}
}

// Point is a pointer position in viewport coordinates.
type Point struct {
	X, Y float64
}

// ClickResult tells the relay what to do with the native event.
type ClickResult struct {
	PreventDefault  bool `json:"preventDefault"`
	StopPropagation bool `json:"stopPropagation"`
}

// Key names handled by KeyDown.
const (
	KeyEnter  = "Enter"
	KeyEscape = "Escape"
)

// Key is a keydown event.
type Key struct {
	Name  string `json:"key"`
	Shift bool   `json:"shiftKey"`
}

// KeyResult tells the relay whether to suppress the native key event.
type KeyResult struct {
	PreventDefault bool `json:"preventDefault"`
}

// Config tunes a Controller.
type Config struct {
	Version      string
	EditableTags []string
	BlurDelay    time.Duration
	ToolbarSize  dom.Size
	Scheduler    Scheduler
	// Inert starts the controller with selection disabled.
	Inert bool
}

// Controller is the selection state machine for one document load.
type Controller struct {
	mu sync.Mutex

	doc      *dom.Document
	out      Sender
	cfg      Config
	sched    Scheduler
	bar      *toolbar.Toolbar
	editable map[string]bool

	initialized bool
	mode        Mode
	hovered     *html.Node
	selected    *html.Node
	editing     bool

	originalText     string
	originalChildren []*html.Node

	focused   *html.Node
	blurGen   uint64
	blurTimer Timer

	marked   map[*html.Node]string
	editNode *html.Node
}

// New returns a controller over doc that reports to out.
func New(doc *dom.Document, out Sender, cfg Config) *Controller {
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if len(cfg.EditableTags) == 0 {
		cfg.EditableTags = DefaultEditableTags
	}
	if cfg.BlurDelay <= 0 {
		cfg.BlurDelay = DefaultBlurDelay
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = realScheduler{}
	}
	editable := make(map[string]bool, len(cfg.EditableTags))
	for _, t := range cfg.EditableTags {
		editable[strings.ToLower(t)] = true
	}
	mode := ModeSelect
	if cfg.Inert {
		mode = ModeInert
	}
	return &Controller{
		doc:      doc,
		out:      out,
		cfg:      cfg,
		sched:    sched,
		bar:      toolbar.New(doc, cfg.ToolbarSize),
		editable: editable,
		mode:     mode,
		marked:   make(map[*html.Node]string),
	}
}

// Init announces the controller to the host. Only the first call sends the
// ready notification; it reports whether this call did.
func (c *Controller) Init() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return false
	}
	c.initialized = true
	c.send(protocol.TypeReady, protocol.Ready{Version: c.cfg.Version, Features: Features})
	return true
}

// Mode returns the interaction mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// State returns the derived machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.editing:
		return Editing
	case c.selected != nil:
		return Selected
	case c.hovered != nil:
		return Hovering
	}
	return Idle
}

// Hovered returns the hovered node, if any.
func (c *Controller) Hovered() *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hovered
}

// Selected returns the selected node, if any.
func (c *Controller) Selected() *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Editing reports whether an inline edit is in progress.
func (c *Controller) Editing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.editing
}

// ToolbarVisible reports whether the toolbar is shown.
func (c *Controller) ToolbarVisible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bar.Visible()
}

// Toolbar returns the toolbar. Callers must not use it concurrently with events.
func (c *Controller) Toolbar() *toolbar.Toolbar { return c.bar }

// NodeByID looks up a node by relay id.
func (c *Controller) NodeByID(id string) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.NodeByID(id)
}

// Flush drains the document mutations produced since the last call.
func (c *Controller) Flush() []dom.Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.TakeMutations()
}

// Content returns the document content without editor artifacts.
func (c *Controller) Content() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Content()
}

// Render returns the live document including editor artifacts.
func (c *Controller) Render() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.Render()
}

// UpdateLayout records geometry reported by the browser, keyed by relay id.
func (c *Controller) UpdateLayout(viewport dom.Size, rects map[string]protocol.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc.SetViewport(viewport)
	for id, r := range rects {
		if n := c.doc.NodeByID(id); n != nil {
			c.doc.SetRect(n, r)
		}
	}
	if c.bar.Visible() && c.selected != nil {
		c.bar.Show(c.selected)
	}
}

// PointerEnter hovers n.
func (c *Controller) PointerEnter(n *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != ModeSelect || c.editing || c.excluded(n) {
		return
	}
	if n == c.selected {
		c.hovered = nil
	} else {
		c.hovered = n
	}
	c.render()
}

// PointerLeave clears the hover when it is on n.
func (c *Controller) PointerLeave(n *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hovered != n {
		return
	}
	c.hovered = nil
	c.render()
}

// Click handles a capture-phase click on n.
func (c *Controller) Click(n *html.Node, p Point) ClickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.bar.Contains(n) {
		if a, ok := c.bar.ActionFor(n); ok {
			c.emitAction(a)
		}
		return ClickResult{PreventDefault: true, StopPropagation: true}
	}
	if c.mode != ModeSelect {
		return ClickResult{}
	}
	if c.editing && dom.Contains(c.selected, n) {
		// Caret placement inside the edited node.
		return ClickResult{}
	}

	res := ClickResult{StopPropagation: true}
	if href, ok := linkHref(n); ok && !strings.HasPrefix(href, "#") {
		res.PreventDefault = true
	}
	if n == c.selected && c.isEditable(n) {
		c.startEditing(n)
		return res
	}
	c.selectNode(n, p)
	return res
}

// DoubleClick starts editing an editable node, selecting it first.
func (c *Controller) DoubleClick(n *html.Node, p Point) ClickResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeSelect || c.bar.Contains(n) {
		return ClickResult{}
	}
	if c.editing && dom.Contains(c.selected, n) {
		// Word selection inside the edited node.
		return ClickResult{}
	}
	res := ClickResult{StopPropagation: true}
	if c.excluded(n) || !c.isEditable(n) {
		return res
	}
	if href, ok := linkHref(n); ok && !strings.HasPrefix(href, "#") {
		res.PreventDefault = true
	}
	if c.selected != n && !c.selectNode(n, p) {
		return res
	}
	c.startEditing(n)
	return res
}

// KeyDown handles the document-level key listener.
func (c *Controller) KeyDown(k Key) KeyResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.editing {
		switch {
		case k.Name == KeyEnter && !k.Shift:
			c.finishEditing(true)
			return KeyResult{PreventDefault: true}
		case k.Name == KeyEscape:
			c.finishEditing(false)
			return KeyResult{PreventDefault: true}
		}
		return KeyResult{}
	}
	if k.Name == KeyEscape && c.deselect() {
		return KeyResult{PreventDefault: true}
	}
	return KeyResult{}
}

// Focus records that n received focus.
func (c *Controller) Focus(n *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = n
}

// Blur records that focus left the edited node for related (nil when focus
// left the document). Moving into the toolbar keeps the edit open; anything
// else saves the edit once the pending-blur check confirms focus did not
// come back. The delay is a heuristic.
func (c *Controller) Blur(related *html.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.focused = related
	if !c.editing || c.bar.Contains(related) {
		return
	}
	if c.blurTimer != nil {
		c.blurTimer.Stop()
	}
	gen := c.blurGen
	c.blurTimer = c.sched.AfterFunc(c.cfg.BlurDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.editing || c.blurGen != gen {
			return
		}
		if c.bar.Contains(c.focused) || c.focused != nil && dom.Contains(c.selected, c.focused) {
			return
		}
		log.Debugf("focus left the edited node, saving")
		c.finishEditing(true)
	})
}

// EditText replaces the text of the node being edited, as typed in the browser.
func (c *Controller) EditText(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.editing {
		return false
	}
	return c.doc.SetText(c.selected, text)
}

// Select makes n the single selected node. Excluded nodes are ignored.
func (c *Controller) Select(n *html.Node, p Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectNode(n, p)
}

// Deselect clears the selection. It reports false when nothing was selected.
func (c *Controller) Deselect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deselect()
}

// StartEditing opens an inline edit on n, selecting it if needed.
func (c *Controller) StartEditing(n *html.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != n && !c.selectNode(n, Point{}) {
		return false
	}
	return c.startEditing(n)
}

// FinishEditing closes the edit, keeping the typed text when save is true
// and restoring the original content otherwise.
func (c *Controller) FinishEditing(save bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishEditing(save)
}

func (c *Controller) selectNode(n *html.Node, p Point) bool {
	if c.excluded(n) {
		log.Debugf("ignoring selection of excluded node <%s>", dom.TagName(n))
		return false
	}
	if c.editing {
		c.finishEditing(true)
	}
	c.selected = n
	c.hovered = nil
	c.render()
	c.bar.Show(n)
	c.send(protocol.TypeElementSelected, protocol.ElementSelected{
		ElementSnapshot: locator.Capture(c.doc, n),
		MouseX:          p.X,
		MouseY:          p.Y,
	})
	return true
}

func (c *Controller) deselect() bool {
	if c.selected == nil {
		return false
	}
	if c.editing {
		c.finishEditing(true)
	}
	c.selected = nil
	c.render()
	c.bar.Hide()
	c.send(protocol.TypeElementDeselected, protocol.Empty{})
	return true
}

func (c *Controller) startEditing(n *html.Node) bool {
	if c.selected != n || !c.isEditable(n) {
		return false
	}
	if c.editing {
		return false
	}
	c.editing = true
	c.blurGen++
	c.hovered = nil
	c.render()
	c.originalText = dom.TextContent(n)
	c.originalChildren = dom.CloneChildren(n)
	c.focused = n
	c.send(protocol.TypeElementEditing, protocol.ElementEditing{
		ElementSnapshot: locator.Capture(c.doc, n),
		OriginalText:    c.originalText,
	})
	return true
}

func (c *Controller) finishEditing(save bool) bool {
	if !c.editing {
		return false
	}
	c.blurGen++
	if c.blurTimer != nil {
		c.blurTimer.Stop()
		c.blurTimer = nil
	}

	n := c.selected
	original := c.originalText
	if !save {
		c.doc.RestoreChildren(n, c.originalChildren)
	}
	c.editing = false
	c.originalText = ""
	c.originalChildren = nil
	c.render()
	if c.doc.Attached(n) {
		c.bar.Show(n)
	}

	if !save {
		return true
	}
	text := dom.TextContent(n)
	if text == original {
		return true
	}
	c.send(protocol.TypeTextChanged, protocol.TextChanged{
		ElementSnapshot: locator.Capture(c.doc, n),
		OldText:         original,
		NewText:         text,
	})
	c.sendContent()
	return true
}

func (c *Controller) emitAction(a toolbar.Action) {
	if c.selected == nil {
		log.Warnf("toolbar action %s without a selection", a)
		return
	}
	c.send(a.MessageType(), locator.Capture(c.doc, c.selected))
}

func (c *Controller) excluded(n *html.Node) bool {
	if !dom.IsElement(n) || excludedTags[dom.TagName(n)] {
		return true
	}
	if c.bar.Contains(n) {
		return true
	}
	return !dom.Contains(c.doc.Body(), n)
}

func (c *Controller) isEditable(n *html.Node) bool {
	return c.editable[dom.TagName(n)]
}

func (c *Controller) send(t protocol.Type, data any) {
	if c.out == nil {
		return
	}
	if err := c.out.Send(t, data); err != nil {
		log.Warnf("send %s: %v", t, err)
	}
}

func (c *Controller) sendContent() {
	content, err := c.doc.Content()
	if err != nil {
		log.Warnf("content snapshot: %v", err)
		return
	}
	c.send(protocol.TypeContentChanged, protocol.ContentChanged{Content: content})
}

// linkHref returns the href of n or its nearest anchor ancestor.
func linkHref(n *html.Node) (string, bool) {
	for c := n; c != nil; c = c.Parent {
		if dom.TagName(c) == "a" {
			return dom.Attr(c, "href")
		}
	}
	return "", false
}

// Package editor is the host-side model of a live editing session: the draft
// of the selected element's editable properties and the bounded undo/redo
// history of full-document contents.
//
// Draft edits stay local until ApplyChanges sends one update-element patch
// per changed key. Undo and Redo ask the embedded document to replace its
// content. Calls to external collaborators (save, regenerate) never modify
// local state when they fail.
package editor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/locator"
	"github.com/standardbeagle/livedit/internal/protocol"
)

var log = debug.For("editor")

var (
	// ErrNoSelection is returned when an operation needs a selected element.
	ErrNoSelection = errors.New("no element selected")
	// ErrUnknownProperty is returned for a key outside the element's property set.
	ErrUnknownProperty = errors.New("property not editable for this element")
	// ErrNothingToSave is returned by Save before any content is known.
	ErrNothingToSave = errors.New("no page content to save")
	// ErrNoCollaborator is returned when a save or regenerate backend is not configured.
	ErrNoCollaborator = errors.New("collaborator not configured")
	// ErrStaleSelection is returned when the selection can no longer be
	// found in the current page content.
	ErrStaleSelection = errors.New("selected element not found in page")
)

// Sender delivers a command to the embedded document.
type Sender interface {
	Send(t protocol.Type, data any) error
}

// PageSaver persists page content.
type PageSaver interface {
	SavePage(ctx context.Context, content string) error
}

// RegenerateRequest describes an AI regeneration of one element.
type RegenerateRequest struct {
	Element     protocol.ElementSnapshot
	Instruction string
	Page        string
}

// Regenerator produces replacement inner markup for an element.
type Regenerator interface {
	Regenerate(ctx context.Context, req RegenerateRequest) (string, error)
}

// ActionHandler receives toolbar actions from the embedded document.
type ActionHandler func(action protocol.Type, element protocol.ElementSnapshot)

// Options configures a Store.
type Options struct {
	HistoryCap  int
	Saver       PageSaver
	Regenerator Regenerator
	OnAction    ActionHandler
}

// Property is one editable property of the selection.
type Property struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Applied string `json:"applied"`
	Pending bool   `json:"pending"`
}

// Store holds the host-side state. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	out      Sender
	history  *History
	saver    PageSaver
	regen    Regenerator
	onAction ActionHandler

	ready    *protocol.Ready
	selected *protocol.ElementSnapshot
	elemType ElementType
	editing  bool
	applied  map[string]string
	draft    map[string]string
}

// NewStore returns a store that sends commands to out.
func NewStore(out Sender, opts Options) *Store {
	return &Store{
		out:      out,
		history:  NewHistory(opts.HistoryCap),
		saver:    opts.Saver,
		regen:    opts.Regenerator,
		onAction: opts.OnAction,
	}
}

// Ready returns the embedded document's ready notification, once received.
func (s *Store) Ready() (protocol.Ready, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready == nil {
		return protocol.Ready{}, false
	}
	return *s.ready, true
}

// SelectElement makes snap the active editable target. Re-selecting the same
// path refreshes applied values and keeps pending draft edits.
func (s *Store) SelectElement(snap protocol.ElementSnapshot) ElementType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectElement(snap)
}

func (s *Store) selectElement(snap protocol.ElementSnapshot) ElementType {
	t := Classify(snap)
	values := propertyValues(t, snap)
	draft := maps.Clone(values)
	if s.selected != nil && s.selected.Path == snap.Path {
		for k := range draft {
			if old, ok := s.draft[k]; ok && old != s.applied[k] {
				draft[k] = old
			}
		}
	}
	s.selected = &snap
	s.elemType = t
	s.applied = values
	s.draft = draft
	return t
}

// ClearSelection forgets the selection and its draft.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearSelection()
}

func (s *Store) clearSelection() {
	s.selected = nil
	s.elemType = ""
	s.editing = false
	s.applied = nil
	s.draft = nil
}

// Selection returns the active snapshot.
func (s *Store) Selection() (protocol.ElementSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return protocol.ElementSnapshot{}, false
	}
	return *s.selected, true
}

// ElementType returns the type of the selection, or "".
func (s *Store) ElementType() ElementType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elemType
}

// Editing reports whether the embedded document is in an inline edit.
func (s *Store) Editing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

// Properties returns the editable properties of the selection in display order.
func (s *Store) Properties() []Property {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return nil
	}
	keys := propertyKeys[s.elemType]
	out := make([]Property, 0, len(keys))
	for _, k := range keys {
		if _, ok := s.draft[k]; !ok {
			continue
		}
		out = append(out, Property{
			Key:     k,
			Value:   s.draft[k],
			Applied: s.applied[k],
			Pending: s.draft[k] != s.applied[k],
		})
	}
	return out
}

// UpdateProperty changes the draft only.
func (s *Store) UpdateProperty(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return ErrNoSelection
	}
	if _, ok := s.draft[key]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownProperty, key, s.elemType)
	}
	s.draft[key] = value
	return nil
}

// Pending returns the keys whose draft differs from the applied value, in
// display order.
func (s *Store) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending()
}

func (s *Store) pending() []string {
	var out []string
	for _, k := range propertyKeys[s.elemType] {
		if v, ok := s.draft[k]; ok && v != s.applied[k] {
			out = append(out, k)
		}
	}
	return out
}

// ApplyChanges sends one update-element patch per pending key. Keys sent
// before a failure stay applied; the failing key and the rest stay pending.
func (s *Store) ApplyChanges() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil {
		return 0, ErrNoSelection
	}
	sent := 0
	for _, k := range s.pending() {
		v := s.draft[k]
		if err := s.out.Send(protocol.TypeUpdateElement, protocol.UpdateElement{Field: k, Value: v}); err != nil {
			return sent, fmt.Errorf("apply %s: %w", k, err)
		}
		s.applied[k] = v
		sent++
	}
	return sent, nil
}

// DiscardChanges reverts the draft to the applied values without messaging.
// It reports whether anything was pending.
func (s *Store) DiscardChanges() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending()) == 0 {
		return false
	}
	s.draft = maps.Clone(s.applied)
	return true
}

// PushHistory records full-document content as the current state.
func (s *Store) PushHistory(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Push(content)
}

// Undo restores the previous state in the embedded document. It returns
// false when there is nothing to undo or the request could not be sent.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.history.Undo()
	if !ok {
		return false
	}
	if err := s.out.Send(protocol.TypeReplaceContent, protocol.ReplaceContent{Content: content}); err != nil {
		log.Warnf("undo: %v", err)
		s.history.Redo()
		return false
	}
	s.clearSelection()
	return true
}

// Redo reapplies the last undone state.
func (s *Store) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.history.Redo()
	if !ok {
		return false
	}
	if err := s.out.Send(protocol.TypeReplaceContent, protocol.ReplaceContent{Content: content}); err != nil {
		log.Warnf("redo: %v", err)
		s.history.Undo()
		return false
	}
	s.clearSelection()
	return true
}

// HistoryState summarises the undo/redo stacks.
type HistoryState struct {
	Len       int  `json:"len"`
	FutureLen int  `json:"futureLen"`
	Cap       int  `json:"cap"`
	CanUndo   bool `json:"canUndo"`
	CanRedo   bool `json:"canRedo"`
}

// History returns the current history shape.
func (s *Store) History() HistoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return HistoryState{
		Len:       s.history.Len(),
		FutureLen: s.history.FutureLen(),
		Cap:       s.history.Cap(),
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
	}
}

// Content returns the current document content as last reported.
func (s *Store) Content() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Current()
}

// Save persists the current content. On failure nothing local changes.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	saver := s.saver
	content, ok := s.history.Current()
	s.mu.Unlock()

	if saver == nil {
		return fmt.Errorf("save: %w", ErrNoCollaborator)
	}
	if !ok {
		return ErrNothingToSave
	}
	if err := saver.SavePage(ctx, content); err != nil {
		return fmt.Errorf("save page: %w", err)
	}
	return nil
}

// Regenerate asks the regenerator for new inner markup for the selection and
// sends it as an html patch. On failure nothing local changes.
func (s *Store) Regenerate(ctx context.Context, instruction string) error {
	s.mu.Lock()
	regen := s.regen
	var req RegenerateRequest
	selected := s.selected != nil
	if selected {
		req.Element = *s.selected
	}
	req.Instruction = instruction
	req.Page, _ = s.history.Current()
	s.mu.Unlock()

	if regen == nil {
		return fmt.Errorf("regenerate: %w", ErrNoCollaborator)
	}
	if !selected {
		return ErrNoSelection
	}
	// The snapshot markup is truncated; the reply replaces all of it.
	full, ok := locator.InnerHTMLAt(req.Page, req.Element.Path)
	if !ok {
		return fmt.Errorf("regenerate %s: %w", req.Element.Path, ErrStaleSelection)
	}
	req.Element.InnerHTML = full

	markup, err := regen.Regenerate(ctx, req)
	if err != nil {
		return fmt.Errorf("regenerate %s: %w", req.Element.Path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == nil || s.selected.Path != req.Element.Path {
		return fmt.Errorf("regenerate %s: %w", req.Element.Path, ErrNoSelection)
	}
	if err := s.out.Send(protocol.TypeUpdateElement, protocol.UpdateElement{Field: protocol.FieldHTML, Value: markup}); err != nil {
		return fmt.Errorf("regenerate %s: %w", req.Element.Path, err)
	}
	return nil
}

// SetSelectionMode asks the embedded document to toggle selection.
func (s *Store) SetSelectionMode(enabled bool) error {
	return s.out.Send(protocol.TypeSetSelectionMode, protocol.SetSelectionMode{Enabled: enabled})
}

// SelectByPath asks the embedded document to select the node at path.
func (s *Store) SelectByPath(path string) error {
	return s.out.Send(protocol.TypeSelectByPath, protocol.SelectByPath{Path: path})
}

// RequestDeselect asks the embedded document to clear its selection.
func (s *Store) RequestDeselect() error {
	return s.out.Send(protocol.TypeDeselect, protocol.Empty{})
}

// Handle consumes a notification from the embedded document. Malformed and
// unrelated messages are logged and dropped.
func (s *Store) Handle(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeReady:
		var p protocol.Ready
		if decode(msg, &p) {
			s.mu.Lock()
			s.ready = &p
			s.mu.Unlock()
		}
	case protocol.TypeElementSelected:
		var p protocol.ElementSelected
		if decode(msg, &p) {
			s.mu.Lock()
			s.selectElement(p.ElementSnapshot)
			s.editing = false
			s.mu.Unlock()
		}
	case protocol.TypeElementEditing:
		var p protocol.ElementEditing
		if decode(msg, &p) {
			s.mu.Lock()
			s.selectElement(p.ElementSnapshot)
			s.editing = true
			s.mu.Unlock()
		}
	case protocol.TypeTextChanged:
		var p protocol.TextChanged
		if decode(msg, &p) {
			s.mu.Lock()
			s.selectElement(p.ElementSnapshot)
			s.editing = false
			s.mu.Unlock()
		}
	case protocol.TypeElementDeselected:
		s.ClearSelection()
	case protocol.TypeContentChanged:
		var p protocol.ContentChanged
		if decode(msg, &p) {
			s.PushHistory(p.Content)
		}
	case protocol.TypeActionRegenerate, protocol.TypeActionCustomEdit, protocol.TypeActionProps:
		var p protocol.ElementSnapshot
		if decode(msg, &p) && s.onAction != nil {
			s.onAction(msg.Type, p)
		}
	default:
		log.Debugf("ignoring %q", msg.Type)
	}
}

func decode(msg protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		log.Warnf("ignoring %s: %v", msg.Type, err)
		return false
	}
	return true
}

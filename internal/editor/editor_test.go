package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/standardbeagle/livedit/internal/locator"
	"github.com/standardbeagle/livedit/internal/protocol"
)

type sent struct {
	typ  protocol.Type
	data any
}

type fakeSender struct {
	msgs   []sent
	failOn int // 1-based send number to fail, 0 never
	n      int
}

func (f *fakeSender) Send(t protocol.Type, data any) error {
	f.n++
	if f.failOn != 0 && f.n == f.failOn {
		return errors.New("channel down")
	}
	f.msgs = append(f.msgs, sent{t, data})
	return nil
}

func buttonSnapshot() protocol.ElementSnapshot {
	return protocol.ElementSnapshot{
		TagName:    "button",
		ID:         "cta",
		ClassName:  "btn",
		Text:       "Buy",
		Path:       "body > main > button#cta",
		Attributes: map[string]string{"id": "cta", "class": "btn"},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		snap protocol.ElementSnapshot
		want ElementType
	}{
		{protocol.ElementSnapshot{TagName: "img"}, TypeImage},
		{protocol.ElementSnapshot{TagName: "A"}, TypeLink},
		{protocol.ElementSnapshot{TagName: "button"}, TypeButton},
		{protocol.ElementSnapshot{TagName: "input", Attributes: map[string]string{"type": "submit"}}, TypeButton},
		{protocol.ElementSnapshot{TagName: "input"}, TypeInput},
		{protocol.ElementSnapshot{TagName: "video"}, TypeMedia},
		{protocol.ElementSnapshot{TagName: "h3"}, TypeHeading},
		{protocol.ElementSnapshot{TagName: "p"}, TypeText},
		{protocol.ElementSnapshot{TagName: "section"}, TypeContainer},
		{protocol.ElementSnapshot{TagName: "ul"}, TypeList},
		{protocol.ElementSnapshot{TagName: "canvas"}, TypeGeneric},
		{protocol.ElementSnapshot{TagName: "div", ElementType: "Heading"}, TypeHeading},
		{protocol.ElementSnapshot{TagName: "div", Attributes: map[string]string{"data-element-type": "button"}}, TypeButton},
		{protocol.ElementSnapshot{TagName: "p", ElementType: "bogus"}, TypeText},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.snap.TagName, tt.want), func(t *testing.T) {
			if got := Classify(tt.snap); got != tt.want {
				t.Errorf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDraftIsLocalUntilApplied(t *testing.T) {
	out := &fakeSender{}
	s := NewStore(out, Options{})
	if err := s.UpdateProperty("text", "x"); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v", err)
	}

	if got := s.SelectElement(buttonSnapshot()); got != TypeButton {
		t.Fatalf("type = %s", got)
	}
	if err := s.UpdateProperty(protocol.FieldSrc, "x.png"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("src on a button: err = %v", err)
	}
	if err := s.UpdateProperty(protocol.FieldText, "Buy now"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateProperty(protocol.FieldClasses, "btn primary"); err != nil {
		t.Fatal(err)
	}
	if len(out.msgs) != 0 {
		t.Fatal("UpdateProperty must not message the embedded document")
	}
	if got := s.Pending(); fmt.Sprint(got) != "[text classes]" {
		t.Errorf("pending = %v", got)
	}

	n, err := s.ApplyChanges()
	if err != nil || n != 2 {
		t.Fatalf("ApplyChanges = %d, %v", n, err)
	}
	if len(out.msgs) != 2 {
		t.Fatalf("sent %d messages", len(out.msgs))
	}
	for _, m := range out.msgs {
		if m.typ != protocol.TypeUpdateElement {
			t.Errorf("sent %s", m.typ)
		}
	}
	if first := out.msgs[0].data.(protocol.UpdateElement); first.Field != protocol.FieldText || first.Value != "Buy now" {
		t.Errorf("first patch = %+v", first)
	}
	if len(s.Pending()) != 0 {
		t.Error("applied keys still pending")
	}
	if n, _ := s.ApplyChanges(); n != 0 {
		t.Errorf("second apply sent %d", n)
	}
}

func TestDiscardChanges(t *testing.T) {
	out := &fakeSender{}
	s := NewStore(out, Options{})
	s.SelectElement(buttonSnapshot())
	if s.DiscardChanges() {
		t.Error("nothing to discard")
	}

	_ = s.UpdateProperty(protocol.FieldText, "Gone")
	if !s.DiscardChanges() {
		t.Fatal("discard reported nothing pending")
	}
	for _, p := range s.Properties() {
		if p.Pending || p.Key == protocol.FieldText && p.Value != "Buy" {
			t.Errorf("property after discard: %+v", p)
		}
	}
	if len(out.msgs) != 0 {
		t.Error("discard sent a message")
	}
}

func TestApplyFailureKeepsRestPending(t *testing.T) {
	out := &fakeSender{failOn: 2}
	s := NewStore(out, Options{})
	s.SelectElement(buttonSnapshot())
	_ = s.UpdateProperty(protocol.FieldText, "Buy now")
	_ = s.UpdateProperty(protocol.FieldClasses, "btn primary")

	n, err := s.ApplyChanges()
	if err == nil || n != 1 {
		t.Fatalf("ApplyChanges = %d, %v", n, err)
	}
	if got := s.Pending(); fmt.Sprint(got) != "[classes]" {
		t.Errorf("pending = %v", got)
	}
}

func TestReselectKeepsPendingDraft(t *testing.T) {
	s := NewStore(&fakeSender{}, Options{})
	s.SelectElement(buttonSnapshot())
	_ = s.UpdateProperty(protocol.FieldClasses, "btn big")

	refreshed := buttonSnapshot()
	refreshed.Text = "Buy today"
	s.SelectElement(refreshed)

	props := map[string]Property{}
	for _, p := range s.Properties() {
		props[p.Key] = p
	}
	if props[protocol.FieldClasses].Value != "btn big" || !props[protocol.FieldClasses].Pending {
		t.Errorf("pending draft lost: %+v", props[protocol.FieldClasses])
	}
	if props[protocol.FieldText].Value != "Buy today" {
		t.Errorf("applied value not refreshed: %+v", props[protocol.FieldText])
	}

	other := buttonSnapshot()
	other.Path = "body > footer > button"
	s.SelectElement(other)
	if len(s.Pending()) != 0 {
		t.Error("draft carried over to a different element")
	}
}

func TestTruncatedTextNotEditable(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		editable bool
	}{
		{"short", "Buy", true},
		{"one below limit", strings.Repeat("a", locator.MaxText-1), true},
		{"at limit", strings.Repeat("a", locator.MaxText), false},
		{"surrogate pairs at limit", strings.Repeat("\U0001F600", locator.MaxText/2), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &fakeSender{}
			s := NewStore(out, Options{})
			snap := buttonSnapshot()
			snap.Text = tt.text
			s.SelectElement(snap)

			var found bool
			for _, p := range s.Properties() {
				found = found || p.Key == protocol.FieldText
			}
			if found != tt.editable {
				t.Errorf("text offered = %v, want %v", found, tt.editable)
			}
			err := s.UpdateProperty(protocol.FieldText, "x")
			if tt.editable != (err == nil) {
				t.Errorf("UpdateProperty(text) = %v", err)
			}
			if !tt.editable && !errors.Is(err, ErrUnknownProperty) {
				t.Errorf("err = %v, want ErrUnknownProperty", err)
			}
			if err := s.UpdateProperty(protocol.FieldClasses, "btn big"); err != nil {
				t.Fatal(err)
			}
			want := 1
			if tt.editable {
				want = 2
			}
			if n, err := s.ApplyChanges(); err != nil || n != want {
				t.Fatalf("ApplyChanges = %d, %v, want %d", n, err, want)
			}
			for _, m := range out.msgs {
				if u := m.data.(protocol.UpdateElement); u.Field == protocol.FieldText && !tt.editable {
					t.Error("truncated text written back")
				}
			}
		})
	}
}

func TestHistoryUndoAfterThreePushes(t *testing.T) {
	out := &fakeSender{}
	s := NewStore(out, Options{})
	s.PushHistory("one")
	s.PushHistory("two")
	s.PushHistory("three")

	if !s.Undo() {
		t.Fatal("Undo returned false")
	}
	last := out.msgs[len(out.msgs)-1]
	if rc := last.data.(protocol.ReplaceContent); last.typ != protocol.TypeReplaceContent || rc.Content != "two" {
		t.Errorf("undo sent %s %+v", last.typ, last.data)
	}

	if !s.Redo() {
		t.Fatal("Redo returned false")
	}
	last = out.msgs[len(out.msgs)-1]
	if rc := last.data.(protocol.ReplaceContent); rc.Content != "three" {
		t.Errorf("redo restored %q", rc.Content)
	}
	if c, _ := s.Content(); c != "three" {
		t.Errorf("current = %q", c)
	}
}

func TestHistoryUndoUntilEmpty(t *testing.T) {
	out := &fakeSender{}
	s := NewStore(out, Options{})
	contents := []string{"c0", "c1", "c2", "c3"}
	for _, c := range contents {
		s.PushHistory(c)
	}
	for i := len(contents) - 2; i >= 0; i-- {
		if !s.Undo() {
			t.Fatalf("undo to %s failed", contents[i])
		}
		if c, _ := s.Content(); c != contents[i] {
			t.Fatalf("content = %q, want %q", c, contents[i])
		}
	}
	sentBefore := len(out.msgs)
	if s.Undo() {
		t.Error("undo past the first state should return false")
	}
	if len(out.msgs) != sentBefore {
		t.Error("failed undo sent a message")
	}
	if s.Redo() == false || s.Redo() == false {
		t.Error("redo after undo should succeed")
	}
}

func TestPushClearsFuture(t *testing.T) {
	s := NewStore(&fakeSender{}, Options{})
	s.PushHistory("a")
	s.PushHistory("b")
	s.Undo()
	s.PushHistory("c")
	if s.Redo() {
		t.Error("push must clear the redo stack")
	}
	if h := s.History(); h.FutureLen != 0 || h.Len != 2 {
		t.Errorf("history = %+v", h)
	}
}

func TestHistoryCap(t *testing.T) {
	tests := []struct {
		configured, want int
	}{
		{0, DefaultHistory},
		{5, MinHistory},
		{25, 25},
		{500, MaxHistory},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.configured), func(t *testing.T) {
			s := NewStore(&fakeSender{}, Options{HistoryCap: tt.configured})
			for i := 0; i < tt.want+5; i++ {
				s.PushHistory(fmt.Sprintf("state %d", i))
			}
			h := s.History()
			if h.Cap != tt.want || h.Len != tt.want {
				t.Errorf("history = %+v, want len and cap %d", h, tt.want)
			}
			for s.Undo() {
			}
			if c, _ := s.Content(); c != "state 5" {
				t.Errorf("oldest retained state = %q", c)
			}
		})
	}
}

func TestUndoSendFailureRollsBack(t *testing.T) {
	out := &fakeSender{failOn: 1}
	s := NewStore(out, Options{})
	s.PushHistory("a")
	s.PushHistory("b")

	if s.Undo() {
		t.Fatal("Undo should report false when the request cannot be sent")
	}
	if c, _ := s.Content(); c != "b" {
		t.Errorf("content = %q, want b", c)
	}
	if h := s.History(); h.Len != 2 || h.FutureLen != 0 {
		t.Errorf("history corrupted: %+v", h)
	}
}

type failingSaver struct{ calls int }

func (f *failingSaver) SavePage(context.Context, string) error {
	f.calls++
	return errors.New("503 service unavailable")
}

type recordingSaver struct{ saved []string }

func (r *recordingSaver) SavePage(_ context.Context, c string) error {
	r.saved = append(r.saved, c)
	return nil
}

func TestSave(t *testing.T) {
	saver := &recordingSaver{}
	s := NewStore(&fakeSender{}, Options{Saver: saver})
	if err := s.Save(context.Background()); !errors.Is(err, ErrNothingToSave) {
		t.Errorf("err = %v", err)
	}
	s.PushHistory("<p>hi</p>")
	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(saver.saved) != 1 || saver.saved[0] != "<p>hi</p>" {
		t.Errorf("saved = %v", saver.saved)
	}

	if err := NewStore(&fakeSender{}, Options{}).Save(context.Background()); !errors.Is(err, ErrNoCollaborator) {
		t.Errorf("unconfigured save err = %v", err)
	}
}

func TestSaveFailureLeavesStateUntouched(t *testing.T) {
	s := NewStore(&fakeSender{}, Options{Saver: &failingSaver{}})
	s.PushHistory("a")
	s.PushHistory("b")
	s.SelectElement(buttonSnapshot())
	_ = s.UpdateProperty(protocol.FieldText, "draft")
	before := s.History()

	if err := s.Save(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if s.History() != before {
		t.Error("history changed")
	}
	if fmt.Sprint(s.Pending()) != "[text]" {
		t.Error("draft changed")
	}
}

type stubRegen struct {
	markup string
	err    error
	got    RegenerateRequest
}

func (r *stubRegen) Regenerate(_ context.Context, req RegenerateRequest) (string, error) {
	r.got = req
	return r.markup, r.err
}

func TestRegenerate(t *testing.T) {
	out := &fakeSender{}
	regen := &stubRegen{markup: "<b>Buy</b>"}
	s := NewStore(out, Options{Regenerator: regen})
	const page = `<html><body><main><button id="cta" class="btn">Buy</button></main></body></html>`
	s.PushHistory(page)

	if err := s.Regenerate(context.Background(), "bolder"); !errors.Is(err, ErrNoSelection) {
		t.Errorf("err = %v", err)
	}
	s.SelectElement(buttonSnapshot())
	if err := s.Regenerate(context.Background(), "bolder"); err != nil {
		t.Fatal(err)
	}
	if regen.got.Instruction != "bolder" || regen.got.Element.ID != "cta" || regen.got.Page != page || regen.got.Element.InnerHTML != "Buy" {
		t.Errorf("request = %+v", regen.got)
	}
	last := out.msgs[len(out.msgs)-1].data.(protocol.UpdateElement)
	if last.Field != protocol.FieldHTML || last.Value != "<b>Buy</b>" {
		t.Errorf("patch = %+v", last)
	}

	regen.err = errors.New("rate limited")
	sentBefore := len(out.msgs)
	if err := s.Regenerate(context.Background(), "again"); err == nil {
		t.Fatal("expected error")
	}
	if len(out.msgs) != sentBefore {
		t.Error("failed regenerate sent a patch")
	}
	if _, ok := s.Selection(); !ok {
		t.Error("failed regenerate cleared the selection")
	}
}

func TestRegenerateSeesFullMarkup(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><body><section id="s">`)
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "<p>Paragraph number %d of the section</p>", i)
	}
	b.WriteString(`</section></body></html>`)
	page := b.String()

	out := &fakeSender{}
	regen := &stubRegen{markup: "<p>short</p>"}
	s := NewStore(out, Options{Regenerator: regen})
	s.PushHistory(page)

	snap := protocol.ElementSnapshot{
		TagName:   "section",
		ID:        "s",
		Path:      "body > section#s",
		InnerHTML: locator.Truncate(page, locator.MaxInnerHTML),
	}
	s.SelectElement(snap)
	if err := s.Regenerate(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(regen.got.Element.InnerHTML, "<p>"); got != 60 {
		t.Errorf("regenerator saw %d paragraphs, want 60", got)
	}

	s.PushHistory(`<html><body><main></main></body></html>`)
	sent := len(out.msgs)
	if err := s.Regenerate(context.Background(), ""); !errors.Is(err, ErrStaleSelection) {
		t.Errorf("err = %v, want ErrStaleSelection", err)
	}
	if len(out.msgs) != sent {
		t.Error("stale regenerate sent a patch")
	}
}

func TestHandleNotifications(t *testing.T) {
	var actions []protocol.Type
	s := NewStore(&fakeSender{}, Options{OnAction: func(a protocol.Type, el protocol.ElementSnapshot) {
		if el.ID == "cta" {
			actions = append(actions, a)
		}
	}})

	must := func(typ protocol.Type, data any) protocol.Message {
		m, err := protocol.New(typ, data)
		if err != nil {
			t.Fatal(err)
		}
		return m
	}

	s.Handle(must(protocol.TypeReady, protocol.Ready{Version: "1.0.0"}))
	if r, ok := s.Ready(); !ok || r.Version != "1.0.0" {
		t.Error("ready not recorded")
	}

	s.Handle(must(protocol.TypeElementSelected, protocol.ElementSelected{ElementSnapshot: buttonSnapshot()}))
	if snap, ok := s.Selection(); !ok || snap.ID != "cta" || s.ElementType() != TypeButton {
		t.Error("element-selected not stored")
	}

	s.Handle(must(protocol.TypeElementEditing, protocol.ElementEditing{ElementSnapshot: buttonSnapshot(), OriginalText: "Buy"}))
	if !s.Editing() {
		t.Error("element-editing not tracked")
	}

	changed := buttonSnapshot()
	changed.Text = "Buy now"
	s.Handle(must(protocol.TypeTextChanged, protocol.TextChanged{ElementSnapshot: changed, OldText: "Buy", NewText: "Buy now"}))
	if s.Editing() {
		t.Error("text-changed should end editing")
	}
	for _, p := range s.Properties() {
		if p.Key == protocol.FieldText && (p.Applied != "Buy now" || p.Pending) {
			t.Errorf("text property = %+v", p)
		}
	}

	s.Handle(must(protocol.TypeContentChanged, protocol.ContentChanged{Content: "v1"}))
	s.Handle(must(protocol.TypeContentChanged, protocol.ContentChanged{Content: "v2"}))
	if h := s.History(); h.Len != 2 {
		t.Errorf("history len = %d", h.Len)
	}

	s.Handle(must(protocol.TypeActionProps, buttonSnapshot()))
	if len(actions) != 1 || actions[0] != protocol.TypeActionProps {
		t.Errorf("actions = %v", actions)
	}

	s.Handle(protocol.Message{Type: protocol.TypeElementSelected, Data: []byte(`[1,2]`)})
	s.Handle(protocol.Message{Type: "mystery"})
	if _, ok := s.Selection(); !ok {
		t.Error("malformed message cleared the selection")
	}

	s.Handle(must(protocol.TypeElementDeselected, nil))
	if _, ok := s.Selection(); ok {
		t.Error("element-deselected not applied")
	}
}

package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/livedit/internal/editor"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/session"
	"github.com/standardbeagle/livedit/internal/store"
)

const page = `<!DOCTYPE html><html><head><title>shop</title></head><body>
<main><h1>Title</h1><p id="intro">Hello world</p><button id="cta">Buy</button></main>
</body></html>`

type fixedRegenerator string

func (f fixedRegenerator) Regenerate(context.Context, editor.RegenerateRequest) (string, error) {
	return string(f), nil
}

func newTools(t *testing.T) (*EditorTools, *session.Manager) {
	t.Helper()
	dir := t.TempDir()
	pages := store.NewPageStore(dir)
	revs, err := store.OpenRevisionLog(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { revs.Close() })

	m := session.NewManager(session.ManagerConfig{
		Pages:       pages,
		Revisions:   revs,
		Regenerator: fixedRegenerator("<strong>Fresh</strong>"),
	})
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return NewEditorTools(m, pages, revs), m
}

func resultText(res *mcp.CallToolResult) string {
	if res == nil || len(res.Content) == 0 {
		return ""
	}
	if tc, ok := res.Content[0].(*mcp.TextContent); ok {
		return tc.Text
	}
	return ""
}

func mustOK(t *testing.T, res *mcp.CallToolResult, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
	if res != nil && res.IsError {
		t.Fatalf("tool error: %s", resultText(res))
	}
}

func TestSessionTool(t *testing.T) {
	et, _ := newTools(t)
	ctx := context.Background()

	res, _, err := et.handleSession(ctx, nil, SessionInput{Action: "create", Name: "shop"})
	if res == nil || !res.IsError || err != nil {
		t.Fatalf("create without content = %v, %v", res, err)
	}

	htmlFile := filepath.Join(t.TempDir(), "index.html")
	if err := os.WriteFile(htmlFile, []byte(page), 0644); err != nil {
		t.Fatal(err)
	}
	res, out, err := et.handleSession(ctx, nil, SessionInput{Action: "create", Name: "shop", File: htmlFile})
	mustOK(t, res, err)
	if out.Session == nil || out.Session.Name != "shop" || out.Session.History != 1 {
		t.Fatalf("created = %+v", out.Session)
	}

	res, list, err := et.handleSessionList(ctx, nil, SessionListInput{})
	mustOK(t, res, err)
	if list.Count != 1 || list.Sessions[0].ID != out.Session.ID {
		t.Errorf("list = %+v", list)
	}

	res, _, err = et.handleSession(ctx, nil, SessionInput{Action: "save", Session: "shop"})
	mustOK(t, res, err)
	if _, err := et.pages.Get("shop"); err != nil {
		t.Errorf("page not saved: %v", err)
	}

	res, _, err = et.handleSession(ctx, nil, SessionInput{Action: "stop", Session: "shop"})
	mustOK(t, res, err)
	if _, err := et.manager.Get(out.Session.ID); err == nil {
		t.Error("session still open after stop")
	}

	res, reopened, err := et.handleSession(ctx, nil, SessionInput{Action: "open", Name: "shop"})
	mustOK(t, res, err)
	if reopened.Session == nil || reopened.Session.ID == out.Session.ID {
		t.Errorf("reopened = %+v", reopened.Session)
	}

	res, _, _ = et.handleSession(ctx, nil, SessionInput{Action: "rename"})
	if !strings.Contains(resultText(res), "unknown action") {
		t.Errorf("unknown action result = %q", resultText(res))
	}
}

func TestSessionResolution(t *testing.T) {
	et, m := newTools(t)
	ctx := context.Background()

	if _, res := et.session(""); res == nil {
		t.Error("expected error with no sessions")
	}
	a, err := m.Create(ctx, "a", page)
	if err != nil {
		t.Fatal(err)
	}
	if got, res := et.session(""); res != nil || got != a {
		t.Errorf("single session not picked: %v", resultText(res))
	}
	if _, err := m.Create(ctx, "b", page); err != nil {
		t.Fatal(err)
	}
	if _, res := et.session(""); res == nil {
		t.Error("expected error with two sessions")
	}
	if got, res := et.session("a"); res != nil || got != a {
		t.Error("lookup by name failed")
	}
}

func TestSelectUpdateApply(t *testing.T) {
	et, m := newTools(t)
	ctx := context.Background()
	if _, err := m.Create(ctx, "shop", page); err != nil {
		t.Fatal(err)
	}

	res, el, err := et.handleSelectElement(ctx, nil, SelectElementInput{Path: "body > main > h1"})
	mustOK(t, res, err)
	if el.Tag != "h1" || el.Type != string(editor.TypeHeading) {
		t.Fatalf("selected = %+v", el)
	}
	var text string
	for _, p := range el.Properties {
		if p.Key == protocol.FieldText {
			text = p.Value
		}
	}
	if text != "Title" {
		t.Errorf("text property = %q", text)
	}

	res, draft, err := et.handleUpdateElement(ctx, nil, UpdateElementInput{Key: protocol.FieldText, Value: "Welcome"})
	mustOK(t, res, err)
	if draft.Applied != 0 || draft.Element == nil {
		t.Errorf("draft = %+v", draft)
	}

	res, applied, err := et.handleApplyChanges(ctx, nil, ApplyChangesInput{})
	mustOK(t, res, err)
	if applied.Applied != 1 {
		t.Errorf("applied = %d", applied.Applied)
	}

	res, doc, err := et.handlePageContent(ctx, nil, PageContentInput{})
	mustOK(t, res, err)
	if !strings.Contains(doc.Content, "<h1>Welcome</h1>") {
		t.Errorf("document = %q", doc.Content)
	}

	res, hist, err := et.handleHistory(ctx, nil, HistoryInput{})
	mustOK(t, res, err)
	if hist.Len != 2 || !hist.CanUndo {
		t.Errorf("history = %+v", hist)
	}

	res, undone, err := et.handleHistory(ctx, nil, HistoryInput{Action: "undo"})
	mustOK(t, res, err)
	if !undone.Changed || !undone.CanRedo {
		t.Errorf("undo = %+v", undone)
	}
	res, prev, err := et.handlePageContent(ctx, nil, PageContentInput{Source: "history"})
	mustOK(t, res, err)
	if !strings.Contains(prev.Content, "Title") {
		t.Errorf("history content = %q", prev.Content)
	}
}

func TestSelectMissingElement(t *testing.T) {
	et, m := newTools(t)
	et.wait = 50 * time.Millisecond
	if _, err := m.Create(context.Background(), "shop", page); err != nil {
		t.Fatal(err)
	}
	res, _, _ := et.handleSelectElement(context.Background(), nil, SelectElementInput{Path: "body > nav#missing"})
	if res == nil || !res.IsError {
		t.Fatal("expected error for missing element")
	}
	res, _, _ = et.handleSelectElement(context.Background(), nil, SelectElementInput{})
	if !strings.Contains(resultText(res), "path required") {
		t.Errorf("result = %q", resultText(res))
	}
}

func TestUpdateWithoutSelection(t *testing.T) {
	et, m := newTools(t)
	if _, err := m.Create(context.Background(), "shop", page); err != nil {
		t.Fatal(err)
	}
	res, _, _ := et.handleUpdateElement(context.Background(), nil, UpdateElementInput{Key: "text", Value: "x"})
	if res == nil || !res.IsError {
		t.Error("expected error without a selection")
	}
}

func TestRegenerate(t *testing.T) {
	et, m := newTools(t)
	ctx := context.Background()
	sess, err := m.Create(ctx, "shop", page)
	if err != nil {
		t.Fatal(err)
	}
	res, _, err := et.handleSelectElement(ctx, nil, SelectElementInput{Path: "body > main > p#intro"})
	mustOK(t, res, err)

	res, _, err = et.handleRegenerate(ctx, nil, RegenerateInput{Instruction: "punchier"})
	mustOK(t, res, err)

	content, err := sess.Content()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "<strong>Fresh</strong>") {
		t.Errorf("document = %q", content)
	}
}

func TestPagesTool(t *testing.T) {
	et, m := newTools(t)
	ctx := context.Background()

	res, out, err := et.handlePages(ctx, nil, PagesInput{Action: "list"})
	mustOK(t, res, err)
	if out.Count != 0 {
		t.Errorf("empty store lists %v", out.Names)
	}

	sess, err := m.Create(ctx, "landing", page)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := sess.Save(ctx); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name    string
		input   PagesInput
		wantErr string
		check   func(t *testing.T, out PagesOutput)
	}{
		{"list", PagesInput{Action: "list"}, "", func(t *testing.T, out PagesOutput) {
			if out.Count != 1 || out.Names[0] != "landing" {
				t.Errorf("names = %v", out.Names)
			}
		}},
		{"get", PagesInput{Action: "get", Name: "landing"}, "", func(t *testing.T, out PagesOutput) {
			if out.Page == nil || out.Page.Revision != 2 || !strings.Contains(out.Page.Content, "Hello world") {
				t.Errorf("page = %+v", out.Page)
			}
		}},
		{"revisions", PagesInput{Action: "revisions", Name: "landing"}, "", func(t *testing.T, out PagesOutput) {
			if out.Count != 2 || out.Revisions[0].Revision != 2 {
				t.Errorf("revisions = %+v", out.Revisions)
			}
		}},
		{"revision", PagesInput{Action: "revision", Name: "landing", Revision: 1}, "", func(t *testing.T, out PagesOutput) {
			if out.Page == nil || out.Page.Revision != 1 {
				t.Errorf("revision = %+v", out.Page)
			}
		}},
		{"get missing", PagesInput{Action: "get", Name: "nope"}, "not found", nil},
		{"get without name", PagesInput{Action: "get"}, "name required", nil},
		{"revision missing", PagesInput{Action: "revision", Name: "landing", Revision: 9}, "not found", nil},
		{"unknown", PagesInput{Action: "purge"}, "unknown action", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, out, err := et.handlePages(ctx, nil, tt.input)
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantErr != "" {
				if res == nil || !strings.Contains(resultText(res), tt.wantErr) {
					t.Errorf("result = %q, want %q", resultText(res), tt.wantErr)
				}
				return
			}
			mustOK(t, res, nil)
			tt.check(t, out)
		})
	}

	res, _, err = et.handlePages(ctx, nil, PagesInput{Action: "delete", Name: "landing"})
	mustOK(t, res, err)
	if _, err := et.pages.Get("landing"); err == nil {
		t.Error("page survived delete")
	}
}

func TestRegisterAddsTools(t *testing.T) {
	et, _ := newTools(t)
	server := mcp.NewServer(&mcp.Implementation{Name: "livedit-test", Version: "0"}, nil)
	Register(server, et)
}

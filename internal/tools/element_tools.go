package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/livedit/internal/editor"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/session"
)

// SelectElementInput defines input for select_element.
type SelectElementInput struct {
	Session string `json:"session,omitempty" jsonschema:"Session ID or name (optional with one open session)"`
	Path    string `json:"path" jsonschema:"Element path, e.g. 'body > main > p.lead:nth-of-type(2)'"`
}

// PropertyOutput is one editable property of the selection.
type PropertyOutput struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Applied string `json:"applied"`
	Pending bool   `json:"pending,omitempty"`
}

// ElementOutput describes the selected element.
type ElementOutput struct {
	Path       string           `json:"path"`
	Tag        string           `json:"tag"`
	Type       string           `json:"type"`
	Text       string           `json:"text,omitempty"`
	Properties []PropertyOutput `json:"properties"`
}

// UpdateElementInput defines input for update_element.
type UpdateElementInput struct {
	Session string `json:"session,omitempty" jsonschema:"Session ID or name (optional with one open session)"`
	Key     string `json:"key" jsonschema:"Property key, e.g. text, classes, href, src, alt, disabled"`
	Value   string `json:"value" jsonschema:"New value"`
	Apply   bool   `json:"apply,omitempty" jsonschema:"Apply immediately instead of keeping a draft"`
}

// ApplyChangesInput defines input for apply_changes.
type ApplyChangesInput struct {
	Session string `json:"session,omitempty" jsonschema:"Session ID or name (optional with one open session)"`
	Discard bool   `json:"discard,omitempty" jsonschema:"Discard pending drafts instead of applying them"`
}

// ApplyChangesOutput defines output for apply_changes.
type ApplyChangesOutput struct {
	Applied   int            `json:"applied"`
	Discarded bool           `json:"discarded,omitempty"`
	Element   *ElementOutput `json:"element,omitempty"`
}

// HistoryInput defines input for history.
type HistoryInput struct {
	Session string `json:"session,omitempty" jsonschema:"Session ID or name (optional with one open session)"`
	Action  string `json:"action,omitempty" jsonschema:"Action: status (default), undo, redo"`
}

// HistoryOutput defines output for history.
type HistoryOutput struct {
	Changed bool `json:"changed"`
	Len     int  `json:"len"`
	Future  int  `json:"future"`
	Cap     int  `json:"cap"`
	CanUndo bool `json:"can_undo"`
	CanRedo bool `json:"can_redo"`
}

// PageContentInput defines input for page_content.
type PageContentInput struct {
	Session string `json:"session,omitempty" jsonschema:"Session ID or name (optional with one open session)"`
	Source  string `json:"source,omitempty" jsonschema:"Source: document (default, the live page) or history (the host's current state)"`
}

// PageContentOutput defines output for page_content.
type PageContentOutput struct {
	Content string `json:"content"`
	Length  int    `json:"length"`
}

// RegenerateInput defines input for regenerate.
type RegenerateInput struct {
	Session     string `json:"session,omitempty" jsonschema:"Session ID or name (optional with one open session)"`
	Instruction string `json:"instruction,omitempty" jsonschema:"How to rewrite the selected element"`
}

// RegisterElementTools adds the selection and editing tools to the server.
func RegisterElementTools(server *mcp.Server, et *EditorTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "select_element",
		Description: `Select an element in a session by path and return its editable properties.
Example: select_element {path: "body > main > h1"} → {type: "heading", properties: [{key: "text", value: "Welcome"}, ...]}`,
	}, et.handleSelectElement)

	mcp.AddTool(server, &mcp.Tool{
		Name: "update_element",
		Description: `Change one property of the selected element. The change stays a draft until apply_changes unless apply is true.
Example: update_element {key: "text", value: "Order now", apply: true}`,
	}, et.handleUpdateElement)

	mcp.AddTool(server, &mcp.Tool{
		Name: "apply_changes",
		Description: `Apply (or discard) every pending property draft of the selected element.
Example: apply_changes {} → {applied: 2}`,
	}, et.handleApplyChanges)

	mcp.AddTool(server, &mcp.Tool{
		Name: "history",
		Description: `Inspect or move through a session's undo history.
Examples:
  history {} → {len: 4, can_undo: true}
  history {action: "undo"}
  history {action: "redo"}`,
	}, et.handleHistory)

	mcp.AddTool(server, &mcp.Tool{
		Name: "page_content",
		Description: `Return a session's page HTML without editor artifacts.
Example: page_content {session: "landing"}`,
	}, et.handlePageContent)

	mcp.AddTool(server, &mcp.Tool{
		Name: "regenerate",
		Description: `Rewrite the selected element's markup with the configured AI assistant.
Example: regenerate {instruction: "make it shorter and friendlier"}`,
	}, et.handleRegenerate)
}

func element(st *editor.Store) *ElementOutput {
	snap, ok := st.Selection()
	if !ok {
		return nil
	}
	out := &ElementOutput{
		Path: snap.Path,
		Tag:  snap.TagName,
		Type: string(st.ElementType()),
		Text: snap.Text,
	}
	for _, p := range st.Properties() {
		out.Properties = append(out.Properties, PropertyOutput{
			Key:     p.Key,
			Value:   p.Value,
			Applied: p.Applied,
			Pending: p.Pending,
		})
	}
	return out
}

func (et *EditorTools) handleSelectElement(ctx context.Context, req *mcp.CallToolRequest, input SelectElementInput) (*mcp.CallToolResult, ElementOutput, error) {
	emptyOutput := ElementOutput{}
	if input.Path == "" {
		return errorResult("path required"), emptyOutput, nil
	}
	sess, errRes := et.session(input.Session)
	if errRes != nil {
		return errRes, emptyOutput, nil
	}

	st := sess.Store()
	_, err := et.await(ctx, sess, func() error { return st.SelectByPath(input.Path) }, protocol.TypeElementSelected, 1)
	if errors.Is(err, context.DeadlineExceeded) {
		return errorResult(fmt.Sprintf("no element at %q", input.Path)), emptyOutput, nil
	}
	if err != nil {
		return errorResult(fmt.Sprintf("select: %v", err)), emptyOutput, nil
	}

	el := element(st)
	if el == nil {
		return errorResult("selection did not reach the editor"), emptyOutput, nil
	}
	return nil, *el, nil
}

func (et *EditorTools) handleUpdateElement(ctx context.Context, req *mcp.CallToolRequest, input UpdateElementInput) (*mcp.CallToolResult, ApplyChangesOutput, error) {
	emptyOutput := ApplyChangesOutput{}
	sess, errRes := et.session(input.Session)
	if errRes != nil {
		return errRes, emptyOutput, nil
	}
	st := sess.Store()
	if err := st.UpdateProperty(input.Key, input.Value); err != nil {
		return errorResult(fmt.Sprintf("update %s: %v", input.Key, err)), emptyOutput, nil
	}
	if !input.Apply {
		return nil, ApplyChangesOutput{Element: element(st)}, nil
	}
	return et.apply(ctx, sess)
}

func (et *EditorTools) handleApplyChanges(ctx context.Context, req *mcp.CallToolRequest, input ApplyChangesInput) (*mcp.CallToolResult, ApplyChangesOutput, error) {
	emptyOutput := ApplyChangesOutput{}
	sess, errRes := et.session(input.Session)
	if errRes != nil {
		return errRes, emptyOutput, nil
	}
	st := sess.Store()
	if input.Discard {
		changed := st.DiscardChanges()
		return nil, ApplyChangesOutput{Discarded: changed, Element: element(st)}, nil
	}
	return et.apply(ctx, sess)
}

func (et *EditorTools) apply(ctx context.Context, sess *session.Session) (*mcp.CallToolResult, ApplyChangesOutput, error) {
	st := sess.Store()
	pending := len(st.Pending())
	if pending == 0 {
		return nil, ApplyChangesOutput{Element: element(st)}, nil
	}

	var applied int
	_, err := et.await(ctx, sess, func() error {
		var err error
		applied, err = st.ApplyChanges()
		return err
	}, protocol.TypeContentChanged, pending)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return errorResult(fmt.Sprintf("apply: %v (%d of %d sent)", err, applied, pending)), ApplyChangesOutput{Applied: applied}, nil
	}
	return nil, ApplyChangesOutput{Applied: applied, Element: element(st)}, nil
}

func (et *EditorTools) handleHistory(ctx context.Context, req *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	emptyOutput := HistoryOutput{}
	sess, errRes := et.session(input.Session)
	if errRes != nil {
		return errRes, emptyOutput, nil
	}
	st := sess.Store()

	var changed bool
	switch input.Action {
	case "", "status":
	case "undo":
		changed = st.Undo()
	case "redo":
		changed = st.Redo()
	default:
		return errorResult(fmt.Sprintf("unknown action: %s (use: status, undo, redo)", input.Action)), emptyOutput, nil
	}

	h := st.History()
	return nil, HistoryOutput{
		Changed: changed,
		Len:     h.Len,
		Future:  h.FutureLen,
		Cap:     h.Cap,
		CanUndo: h.CanUndo,
		CanRedo: h.CanRedo,
	}, nil
}

func (et *EditorTools) handlePageContent(ctx context.Context, req *mcp.CallToolRequest, input PageContentInput) (*mcp.CallToolResult, PageContentOutput, error) {
	emptyOutput := PageContentOutput{}
	sess, errRes := et.session(input.Session)
	if errRes != nil {
		return errRes, emptyOutput, nil
	}

	var content string
	switch input.Source {
	case "", "document":
		c, err := sess.Content()
		if err != nil {
			return errorResult(err.Error()), emptyOutput, nil
		}
		content = c
	case "history":
		c, ok := sess.Store().Content()
		if !ok {
			return errorResult("history is empty"), emptyOutput, nil
		}
		content = c
	default:
		return errorResult(fmt.Sprintf("unknown source: %s (use: document, history)", input.Source)), emptyOutput, nil
	}
	return nil, PageContentOutput{Content: content, Length: len(content)}, nil
}

func (et *EditorTools) handleRegenerate(ctx context.Context, req *mcp.CallToolRequest, input RegenerateInput) (*mcp.CallToolResult, ElementOutput, error) {
	emptyOutput := ElementOutput{}
	sess, errRes := et.session(input.Session)
	if errRes != nil {
		return errRes, emptyOutput, nil
	}
	st := sess.Store()
	_, err := et.await(ctx, sess, func() error {
		return st.Regenerate(ctx, input.Instruction)
	}, protocol.TypeContentChanged, 1)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return errorResult(fmt.Sprintf("regenerate: %v", err)), emptyOutput, nil
	}
	el := element(st)
	if el == nil {
		return errorResult("selection lost"), emptyOutput, nil
	}
	return nil, *el, nil
}

package tools

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/livedit/internal/session"
)

// SessionListInput defines input for the session_list tool.
type SessionListInput struct{}

// SessionEntry represents a session in the list.
type SessionEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt string    `json:"created_at"`
	Selected  string    `json:"selected,omitempty"`
	Editing   bool      `json:"editing,omitempty"`
	Pending   []string  `json:"pending,omitempty"`
	History   int       `json:"history"`
	CanUndo   bool      `json:"can_undo,omitempty"`
	CanRedo   bool      `json:"can_redo,omitempty"`
}

// SessionListOutput defines output for session_list.
type SessionListOutput struct {
	Sessions []SessionEntry `json:"sessions"`
	Count    int            `json:"count"`
}

// SessionInput defines input for the session tool.
type SessionInput struct {
	Action  string `json:"action" jsonschema:"Action: create, open, stop, save"`
	Session string `json:"session,omitempty" jsonschema:"Session ID or name (required for stop, save)"`
	Name    string `json:"name,omitempty" jsonschema:"Page name (create, open)"`
	Content string `json:"content,omitempty" jsonschema:"Page HTML (create; or use file)"`
	File    string `json:"file,omitempty" jsonschema:"Path of an HTML file to load (create)"`
}

// SessionOutput defines output for the session tool.
type SessionOutput struct {
	Success bool          `json:"success"`
	Session *SessionEntry `json:"session,omitempty"`
	Message string        `json:"message,omitempty"`
}

func entry(sess *session.Session) SessionEntry {
	st := sess.Store()
	h := st.History()
	e := SessionEntry{
		ID:        sess.ID,
		Name:      sess.Name,
		CreatedAt: sess.CreatedAt.Format(time.RFC3339),
		Editing:   st.Editing(),
		Pending:   st.Pending(),
		History:   h.Len,
		CanUndo:   h.CanUndo,
		CanRedo:   h.CanRedo,
	}
	if snap, ok := st.Selection(); ok {
		e.Selected = snap.Path
	}
	return e
}

// RegisterSessionTools adds session_list and session to the server.
func RegisterSessionTools(server *mcp.Server, et *EditorTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "session_list",
		Description: `List open live editing sessions with their selection, pending edits and history depth.
Example: session_list {} → {sessions: [{id: "…", name: "landing", selected: "body > main > h1", history: 3}]}`,
	}, et.handleSessionList)

	mcp.AddTool(server, &mcp.Tool{
		Name: "session",
		Description: `Open, stop and save live editing sessions.

Actions:
  create: Start a session from HTML (content) or an HTML file (file)
  open: Start a session from the saved version of a page (name)
  stop: Stop a session
  save: Persist the session's current content as the page's next revision

Examples:
  session {action: "create", name: "landing", file: "site/index.html"}
  session {action: "open", name: "landing"}
  session {action: "save", session: "landing"}`,
	}, et.handleSession)
}

func (et *EditorTools) handleSessionList(ctx context.Context, req *mcp.CallToolRequest, input SessionListInput) (*mcp.CallToolResult, SessionListOutput, error) {
	list := et.manager.List()
	out := SessionListOutput{Sessions: make([]SessionEntry, 0, len(list)), Count: len(list)}
	for _, sess := range list {
		out.Sessions = append(out.Sessions, entry(sess))
	}
	return nil, out, nil
}

func (et *EditorTools) handleSession(ctx context.Context, req *mcp.CallToolRequest, input SessionInput) (*mcp.CallToolResult, SessionOutput, error) {
	emptyOutput := SessionOutput{}

	switch input.Action {
	case "create":
		content := input.Content
		if input.File != "" {
			data, err := os.ReadFile(input.File)
			if err != nil {
				return errorResult(fmt.Sprintf("read %s: %v", input.File, err)), emptyOutput, nil
			}
			content = string(data)
		}
		if content == "" {
			return errorResult("content or file required"), emptyOutput, nil
		}
		sess, err := et.manager.Create(ctx, input.Name, content)
		if err != nil {
			return errorResult(fmt.Sprintf("create session: %v", err)), emptyOutput, nil
		}
		e := entry(sess)
		return nil, SessionOutput{Success: true, Session: &e}, nil

	case "open":
		if input.Name == "" {
			return errorResult("name required"), emptyOutput, nil
		}
		sess, err := et.manager.Open(ctx, input.Name)
		if err != nil {
			return errorResult(fmt.Sprintf("open %s: %v", input.Name, err)), emptyOutput, nil
		}
		e := entry(sess)
		return nil, SessionOutput{Success: true, Session: &e}, nil

	case "stop":
		if input.Session == "" {
			return errorResult("session required"), emptyOutput, nil
		}
		sess, errRes := et.session(input.Session)
		if errRes != nil {
			return errRes, emptyOutput, nil
		}
		if err := et.manager.Stop(ctx, sess.ID); err != nil {
			return errorResult(fmt.Sprintf("stop %s: %v", input.Session, err)), emptyOutput, nil
		}
		return nil, SessionOutput{Success: true, Message: "stopped"}, nil

	case "save":
		sess, errRes := et.session(input.Session)
		if errRes != nil {
			return errRes, emptyOutput, nil
		}
		if err := sess.Save(ctx); err != nil {
			return errorResult(fmt.Sprintf("save: %v", err)), emptyOutput, nil
		}
		e := entry(sess)
		return nil, SessionOutput{Success: true, Session: &e, Message: "saved"}, nil

	default:
		return errorResult(fmt.Sprintf("unknown action: %s (use: create, open, stop, save)", input.Action)), emptyOutput, nil
	}
}

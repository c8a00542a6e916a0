// Package tools exposes live editing sessions as MCP tools.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/session"
	"github.com/standardbeagle/livedit/internal/store"
)

// DefaultWait bounds how long a tool waits for the embedded document to
// answer a command.
const DefaultWait = 2 * time.Second

// EditorTools holds what the tool handlers operate on.
type EditorTools struct {
	manager   *session.Manager
	pages     *store.PageStore
	revisions *store.RevisionLog
	wait      time.Duration
}

// NewEditorTools creates the tool set. pages and revisions may be nil.
func NewEditorTools(m *session.Manager, pages *store.PageStore, revisions *store.RevisionLog) *EditorTools {
	return &EditorTools{manager: m, pages: pages, revisions: revisions, wait: DefaultWait}
}

// Register adds every tool to the server.
func Register(server *mcp.Server, et *EditorTools) {
	RegisterSessionTools(server, et)
	RegisterElementTools(server, et)
	RegisterPageTool(server, et)
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

func (et *EditorTools) session(id string) (*session.Session, *mcp.CallToolResult) {
	if id == "" {
		list := et.manager.List()
		if len(list) == 1 {
			return list[0], nil
		}
		return nil, errorResult(fmt.Sprintf("session required (%d sessions open)", len(list)))
	}
	sess, err := et.manager.Get(id)
	if err != nil {
		return nil, errorResult(fmt.Sprintf("session %q: %v", id, err))
	}
	return sess, nil
}

// await runs send and waits until n embedded→host messages of type want
// arrive or the wait elapses. The wait starts once send returns. It returns
// how many arrived.
func (et *EditorTools) await(ctx context.Context, sess *session.Session, send func() error, want protocol.Type, n int) (int, error) {
	ch, done := sess.SubscribeHost(0)
	defer done()

	if err := send(); err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, et.wait)
	defer cancel()
	got := 0
	for got < n {
		select {
		case m, ok := <-ch:
			if !ok {
				return got, session.ErrStopped
			}
			if m.Type == want {
				got++
			}
		case <-ctx.Done():
			return got, ctx.Err()
		}
	}
	return got, nil
}


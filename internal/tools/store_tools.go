package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/standardbeagle/livedit/internal/store"
)

// DefaultRevisionLimit caps the revisions action when no limit is given.
const DefaultRevisionLimit = 20

// PagesInput represents input for the pages tool.
type PagesInput struct {
	Action   string `json:"action" jsonschema:"Action: list, get, delete, revisions, revision"`
	Name     string `json:"name,omitempty" jsonschema:"Page name or URL (required except for list)"`
	Revision int    `json:"revision,omitempty" jsonschema:"Revision number (required for revision)"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum revisions to return (default 20)"`
}

// PagesOutput represents output from the pages tool.
type PagesOutput struct {
	Success   bool             `json:"success"`
	Names     []string         `json:"names,omitempty"`
	Page      *PageOutput      `json:"page,omitempty"`
	Revisions []RevisionOutput `json:"revisions,omitempty"`
	Count     int              `json:"count,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// PageOutput represents one saved page or revision.
type PageOutput struct {
	Name      string         `json:"name"`
	Revision  int            `json:"revision"`
	Content   string         `json:"content,omitempty"`
	Source    string         `json:"source,omitempty"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// RevisionOutput summarises a logged revision.
type RevisionOutput struct {
	Revision  int    `json:"revision"`
	Source    string `json:"source,omitempty"`
	CreatedAt string `json:"created_at"`
}

// RegisterPageTool registers the pages MCP tool with the server.
func RegisterPageTool(server *mcp.Server, et *EditorTools) {
	mcp.AddTool(server, &mcp.Tool{
		Name: "pages",
		Description: `Saved pages and their revision history.

Actions:
  list: Names of all saved pages
  get: Latest saved content of a page
  delete: Remove a saved page (its revision history is kept)
  revisions: Logged revisions of a page, newest first
  revision: Content of one logged revision

Examples:
  pages {action: "list"}
  pages {action: "get", name: "landing"}
  pages {action: "revisions", name: "http://localhost:3000/pricing", limit: 5}
  pages {action: "revision", name: "landing", revision: 3}

Pages are written whenever a session saves. Open a saved page for editing with
session {action: "open", name: "..."}.`,
	}, et.handlePages)
}

func (et *EditorTools) handlePages(ctx context.Context, req *mcp.CallToolRequest, input PagesInput) (*mcp.CallToolResult, PagesOutput, error) {
	emptyOutput := PagesOutput{}
	if et.pages == nil {
		return errorResult("page store not configured"), emptyOutput, nil
	}

	switch input.Action {
	case "list":
		names, err := et.pages.List()
		if err != nil {
			return errorResult(fmt.Sprintf("failed to list pages: %v", err)), emptyOutput, nil
		}
		return nil, PagesOutput{Success: true, Names: names, Count: len(names)}, nil

	case "get":
		if input.Name == "" {
			return errorResult("name required for get"), emptyOutput, nil
		}
		page, err := et.pages.Get(input.Name)
		if err != nil {
			return pageError(input.Name, err), emptyOutput, nil
		}
		return nil, PagesOutput{
			Success: true,
			Page: &PageOutput{
				Name:      page.Name,
				Revision:  page.Revision,
				Content:   page.Content,
				CreatedAt: page.CreatedAt.Format(time.RFC3339),
				UpdatedAt: page.UpdatedAt.Format(time.RFC3339),
				Metadata:  page.Metadata,
			},
		}, nil

	case "delete":
		if input.Name == "" {
			return errorResult("name required for delete"), emptyOutput, nil
		}
		if err := et.pages.Delete(input.Name); err != nil {
			return pageError(input.Name, err), emptyOutput, nil
		}
		return nil, PagesOutput{Success: true, Message: fmt.Sprintf("Deleted page %q", input.Name)}, nil

	case "revisions":
		if input.Name == "" {
			return errorResult("name required for revisions"), emptyOutput, nil
		}
		if et.revisions == nil {
			return errorResult("revision log disabled"), emptyOutput, nil
		}
		limit := input.Limit
		if limit <= 0 {
			limit = DefaultRevisionLimit
		}
		revs, err := et.revisions.List(ctx, store.NormalizeName(input.Name), limit)
		if err != nil {
			return errorResult(fmt.Sprintf("failed to list revisions: %v", err)), emptyOutput, nil
		}
		out := make([]RevisionOutput, 0, len(revs))
		for _, r := range revs {
			out = append(out, RevisionOutput{
				Revision:  r.Revision,
				Source:    r.Source,
				CreatedAt: r.CreatedAt.Format(time.RFC3339),
			})
		}
		return nil, PagesOutput{Success: true, Revisions: out, Count: len(out)}, nil

	case "revision":
		if input.Name == "" || input.Revision <= 0 {
			return errorResult("name and revision required for revision"), emptyOutput, nil
		}
		if et.revisions == nil {
			return errorResult("revision log disabled"), emptyOutput, nil
		}
		r, err := et.revisions.Get(ctx, store.NormalizeName(input.Name), input.Revision)
		if err != nil {
			return pageError(fmt.Sprintf("%s@%d", input.Name, input.Revision), err), emptyOutput, nil
		}
		return nil, PagesOutput{
			Success: true,
			Page: &PageOutput{
				Name:      r.Page,
				Revision:  r.Revision,
				Content:   r.Content,
				Source:    r.Source,
				CreatedAt: r.CreatedAt.Format(time.RFC3339),
			},
		}, nil

	default:
		return errorResult(fmt.Sprintf("unknown action: %s (use: list, get, delete, revisions, revision)", input.Action)), emptyOutput, nil
	}
}

func pageError(name string, err error) *mcp.CallToolResult {
	if errors.Is(err, store.ErrNotFound) {
		return errorResult(fmt.Sprintf("page %q not found", name))
	}
	return errorResult(fmt.Sprintf("page %q: %v", name, err))
}

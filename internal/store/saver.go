package store

import (
	"context"
	"fmt"

	"github.com/standardbeagle/livedit/internal/debug"
)

var log = debug.For("store")

// Saver persists one page's content to a PageStore and, when set, records
// each save in a RevisionLog. It satisfies editor.PageSaver.
type Saver struct {
	Pages     *PageStore
	Revisions *RevisionLog
	Name      string
	Source    string
}

// SavePage stores content as the next revision of the page.
func (s *Saver) SavePage(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	page, err := s.Pages.Save(s.Name, content, nil)
	if err != nil {
		return err
	}
	log.Infof("saved page %s revision %d", page.Name, page.Revision)

	if s.Revisions == nil {
		return nil
	}
	_, err = s.Revisions.Append(ctx, Revision{
		Page:     page.Name,
		Revision: page.Revision,
		Content:  content,
		Source:   s.Source,
	})
	if err != nil {
		return fmt.Errorf("page saved but revision not recorded: %w", err)
	}
	return nil
}

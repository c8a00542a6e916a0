package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/standardbeagle/livedit/internal/config"
	"github.com/standardbeagle/livedit/internal/store"
)

// AutoStarter opens the pages a config marks for autostart.
type AutoStarter struct {
	config  *config.Config
	manager *Manager

	// Track what we started so we can clean up
	started []string
	mu      sync.Mutex
}

// NewAutoStarter creates a new AutoStarter.
func NewAutoStarter(cfg *config.Config, m *Manager) *AutoStarter {
	return &AutoStarter{config: cfg, manager: m}
}

// Start opens every autostart page. A page with saved content resumes from
// the saved version; otherwise its file is read.
func (a *AutoStarter) Start(ctx context.Context) error {
	var errs []string

	pages := a.config.GetAutostartPages()
	names := make([]string, 0, len(pages))
	for name := range pages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := a.startPage(ctx, name, pages[name]); err != nil {
			errs = append(errs, fmt.Sprintf("page %s: %v", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("autostart errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (a *AutoStarter) startPage(ctx context.Context, name string, page *config.PageConfig) error {
	if _, err := a.manager.Get(name); err == nil {
		// Already open
		return nil
	}

	sess, err := a.manager.Open(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		data, rerr := os.ReadFile(a.config.PagePath(page))
		if rerr != nil {
			return rerr
		}
		sess, err = a.manager.Create(ctx, name, string(data))
	}
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.started = append(a.started, sess.ID)
	a.mu.Unlock()
	return nil
}

// Stop stops all auto-started sessions.
func (a *AutoStarter) Stop(ctx context.Context) error {
	a.mu.Lock()
	ids := a.started
	a.started = nil
	a.mu.Unlock()

	var errs []string
	for _, id := range ids {
		if err := a.manager.Stop(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			errs = append(errs, fmt.Sprintf("session %s: %v", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("stop errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Started returns the IDs of sessions that were auto-started.
func (a *AutoStarter) Started() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	result := make([]string, len(a.started))
	copy(result, a.started)
	return result
}

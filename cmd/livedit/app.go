package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/standardbeagle/livedit/internal/assistant"
	"github.com/standardbeagle/livedit/internal/config"
	"github.com/standardbeagle/livedit/internal/debug"
	"github.com/standardbeagle/livedit/internal/dom"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/selection"
	"github.com/standardbeagle/livedit/internal/session"
	"github.com/standardbeagle/livedit/internal/store"
)

var log = debug.For("main")

// regenerateTimeout bounds a toolbar-triggered regenerate call.
const regenerateTimeout = 90 * time.Second

// app is everything a command needs to run sessions.
type app struct {
	cfg       *config.Config
	pages     *store.PageStore
	revisions *store.RevisionLog
	manager   *session.Manager
}

func projectDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("dir")
	if dir != "" {
		return filepath.Abs(dir)
	}
	return os.Getwd()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, err := projectDir(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	if cfg.Dir == "" {
		cfg.Dir = dir
	}
	return cfg, nil
}

// revisionPath returns the revision log location, or "" when disabled.
func revisionPath(cfg *config.Config, pages *store.PageStore) string {
	switch p := cfg.Store.RevisionsDB; {
	case p == "off":
		return ""
	case p == "":
		return filepath.Join(pages.Dir(), store.RevisionDB)
	case filepath.IsAbs(p):
		return p
	default:
		return filepath.Join(cfg.Dir, p)
	}
}

func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, pages: store.NewPageStore(cfg.StoreDir())}

	if path := revisionPath(cfg, a.pages); path != "" {
		revs, err := store.OpenRevisionLog(path)
		if err != nil {
			return nil, fmt.Errorf("revision log: %w", err)
		}
		a.revisions = revs
	}

	regen, err := assistant.New(cfg.Assistant)
	if err != nil {
		if errors.Is(err, assistant.ErrNoAPIKey) {
			log.Warnf("regenerate disabled: %v", err)
		} else {
			a.close()
			return nil, err
		}
	}

	a.manager = session.NewManager(session.ManagerConfig{
		Selection: selection.Config{
			EditableTags: cfg.Editor.EditableTags,
			BlurDelay:    cfg.BlurDelay(),
			ToolbarSize:  dom.Size{Width: cfg.Toolbar.Width, Height: cfg.Toolbar.Height},
		},
		HistoryCap:  cfg.Editor.HistoryCap,
		Pages:       a.pages,
		Revisions:   a.revisions,
		Regenerator: regen,
		OnAction:    onAction,
	})
	return a, nil
}

// onAction handles toolbar buttons clicked in the embedded page. Regenerate
// runs the assistant; the other actions are for an attached host editor.
func onAction(s *session.Session, action protocol.Type, el protocol.ElementSnapshot) {
	switch action {
	case protocol.TypeActionRegenerate:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), regenerateTimeout)
			defer cancel()
			if err := s.Store().Regenerate(ctx, ""); err != nil {
				log.Warnf("session %s: %v", s.ID, err)
			}
		}()
	default:
		log.Debugf("session %s: %s on %s", s.ID, action, el.Path)
	}
}

func (a *app) close() {
	if a.revisions != nil {
		if err := a.revisions.Close(); err != nil {
			log.Warnf("close revision log: %v", err)
		}
	}
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.manager.Shutdown(ctx); err != nil {
		log.Warnf("session shutdown: %v", err)
	}
	a.close()
}

// parsePageFlags turns name=file pairs into page configs.
func parsePageFlags(values []string) (map[string]*config.PageConfig, error) {
	out := make(map[string]*config.PageConfig, len(values))
	for _, v := range values {
		name, file, ok := strings.Cut(v, "=")
		if !ok {
			file = v
			name = strings.TrimSuffix(filepath.Base(v), filepath.Ext(v))
		}
		if name == "" || file == "" {
			return nil, fmt.Errorf("invalid --page %q (use name=file)", v)
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			return nil, err
		}
		file = abs
		out[name] = &config.PageConfig{File: file, Autostart: true}
	}
	return out, nil
}

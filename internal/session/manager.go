package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/standardbeagle/livedit/internal/editor"
	"github.com/standardbeagle/livedit/internal/protocol"
	"github.com/standardbeagle/livedit/internal/selection"
	"github.com/standardbeagle/livedit/internal/store"
)

var (
	// ErrSessionNotFound is returned when a session ID is not found.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionAmbiguous is returned when a name lookup matches multiple sessions.
	ErrSessionAmbiguous = errors.New("session name is ambiguous - multiple matches")
	// ErrShuttingDown is returned by Create after Shutdown.
	ErrShuttingDown = errors.New("session manager is shutting down")
)

// ManagerConfig holds what every session of a manager shares.
type ManagerConfig struct {
	Selection   selection.Config
	HistoryCap  int
	Pages       *store.PageStore
	Revisions   *store.RevisionLog
	Regenerator editor.Regenerator
	OnAction    func(s *Session, action protocol.Type, element protocol.ElementSnapshot)
}

// Manager manages live sessions with lock-free access.
type Manager struct {
	cfg ManagerConfig

	sessions     sync.Map // map[string]*Session
	activeCount  atomic.Int64
	totalStarted atomic.Int64

	shutdownOnce sync.Once
	shuttingDown atomic.Bool
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Create starts a session named name over content.
func (m *Manager) Create(ctx context.Context, name, content string) (*Session, error) {
	if m.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}

	id := uuid.NewString()
	opts := Options{
		Name:      name,
		Selection: m.cfg.Selection,
		Editor: editor.Options{
			HistoryCap:  m.cfg.HistoryCap,
			Regenerator: m.cfg.Regenerator,
		},
	}
	if m.cfg.Pages != nil && name != "" {
		opts.Editor.Saver = &store.Saver{
			Pages:     m.cfg.Pages,
			Revisions: m.cfg.Revisions,
			Name:      name,
			Source:    id,
		}
	}

	var sess *Session
	if m.cfg.OnAction != nil {
		onAction := m.cfg.OnAction
		opts.Editor.OnAction = func(action protocol.Type, element protocol.ElementSnapshot) {
			onAction(sess, action, element)
		}
	}

	sess, err := New(ctx, id, content, opts)
	if err != nil {
		return nil, err
	}

	m.sessions.Store(id, sess)
	m.activeCount.Add(1)
	m.totalStarted.Add(1)
	return sess, nil
}

// Open starts a session over the saved content of a page.
func (m *Manager) Open(ctx context.Context, name string) (*Session, error) {
	if m.cfg.Pages == nil {
		return nil, store.ErrNotFound
	}
	page, err := m.cfg.Pages.Get(name)
	if err != nil {
		return nil, err
	}
	return m.Create(ctx, page.Name, page.Content)
}

// Get retrieves a session by ID, falling back to a unique match on the
// session name or an ID prefix.
func (m *Manager) Get(id string) (*Session, error) {
	if val, ok := m.sessions.Load(id); ok {
		return val.(*Session), nil
	}
	if id == "" {
		return nil, ErrSessionNotFound
	}

	var matches []*Session
	m.sessions.Range(func(key, value any) bool {
		s := value.(*Session)
		sid := key.(string)
		if s.Name == id || len(id) >= 4 && len(sid) > len(id) && sid[:len(id)] == id {
			matches = append(matches, s)
		}
		return true
	})

	if len(matches) == 0 {
		return nil, ErrSessionNotFound
	}
	if len(matches) > 1 {
		return nil, ErrSessionAmbiguous
	}
	return matches[0], nil
}

// Stop stops a session and removes it from the registry.
func (m *Manager) Stop(ctx context.Context, id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if _, loaded := m.sessions.LoadAndDelete(sess.ID); !loaded {
		return ErrSessionNotFound
	}
	m.activeCount.Add(-1)
	return sess.Stop(ctx)
}

// List returns all sessions, oldest first.
func (m *Manager) List() []*Session {
	var result []*Session
	m.sessions.Range(func(key, value any) bool {
		result = append(result, value.(*Session))
		return true
	})
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// ActiveCount returns the number of running sessions.
func (m *Manager) ActiveCount() int64 {
	return m.activeCount.Load()
}

// TotalStarted returns the total number of sessions ever started.
func (m *Manager) TotalStarted() int64 {
	return m.totalStarted.Load()
}

// Shutdown stops all sessions in parallel.
func (m *Manager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	m.shutdownOnce.Do(func() {
		m.shuttingDown.Store(true)

		var stopWg sync.WaitGroup
		var errMu sync.Mutex
		var errs []error

		m.sessions.Range(func(key, value any) bool {
			stopWg.Add(1)
			go func(id string) {
				defer stopWg.Done()
				if err := m.Stop(ctx, id); err != nil {
					errMu.Lock()
					errs = append(errs, err)
					errMu.Unlock()
				}
			}(key.(string))
			return true
		})

		done := make(chan struct{})
		go func() {
			stopWg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			shutdownErr = ctx.Err()
		}

		errMu.Lock()
		if len(errs) > 0 {
			shutdownErr = errors.Join(append(errs, shutdownErr)...)
		}
		errMu.Unlock()
	})

	return shutdownErr
}

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned when a page doesn't exist.
	ErrNotFound = errors.New("page not found")

	// ErrInvalidName is returned for an empty page name.
	ErrInvalidName = errors.New("invalid page name")
)

// PageStore keeps the latest content of each page in its own JSON file.
type PageStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewPageStore returns a store rooted at baseDir (the project directory).
func NewPageStore(baseDir string) *PageStore {
	return &PageStore{baseDir: baseDir}
}

// Dir returns the directory holding page files.
func (s *PageStore) Dir() string {
	return filepath.Join(s.baseDir, StoreDir)
}

func key(name string) (string, error) {
	k := NormalizeName(name)
	if k == "" {
		return "", ErrInvalidName
	}
	return k, nil
}

// Get returns the saved page.
func (s *PageStore) Get(name string) (*Page, error) {
	k, err := key(name)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	pf, err := loadPageFile(pagePath(s.baseDir, k))
	if err != nil {
		return nil, err
	}
	if pf == nil {
		return nil, ErrNotFound
	}
	return pf.Page, nil
}

// Save stores content as the latest revision of the page and returns it.
func (s *PageStore) Save(name, content string, metadata map[string]any) (*Page, error) {
	k, err := key(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := pagePath(s.baseDir, k)
	pf, err := loadPageFile(path)
	if err != nil {
		return nil, err
	}

	page := NewPage(k, content, metadata)
	if pf != nil {
		// Preserve creation time, bump the revision
		page.CreatedAt = pf.Page.CreatedAt
		page.Revision = pf.Page.Revision + 1
		if metadata == nil {
			page.Metadata = pf.Page.Metadata
		}
	}

	if err := savePageFile(path, &PageFile{Version: 1, Key: k, Page: page}); err != nil {
		return nil, err
	}
	return page, nil
}

// Delete removes a saved page.
func (s *PageStore) Delete(name string) error {
	k, err := key(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(pagePath(s.baseDir, k)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove page file: %w", err)
	}
	return nil
}

// List returns the names of all saved pages, sorted.
func (s *PageStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		pf, err := loadPageFile(filepath.Join(s.Dir(), e.Name()))
		if err != nil || pf == nil {
			continue
		}
		names = append(names, pf.Key)
	}
	sort.Strings(names)
	return names, nil
}

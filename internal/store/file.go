package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// pagePath returns the file holding the page with the given key.
func pagePath(baseDir, key string) string {
	return filepath.Join(baseDir, StoreDir, HashKey(key)+".json")
}

// loadPageFile loads a page file from disk.
// Returns nil with no error if the file doesn't exist.
func loadPageFile(path string) (*PageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read page file: %w", err)
	}

	var pf PageFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("failed to parse page file: %w", err)
	}
	if pf.Page == nil {
		return nil, fmt.Errorf("page file %s has no page", filepath.Base(path))
	}
	return &pf, nil
}

// savePageFile writes a page file atomically via temp file + rename.
func savePageFile(path string, pf *PageFile) error {
	pf.UpdatedAt = time.Now().Format(time.RFC3339)

	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal page file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

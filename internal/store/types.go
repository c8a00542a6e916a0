// Package store persists edited pages: one JSON file per page under the
// store directory, plus an SQLite log of every saved revision.
package store

import (
	"time"
)

// StoreDir is the directory within each project for saved pages.
const StoreDir = ".livedit/pages"

// Page is a saved page with metadata.
type Page struct {
	Name      string         `json:"name"`
	Content   string         `json:"content"`
	Revision  int            `json:"revision"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// PageFile is the JSON structure of a page file.
type PageFile struct {
	Version   int    `json:"version"`
	Key       string `json:"key"`
	Page      *Page  `json:"page"`
	UpdatedAt string `json:"updated_at"`
}

// NewPage creates a page at revision 1 stamped with the current time.
func NewPage(name, content string, metadata map[string]any) *Page {
	now := time.Now()
	return &Page{
		Name:      name,
		Content:   content,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  metadata,
	}
}

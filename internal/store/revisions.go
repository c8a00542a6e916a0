package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// RevisionDB is the revision log file name inside StoreDir.
const RevisionDB = "revisions.db"

const revisionSchema = `
CREATE TABLE IF NOT EXISTS revisions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	page       TEXT    NOT NULL,
	revision   INTEGER NOT NULL,
	content    TEXT    NOT NULL,
	source     TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	UNIQUE (page, revision)
);
CREATE INDEX IF NOT EXISTS idx_revisions_page ON revisions(page, revision DESC);
`

// Revision is one saved version of a page.
type Revision struct {
	ID        int64     `json:"id"`
	Page      string    `json:"page"`
	Revision  int       `json:"revision"`
	Content   string    `json:"content,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RevisionLog records every saved page version in SQLite.
type RevisionLog struct {
	db *sql.DB
}

// OpenRevisionLog opens (creating if needed) the revision log at path.
// Use ":memory:" for a throwaway log.
func OpenRevisionLog(path string) (*RevisionLog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("revision log: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("revision log: open: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("revision log: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(revisionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("revision log: schema: %w", err)
	}
	return &RevisionLog{db: db}, nil
}

// Append records a revision. CreatedAt defaults to now.
func (l *RevisionLog) Append(ctx context.Context, r Revision) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO revisions (page, revision, content, source, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.Page, r.Revision, r.Content, r.Source, r.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("append revision: %w", err)
	}
	return res.LastInsertId()
}

// List returns the most recent revisions of page, newest first, without
// their content. limit <= 0 returns all of them.
func (l *RevisionLog) List(ctx context.Context, page string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, page, revision, source, created_at FROM revisions
		 WHERE page = ? ORDER BY revision DESC LIMIT ?`, page, limit)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var out []Revision
	for rows.Next() {
		var r Revision
		var ms int64
		if err := rows.Scan(&r.ID, &r.Page, &r.Revision, &r.Source, &ms); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		r.CreatedAt = time.UnixMilli(ms)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns a single revision with its content.
func (l *RevisionLog) Get(ctx context.Context, page string, revision int) (*Revision, error) {
	r := Revision{Page: page, Revision: revision}
	var ms int64
	err := l.db.QueryRowContext(ctx,
		`SELECT id, content, source, created_at FROM revisions WHERE page = ? AND revision = ?`,
		page, revision).Scan(&r.ID, &r.Content, &r.Source, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get revision: %w", err)
	}
	r.CreatedAt = time.UnixMilli(ms)
	return &r, nil
}

// Close closes the database.
func (l *RevisionLog) Close() error {
	return l.db.Close()
}

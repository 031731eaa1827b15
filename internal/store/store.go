// Package store persists analysis results in a SQLite database so the MCP
// server can answer queries about previously indexed files without
// re-analyzing them.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"allocguard/internal/rewriter"
)

const schema = `
CREATE TABLE IF NOT EXISTS files (
	path       TEXT PRIMARY KEY,
	hash       TEXT NOT NULL,
	indexed_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS functions (
	path      TEXT NOT NULL,
	name      TEXT NOT NULL,
	line      INTEGER NOT NULL,
	shape     TEXT NOT NULL,
	marked    INTEGER NOT NULL,
	rewritten INTEGER NOT NULL,
	transform TEXT NOT NULL,
	PRIMARY KEY (path, name),
	FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS sites (
	path      TEXT NOT NULL,
	function  TEXT NOT NULL,
	line      INTEGER NOT NULL,
	allocator TEXT NOT NULL,
	variable  TEXT,
	checked   INTEGER NOT NULL,
	FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS sites_unchecked ON sites(path, checked);
`

// ContentHash is the file identity used for change detection in the files
// table.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Store is a SQLite-backed index of per-file analysis results.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReplaceFile replaces all stored rows for path with the given analysis in
// one transaction.
func (s *Store) ReplaceFile(ctx context.Context, path, hash string, fns []rewriter.FunctionReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"sites", "functions", "files"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE path = ?", path); err != nil {
			return fmt.Errorf("clear %s for %s: %w", table, path, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO files (path, hash, indexed_at) VALUES (?, ?, ?)",
		path, hash, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert file %s: %w", path, err)
	}
	for _, fn := range fns {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO functions (path, name, line, shape, marked, rewritten, transform) VALUES (?, ?, ?, ?, ?, ?, ?)",
			path, fn.Name, fn.Line, fn.Shape, fn.Marked, fn.Rewritten, fn.Transform); err != nil {
			return fmt.Errorf("insert function %s.%s: %w", path, fn.Name, err)
		}
		for _, site := range fn.Sites {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO sites (path, function, line, allocator, variable, checked) VALUES (?, ?, ?, ?, ?, ?)",
				path, fn.Name, site.Line, site.Allocator, site.Variable, site.Checked); err != nil {
				return fmt.Errorf("insert site %s:%d: %w", path, site.Line, err)
			}
		}
	}
	return tx.Commit()
}

// FileHash returns the stored content hash for path, or "" if the file has
// never been indexed.
func (s *Store) FileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// IndexedFiles lists every indexed path with its index time.
func (s *Store) IndexedFiles(ctx context.Context) ([]IndexedFile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path, hash, indexed_at FROM files ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []IndexedFile
	for rows.Next() {
		var f IndexedFile
		if err := rows.Scan(&f.Path, &f.Hash, &f.IndexedAt); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// UncheckedSites lists all unchecked allocation sites, optionally restricted
// to one path. Pass "" for all files.
func (s *Store) UncheckedSites(ctx context.Context, path string) ([]Site, error) {
	query := "SELECT path, function, line, allocator, variable FROM sites WHERE checked = 0"
	args := []any{}
	if path != "" {
		query += " AND path = ?"
		args = append(args, path)
	}
	query += " ORDER BY path, line"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var site Site
		var variable sql.NullString
		if err := rows.Scan(&site.Path, &site.Function, &site.Line, &site.Allocator, &variable); err != nil {
			return nil, err
		}
		site.Variable = variable.String
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// IndexedFile is one row of the files table.
type IndexedFile struct {
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Site is one unchecked allocation site row.
type Site struct {
	Path      string `json:"path"`
	Function  string `json:"function"`
	Line      int    `json:"line"`
	Allocator string `json:"allocator"`
	Variable  string `json:"variable,omitempty"`
}

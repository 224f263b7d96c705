// Package mapstore persists the (source issue → wrapper issue) index.
//
// The index replaces title-substring search as the primary wrapper
// lookup, removing the ambiguous-match class for mapped issues while
// preserving identical external behavior: the resolver still falls
// back to search when an entry is missing.
package mapstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sancovp/metasync/internal/wrapper"
)

const schema = `
CREATE TABLE IF NOT EXISTS wrapper_mappings (
	source_repo    TEXT    NOT NULL,
	source_number  INTEGER NOT NULL,
	wrapper_number INTEGER NOT NULL,
	updated_at     TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
	PRIMARY KEY (source_repo, source_number)
);
`

// SQLiteStore implements wrapper.Mapping on a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (creating if needed) the mapping database at path.
// WAL mode keeps concurrent event handlers on the same host from
// serializing on the writer lock.
func Open(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ wrapper.Mapping = (*SQLiteStore)(nil)

// Get implements wrapper.Mapping.
func (s *SQLiteStore) Get(ctx context.Context, ref wrapper.SourceRef) (int, bool, error) {
	var number int
	err := s.db.QueryRowContext(ctx,
		`SELECT wrapper_number FROM wrapper_mappings WHERE source_repo = ? AND source_number = ?`,
		ref.Repo, ref.Number,
	).Scan(&number)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query mapping for %s: %w", ref, err)
	}
	return number, true, nil
}

// Put implements wrapper.Mapping. Re-mapping an existing reference
// replaces the entry (last writer wins, matching the sync model).
func (s *SQLiteStore) Put(ctx context.Context, ref wrapper.SourceRef, number int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wrapper_mappings (source_repo, source_number, wrapper_number)
		 VALUES (?, ?, ?)
		 ON CONFLICT (source_repo, source_number)
		 DO UPDATE SET wrapper_number = excluded.wrapper_number,
		               updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		ref.Repo, ref.Number, number,
	)
	if err != nil {
		return fmt.Errorf("failed to record mapping %s -> #%d: %w", ref, number, err)
	}
	return nil
}

// Delete removes the mapping for ref, if present.
func (s *SQLiteStore) Delete(ctx context.Context, ref wrapper.SourceRef) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM wrapper_mappings WHERE source_repo = ? AND source_number = ?`,
		ref.Repo, ref.Number,
	)
	if err != nil {
		return fmt.Errorf("failed to delete mapping for %s: %w", ref, err)
	}
	return nil
}

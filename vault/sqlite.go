// Package vault SQLite-backed store.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore implements Store on a single SQLite database file.
// Entries live in one table keyed by their vault path, so the whole
// vault travels as one file.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite vault at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS vault_entries (
			path TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_vault_entries_updated
		ON vault_entries(updated_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Initialize verifies the schema exists. The table is created on open,
// so this is effectively a connectivity check.
func (s *SqliteStore) Initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach SQLite database: %w", err)
	}
	return s.createSchema()
}

// Write stores data at path, replacing any existing entry.
func (s *SqliteStore) Write(ctx context.Context, p string, data []byte) error {
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vault_entries (path, data, updated_at) VALUES (?, ?, ?)",
		cleaned, data, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write %q: %w", p, err)
	}
	return nil
}

// Read returns the data stored at path.
func (s *SqliteStore) Read(ctx context.Context, p string) ([]byte, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	var data []byte
	err = s.db.QueryRowContext(ctx,
		"SELECT data FROM vault_entries WHERE path = ?", cleaned).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", p, err)
	}
	return data, nil
}

// Delete removes the entry at path.
func (s *SqliteStore) Delete(ctx context.Context, p string) error {
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM vault_entries WHERE path = ?", cleaned)
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", p, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return nil
}

// Exists reports whether an entry exists at path.
func (s *SqliteStore) Exists(ctx context.Context, p string) bool {
	cleaned, err := cleanPath(p)
	if err != nil {
		return false
	}

	var count int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vault_entries WHERE path = ?", cleaned).Scan(&count)
	return err == nil && count > 0
}

// List returns the entry names directly under dir, sorted.
func (s *SqliteStore) List(ctx context.Context, dir string) ([]string, error) {
	cleaned, err := cleanPath(dir)
	if err != nil {
		return nil, err
	}
	prefix := cleaned + "/"

	rows, err := s.db.QueryContext(ctx,
		"SELECT path FROM vault_entries WHERE path LIKE ? ORDER BY path ASC",
		prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}
	defer rows.Close()

	names := []string{} // Start with empty slice, not nil
	for rows.Next() {
		var entryPath string
		if err := rows.Scan(&entryPath); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		rest := strings.TrimPrefix(entryPath, prefix)
		// Only direct children, matching directory semantics.
		if strings.Contains(rest, "/") {
			continue
		}
		names = append(names, rest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entries: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)

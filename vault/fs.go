// Package vault directory-backed store.
//
// Information Hiding:
// - On-disk layout and atomic write protocol hidden behind Store
// - Temp-file rename keeps entries readable during concurrent writes

package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DirStore implements Store on a local directory tree.
// Each entry is a file under the vault root; writes are atomic
// (write to a temp file, then rename into place).
type DirStore struct {
	root string
}

// NewDirStore creates a store rooted at dir. The directory is not
// touched until Initialize or the first Write.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("vault root must not be empty")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vault root: %w", err)
	}
	return &DirStore{root: abs}, nil
}

// Root returns the absolute path of the vault root directory.
func (s *DirStore) Root() string {
	return s.root
}

// Initialize creates the vault root and its standard subdirectories.
func (s *DirStore) Initialize(ctx context.Context) error {
	for _, dir := range []string{"", ConfigDir, AgentsDir, SessionsDir, LogsDir} {
		if err := os.MkdirAll(filepath.Join(s.root, dir), 0755); err != nil {
			return fmt.Errorf("failed to create vault directory %q: %w", dir, err)
		}
	}
	return nil
}

// resolve maps a vault-relative path to an absolute filesystem path.
func (s *DirStore) resolve(p string) (string, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Write stores data at path, creating parent directories as needed.
func (s *DirStore) Write(ctx context.Context, p string, data []byte) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory for %q: %w", p, err)
	}

	// Write to a temp file first, then rename. Readers never observe
	// a partially written entry.
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %q: %w", p, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit %q: %w", p, err)
	}
	return nil
}

// Read returns the data stored at path.
func (s *DirStore) Read(ctx context.Context, p string) ([]byte, error) {
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", p, err)
	}
	return data, nil
}

// Delete removes the entry at path.
func (s *DirStore) Delete(ctx context.Context, p string) error {
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	err = os.Remove(full)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return fmt.Errorf("failed to delete %q: %w", p, err)
	}
	return nil
}

// Exists reports whether an entry exists at path.
func (s *DirStore) Exists(ctx context.Context, p string) bool {
	full, err := s.resolve(p)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// List returns the file names directly under dir, sorted.
// Returns empty slice if the directory does not exist.
func (s *DirStore) List(ctx context.Context, dir string) ([]string, error) {
	full, err := s.resolve(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %q: %w", dir, err)
	}

	names := []string{} // Start with empty slice, not nil
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op for directory stores.
func (s *DirStore) Close() error {
	return nil
}

// Verify DirStore implements Store
var _ Store = (*DirStore)(nil)

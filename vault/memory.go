// Package vault in-memory store.
//
// Information Hiding:
// - Radix-tree path index hidden behind the Store interface
// - Thread-safe access via RWMutex
// - Suitable for testing and ephemeral vaults

package vault

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/cortexnotes/cortex/internal/prefixtree"
)

// MemoryStore implements Store on an in-memory radix tree. Data is
// lost when the process terminates.
type MemoryStore struct {
	mu      sync.RWMutex
	entries *prefixtree.Tree[[]byte]
}

// NewMemoryStore creates a new in-memory vault store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: prefixtree.New[[]byte](),
	}
}

// Initialize is a no-op; the tree needs no layout.
func (s *MemoryStore) Initialize(ctx context.Context) error {
	return nil
}

// Write stores a copy of data at path.
func (s *MemoryStore) Write(ctx context.Context, p string, data []byte) error {
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Make a copy to avoid external mutations
	copied := make([]byte, len(data))
	copy(copied, data)
	s.entries.Put(cleaned, copied)
	return nil
}

// Read returns a copy of the data stored at path.
func (s *MemoryStore) Read(ctx context.Context, p string) ([]byte, error) {
	cleaned, err := cleanPath(p)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.entries.Get(cleaned)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	// Return a copy to avoid external mutations
	copied := make([]byte, len(data))
	copy(copied, data)
	return copied, nil
}

// Delete removes the entry at path.
func (s *MemoryStore) Delete(ctx context.Context, p string) error {
	cleaned, err := cleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.entries.Delete(cleaned) {
		return fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return nil
}

// Exists reports whether an entry exists at path.
func (s *MemoryStore) Exists(ctx context.Context, p string) bool {
	cleaned, err := cleanPath(p)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.entries.Get(cleaned)
	return ok
}

// List returns the entry names directly under dir, sorted. The radix
// walk visits keys in sorted order, so no extra sort pass is needed.
func (s *MemoryStore) List(ctx context.Context, dir string) ([]string, error) {
	cleaned, err := cleanPath(dir)
	if err != nil {
		return nil, err
	}
	prefix := cleaned + "/"

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := []string{} // Start with empty slice, not nil
	s.entries.WalkPrefix(prefix, func(key string, _ []byte) bool {
		rest := strings.TrimPrefix(key, prefix)
		// Only direct children, matching directory semantics.
		if !strings.Contains(rest, "/") {
			names = append(names, path.Base(rest))
		}
		return true
	})
	return names, nil
}

// Close is a no-op for memory stores.
func (s *MemoryStore) Close() error {
	return nil
}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// Package vault provides sandboxed key-value storage for agent state.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between directory, memory, SQLite without API changes
// - Path validation and layout conventions encapsulated here
package vault

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Well-known top-level directories inside a vault.
const (
	ConfigDir   = "config"
	AgentsDir   = "agents"
	SessionsDir = "sessions"
	LogsDir     = "logs"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned by Read when no entry exists at the path.
	ErrNotFound = errors.New("vault: entry not found")

	// ErrInvalidPath is returned when a path escapes the vault root
	// or is otherwise malformed.
	ErrInvalidPath = errors.New("vault: invalid path")
)

// Store defines the interface for vault storage backends.
// All paths are relative, slash-separated, and confined to the vault root.
// Values are opaque byte blobs; callers own serialization.
type Store interface {
	// Initialize prepares the backing store, creating the standard
	// layout (config, agents, sessions, logs) where that applies.
	// Safe to call more than once.
	Initialize(ctx context.Context) error

	// Write stores data at path, creating parent directories as needed.
	// Overwrites any existing entry.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the data stored at path.
	// Returns ErrNotFound if no entry exists.
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the entry at path.
	// Returns ErrNotFound if no entry exists.
	Delete(ctx context.Context, path string) error

	// Exists reports whether an entry exists at path.
	Exists(ctx context.Context, path string) bool

	// List returns the names of entries directly under dir.
	// Returns empty slice (not nil) if the directory is missing or empty.
	List(ctx context.Context, dir string) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// ProvidersPath returns the vault path of the provider config list.
func ProvidersPath() string {
	return ConfigDir + "/providers.json"
}

// AgentPath returns the vault path for an agent config.
func AgentPath(agentID string) string {
	return AgentsDir + "/" + agentID + ".json"
}

// SessionDir returns the vault directory holding an agent's sessions.
func SessionDir(agentID string) string {
	return SessionsDir + "/" + agentID
}

// SessionPath returns the vault path for a session record.
func SessionPath(agentID, sessionID string) string {
	return SessionDir(agentID) + "/" + sessionID + ".json"
}

// cleanPath validates and normalizes a vault-relative path.
// Rejects empty, absolute, and traversal paths so no operation
// can touch files outside the vault root.
func cleanPath(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, "\\") {
		return "", fmt.Errorf("%w: absolute path %q", ErrInvalidPath, p)
	}
	cleaned := path.Clean(strings.ReplaceAll(p, "\\", "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: path %q escapes vault root", ErrInvalidPath, p)
	}
	return cleaned, nil
}

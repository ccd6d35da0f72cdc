// Provider registry holding live connections keyed by provider id.
//
// Information Hiding:
// - Connection lifecycle (construct, handshake, swap, dispose)
// - Add either fully succeeds or leaves the registry untouched

package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State describes the reachability of a registered provider.
type State string

const (
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Status is the result of a connectivity probe.
type Status struct {
	State State  `json:"status"`
	Error string `json:"error,omitempty"`
}

const probeTimeout = 10 * time.Second

// Registry holds zero or more live provider connections keyed by id.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
	log   zerolog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Connection),
		log:   log.With().Str("component", "providers").Logger(),
	}
}

// Add validates the config and, when enabled, constructs the
// kind-specific connection and performs a live handshake before
// storing it. A failed add leaves the registry exactly as it was;
// a successful add replaces (and closes) any prior connection under
// the same key. Disabled configs drop any prior connection and store
// nothing.
func (r *Registry) Add(ctx context.Context, cfg ProviderConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	key := cfg.Key()

	if !cfg.Enabled {
		r.Remove(key)
		r.log.Info().Str("provider", key).Msg("provider disabled, not registered")
		return nil
	}

	conn, err := NewConnection(cfg)
	if err != nil {
		return err
	}
	if _, err := conn.ListModels(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("provider %q handshake failed: %w", key, err)
	}

	r.mu.Lock()
	old := r.conns[key]
	r.conns[key] = conn
	r.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			r.log.Warn().Str("provider", key).Err(err).Msg("failed to close replaced connection")
		}
	}
	r.log.Info().Str("provider", key).Str("kind", string(cfg.Kind)).Msg("provider registered")
	return nil
}

// Remove disposes the connection under id and removes it.
// No-op if the id is not registered.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	conn, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	if err := conn.Close(); err != nil {
		r.log.Warn().Str("provider", id).Err(err).Msg("failed to close connection")
	}
	r.log.Info().Str("provider", id).Msg("provider removed")
}

// Get returns the connection under id, if registered.
// Pure lookup: never blocks, never validates.
func (r *Registry) Get(id string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[id]
	return conn, ok
}

// Available reports whether a connection is registered under id.
func (r *Registry) Available(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// IDs returns the registered provider ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Test probes the provider's connectivity. Best-effort boolean:
// absent providers and probe failures both report false.
func (r *Registry) Test(ctx context.Context, id string) bool {
	return r.Status(ctx, id).State == StateConnected
}

// Status probes the provider and reports connected, disconnected
// (not registered), or error with the probe failure message.
func (r *Registry) Status(ctx context.Context, id string) Status {
	conn, ok := r.Get(id)
	if !ok {
		return Status{State: StateDisconnected}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := conn.ListModels(probeCtx); err != nil {
		return Status{State: StateError, Error: err.Error()}
	}
	return Status{State: StateConnected}
}

// GetModel resolves a provider id and model name to a callable handle.
// An empty model name falls back to the connection's default model.
func (r *Registry) GetModel(providerID, model string) (*Model, error) {
	conn, ok := r.Get(providerID)
	if !ok {
		return nil, fmt.Errorf("provider %q is not registered", providerID)
	}
	return NewModel(conn, model)
}

// Close disposes every held connection and clears the registry.
func (r *Registry) Close() {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Connection)
	r.mu.Unlock()

	for id, conn := range conns {
		if err := conn.Close(); err != nil {
			r.log.Warn().Str("provider", id).Err(err).Msg("failed to close connection")
		}
	}
}

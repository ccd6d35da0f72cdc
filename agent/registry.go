// Agent registry: owns configs, resolves runnable instances, caches them.
//
// Information Hiding:
// - Vault persistence format and rollback on write failure
// - Instance cache and its invalidation rules
// - Provider fallback policy during resolution

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/cortexnotes/cortex/llm"
	"github.com/cortexnotes/cortex/run"
	"github.com/cortexnotes/cortex/vault"
)

// ErrNotFound is returned when an agent id is not in the registry.
var ErrNotFound = errors.New("agent not found")

// ProviderManager resolves provider ids to callable model handles.
// *llm.Registry satisfies it.
type ProviderManager interface {
	GetModel(providerID, model string) (*llm.Model, error)
}

// Registry owns the set of agent configurations, mirrored to the
// vault, plus a lazy cache of resolved runnable instances.
type Registry struct {
	mu        sync.RWMutex
	store     vault.Store
	agents    map[string]*Config
	instances map[string]run.Runnable
	providers ProviderManager
	flight    singleflight.Group

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int

	log zerolog.Logger
}

// NewRegistry creates an empty agent registry backed by store.
func NewRegistry(store vault.Store) *Registry {
	return &Registry{
		store:     store,
		agents:    make(map[string]*Config),
		instances: make(map[string]run.Runnable),
		subs:      make(map[int]func(Event)),
		log:       log.With().Str("component", "agents").Logger(),
	}
}

// SetProviderManager swaps the attached provider registry. Every
// cached instance is dropped: it may be bound to a stale connection.
func (r *Registry) SetProviderManager(pm ProviderManager) {
	r.mu.Lock()
	r.providers = pm
	r.instances = make(map[string]run.Runnable)
	r.mu.Unlock()

	r.log.Info().Msg("provider manager swapped, instance cache cleared")
}

// LoadAll reads every persisted agent config into memory. Corrupt or
// invalid files are logged and skipped so one bad file cannot block
// startup.
func (r *Registry) LoadAll(ctx context.Context) error {
	names, err := r.store.List(ctx, vault.AgentsDir)
	if err != nil {
		return fmt.Errorf("failed to list agent configs: %w", err)
	}

	loaded := 0
	for _, name := range names {
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := r.store.Read(ctx, vault.AgentsDir+"/"+name)
		if err != nil {
			r.log.Warn().Str("file", name).Err(err).Msg("failed to read agent config, skipping")
			continue
		}
		var cfg Config
		if err := json.Unmarshal(data, &cfg); err != nil {
			r.log.Warn().Str("file", name).Err(err).Msg("corrupt agent config, skipping")
			continue
		}
		if err := cfg.Validate(); err != nil {
			r.log.Warn().Str("file", name).Err(err).Msg("invalid agent config, skipping")
			continue
		}

		r.mu.Lock()
		r.agents[cfg.ID] = &cfg
		r.mu.Unlock()
		loaded++
	}

	r.log.Info().Int("count", loaded).Msg("agent configs loaded")
	return nil
}

// Create validates the input, assembles a config with a fresh id and
// timestamps, runs the compatibility check, persists, and emits a
// created event. Compat warnings are returned for the caller to log.
func (r *Registry) Create(ctx context.Context, input CreateInput) (*Config, []string, error) {
	if err := input.Validate(); err != nil {
		return nil, nil, err
	}

	now := nowMillis()
	cfg := &Config{
		ID:               uuid.New().String(),
		Name:             input.Name,
		Instructions:     input.Instructions,
		Model:            input.Model,
		Tools:            cloneTools(input.Tools),
		Handoffs:         input.Handoffs,
		OutputType:       input.OutputType,
		InputGuardrails:  append([]GuardrailConfig(nil), input.InputGuardrails...),
		OutputGuardrails: append([]GuardrailConfig(nil), input.OutputGuardrails...),
		MCPServers:       append([]MCPServerConfig(nil), input.MCPServers...),
		ToolUseBehavior:  input.ToolUseBehavior,
		StopToolNames:    append([]string(nil), input.StopToolNames...),
		ResetToolChoice:  input.ResetToolChoice,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	warnings, err := CheckCompat(cfg)
	if err != nil {
		return nil, warnings, err
	}

	stored, err := r.register(ctx, cfg, EventCreated)
	if err != nil {
		return nil, warnings, err
	}
	r.log.Info().Str("agent", cfg.ID).Str("name", cfg.Name).Msg("agent created")
	return stored, warnings, nil
}

// Update merges the patch over the stored config, bumps updatedAt,
// re-validates, persists, and invalidates the cached instance.
func (r *Registry) Update(ctx context.Context, id string, patch UpdateInput) (*Config, error) {
	r.mu.Lock()
	existing, ok := r.agents[id]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := existing.Clone()
	patch.apply(updated)
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = bumpUpdated(existing.UpdatedAt)

	if err := updated.Validate(); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	r.agents[id] = updated
	if err := r.persist(ctx, updated); err != nil {
		r.agents[id] = existing
		r.mu.Unlock()
		return nil, err
	}
	delete(r.instances, id)
	r.mu.Unlock()

	r.emit(Event{Type: EventUpdated, AgentID: id, Agent: updated.Clone()})
	r.log.Info().Str("agent", id).Msg("agent updated")
	return updated.Clone(), nil
}

// Delete removes the agent from the registry and the vault and drops
// its cached instance. Session cleanup is the session registry's
// concern; it observes the deleted event.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.agents[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := r.store.Delete(ctx, vault.AgentPath(id)); err != nil && !errors.Is(err, vault.ErrNotFound) {
		r.mu.Unlock()
		return fmt.Errorf("failed to delete persisted agent %s: %w", id, err)
	}
	delete(r.agents, id)
	delete(r.instances, id)
	r.mu.Unlock()

	r.emit(Event{Type: EventDeleted, AgentID: id})
	r.log.Info().Str("agent", id).Msg("agent deleted")
	return nil
}

// Get returns a copy of the config, if present.
func (r *Registry) Get(id string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

// Has reports whether an agent id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.agents[id]
	return ok
}

// IDs returns the registered agent ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List returns copies of every config, sorted by name then id.
func (r *Registry) List() []*Config {
	r.mu.RLock()
	configs := make([]*Config, 0, len(r.agents))
	for _, cfg := range r.agents {
		configs = append(configs, cfg.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(configs, func(i, j int) bool {
		if configs[i].Name != configs[j].Name {
			return configs[i].Name < configs[j].Name
		}
		return configs[i].ID < configs[j].ID
	})
	return configs
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Instance returns the cached runnable for id, resolving and caching
// it on first use. Concurrent calls for the same id share one
// resolution.
func (r *Registry) Instance(ctx context.Context, id string) (run.Runnable, error) {
	r.mu.RLock()
	inst, ok := r.instances[id]
	r.mu.RUnlock()
	if ok {
		return inst, nil
	}

	v, err, _ := r.flight.Do(id, func() (interface{}, error) {
		r.mu.RLock()
		if inst, ok := r.instances[id]; ok {
			r.mu.RUnlock()
			return inst, nil
		}
		cfg, ok := r.agents[id]
		if !ok {
			r.mu.RUnlock()
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		snapshot := cfg.Clone()
		pm := r.providers
		r.mu.RUnlock()

		built := r.buildInstance(snapshot, pm)

		// Cache only if the config was not mutated while building;
		// otherwise the next call resolves against the new config.
		r.mu.Lock()
		current, still := r.agents[id]
		if still && current.UpdatedAt == snapshot.UpdatedAt {
			r.instances[id] = built
		}
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(run.Runnable), nil
}

// buildInstance resolves a config into a runnable. A failed provider
// lookup downgrades to bare-model-name resolution instead of failing:
// provider wiring is an override layer, not a hard dependency.
func (r *Registry) buildInstance(cfg *Config, pm ProviderManager) run.Runnable {
	var handle *llm.Model
	if pm != nil && cfg.Model.ProviderID != "" {
		h, err := pm.GetModel(cfg.Model.ProviderID, cfg.Model.Model)
		if err != nil {
			r.log.Warn().
				Str("agent", cfg.ID).
				Str("provider", cfg.Model.ProviderID).
				Err(err).
				Msg("provider lookup failed, resolving model by name only")
		} else {
			handle = h
		}
	}

	return run.New(run.Config{
		Name:         cfg.Name,
		Instructions: cfg.Instructions,
		Model:        cfg.Model.Model,
		Handle:       handle,
		Settings:     cfg.Model.Settings,
		Tools:        cfg.toolDefinitions(),
		Format:       cfg.responseFormat(),
	})
}

// InvalidateInstance drops one cached instance.
func (r *Registry) InvalidateInstance(id string) {
	r.mu.Lock()
	delete(r.instances, id)
	r.mu.Unlock()
}

// InvalidateAll drops every cached instance.
func (r *Registry) InvalidateAll() {
	r.mu.Lock()
	r.instances = make(map[string]run.Runnable)
	r.mu.Unlock()
}

// Export returns the agent config as a portable JSON envelope.
func (r *Registry) Export(id string) (string, error) {
	snapshot, ok := r.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return encodeExport(snapshot)
}

// Import parses an exported envelope, mints a fresh id and
// timestamps (imported identity is never reused), validates, stores,
// and emits an imported event.
func (r *Registry) Import(ctx context.Context, raw string) (*Config, error) {
	cfg, err := decodeExport(raw)
	if err != nil {
		return nil, err
	}

	now := nowMillis()
	cfg.ID = uuid.New().String()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	stored, err := r.register(ctx, cfg, EventImported)
	if err != nil {
		return nil, err
	}
	r.log.Info().Str("agent", cfg.ID).Str("name", cfg.Name).Msg("agent imported")
	return stored, nil
}

// Clone deep-copies an existing agent under a new name with a fresh
// identity. The cached instance is not copied.
func (r *Registry) Clone(ctx context.Context, id, newName string) (*Config, error) {
	src, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := nowMillis()
	src.ID = uuid.New().String()
	src.Name = newName
	src.CreatedAt = now
	src.UpdatedAt = now
	if err := src.Validate(); err != nil {
		return nil, err
	}

	stored, err := r.register(ctx, src, EventCreated)
	if err != nil {
		return nil, err
	}
	r.log.Info().Str("agent", src.ID).Str("clonedFrom", id).Msg("agent cloned")
	return stored, nil
}

// register inserts a fully assembled config: map insert plus vault
// write under one lock, rolled back together if the write fails.
func (r *Registry) register(ctx context.Context, cfg *Config, evt EventType) (*Config, error) {
	r.mu.Lock()
	if _, exists := r.agents[cfg.ID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("agent id %q already exists", cfg.ID)
	}
	r.agents[cfg.ID] = cfg
	if err := r.persist(ctx, cfg); err != nil {
		delete(r.agents, cfg.ID)
		r.mu.Unlock()
		return nil, err
	}
	r.mu.Unlock()

	r.emit(Event{Type: evt, AgentID: cfg.ID, Agent: cfg.Clone()})
	return cfg.Clone(), nil
}

func (r *Registry) persist(ctx context.Context, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode agent %s: %w", cfg.ID, err)
	}
	if err := r.store.Write(ctx, vault.AgentPath(cfg.ID), data); err != nil {
		return fmt.Errorf("failed to persist agent %s: %w", cfg.ID, err)
	}
	return nil
}

// toolDefinitions converts enabled tools with schemas into the form
// advertised to the model.
func (c *Config) toolDefinitions() []llm.ToolDefinition {
	var defs []llm.ToolDefinition
	for _, tool := range c.Tools {
		if !tool.Enabled || len(tool.Parameters) == 0 {
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return defs
}

// responseFormat converts the output type to a response format.
// Plain text is the API default and maps to nil.
func (c *Config) responseFormat() *llm.ResponseFormat {
	if c.OutputType == nil || c.OutputType.Type != "json_schema" {
		return nil
	}
	return &llm.ResponseFormat{
		Type: llm.ResponseFormatJSONSchema,
		JSONSchema: &llm.JSONSchemaFormat{
			Name:   c.OutputType.Name,
			Schema: c.OutputType.Schema,
			Strict: c.OutputType.Strict,
		},
	}
}

// Session registry: lookups, lifecycle, and the send-message pipeline.
//
// Information Hiding:
// - Per-session locking (sends on one session serialize, sessions
//   proceed independently, lookups never wait on an in-flight send)
// - Vault persistence paths and timing

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cortexnotes/cortex/agent"
	"github.com/cortexnotes/cortex/llm"
	"github.com/cortexnotes/cortex/run"
	"github.com/cortexnotes/cortex/vault"
)

// ErrNotFound is returned when a session id is not in the registry.
var ErrNotFound = errors.New("session not found")

const (
	maxNameLength      = 100
	defaultRecentLimit = 50
)

// AgentDirectory is the slice of the agent registry the session layer
// needs: existence checks and runnable resolution. *agent.Registry
// satisfies it.
type AgentDirectory interface {
	Has(id string) bool
	IDs() []string
	Instance(ctx context.Context, id string) (run.Runnable, error)
}

// sessionState pairs a session with its locks. sendMu serializes the
// send pipeline; mu guards reads and swaps of sess so lookups stay
// fast while a send is in flight.
type sessionState struct {
	sendMu  sync.Mutex
	agentID string

	mu   sync.Mutex
	sess *Session
}

func (st *sessionState) snapshot() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess.Clone()
}

// Registry owns chat sessions, mirrored to the vault.
type Registry struct {
	mu       sync.RWMutex
	store    vault.Store
	agents   AgentDirectory
	sessions map[string]*sessionState
	log      zerolog.Logger
}

// NewRegistry creates an empty session registry backed by store,
// resolving agents through agents.
func NewRegistry(store vault.Store, agents AgentDirectory) *Registry {
	return &Registry{
		store:    store,
		agents:   agents,
		sessions: make(map[string]*sessionState),
		log:      log.With().Str("component", "sessions").Logger(),
	}
}

// BindAgentEvents wires cascade deletion: when an agent is deleted its
// sessions go too. Returns the unsubscribe function.
func (r *Registry) BindAgentEvents(agents *agent.Registry) func() {
	return agents.Subscribe(func(evt agent.Event) {
		if evt.Type != agent.EventDeleted {
			return
		}
		if err := r.DeleteAllForAgent(context.Background(), evt.AgentID); err != nil {
			r.log.Warn().Str("agent", evt.AgentID).Err(err).Msg("cascade session delete failed")
		}
	})
}

// LoadAll reads persisted sessions for every known agent. One agent's
// failures are logged and skipped so the rest still load.
func (r *Registry) LoadAll(ctx context.Context) error {
	loaded := 0
	for _, agentID := range r.agents.IDs() {
		names, err := r.store.List(ctx, vault.SessionDir(agentID))
		if err != nil {
			r.log.Warn().Str("agent", agentID).Err(err).Msg("failed to list sessions, skipping agent")
			continue
		}
		for _, name := range names {
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			data, err := r.store.Read(ctx, vault.SessionDir(agentID)+"/"+name)
			if err != nil {
				r.log.Warn().Str("file", name).Err(err).Msg("failed to read session, skipping")
				continue
			}
			var sess Session
			if err := json.Unmarshal(data, &sess); err != nil {
				r.log.Warn().Str("file", name).Err(err).Msg("corrupt session, skipping")
				continue
			}
			if sess.ID == "" || sess.AgentID == "" {
				r.log.Warn().Str("file", name).Msg("session missing identity, skipping")
				continue
			}

			r.mu.Lock()
			r.sessions[sess.ID] = &sessionState{agentID: sess.AgentID, sess: &sess}
			r.mu.Unlock()
			loaded++
		}
	}

	r.log.Info().Int("count", loaded).Msg("sessions loaded")
	return nil
}

// Create starts a new session for an existing agent.
func (r *Registry) Create(ctx context.Context, agentID, name string) (*Session, error) {
	if !r.agents.Has(agentID) {
		return nil, fmt.Errorf("agent not found: %s", agentID)
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	now := nowMillis()
	sess := &Session{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Name:      name,
		History:   []Item{}, // Start with empty slice, not nil
		Context:   Stats{LastActivity: now},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.persist(ctx, sess); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[sess.ID] = &sessionState{agentID: agentID, sess: sess}
	r.mu.Unlock()

	r.log.Info().Str("session", sess.ID).Str("agent", agentID).Msg("session created")
	return sess.Clone(), nil
}

// UpdateInput patches mutable session fields. Nil fields stay
// unchanged.
type UpdateInput struct {
	Name   *string `json:"name,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Update merges the patch, stamps updatedAt, and persists.
func (r *Registry) Update(ctx context.Context, id string, patch UpdateInput) (*Session, error) {
	state, err := r.state(id)
	if err != nil {
		return nil, err
	}

	state.mu.Lock()
	updated := state.sess.Clone()
	state.mu.Unlock()

	if patch.Name != nil {
		if err := validateName(*patch.Name); err != nil {
			return nil, err
		}
		updated.Name = *patch.Name
	}
	if patch.Status != nil {
		switch *patch.Status {
		case StatusActive, StatusPaused, StatusCompleted:
		default:
			return nil, fmt.Errorf("unknown session status %q", *patch.Status)
		}
		updated.Status = *patch.Status
	}
	updated.UpdatedAt = bumpUpdated(updated.UpdatedAt)

	if err := r.persist(ctx, updated); err != nil {
		return nil, err
	}

	state.mu.Lock()
	state.sess = updated
	state.mu.Unlock()
	return updated.Clone(), nil
}

// Delete removes the session from the registry and the vault.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	state, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := r.store.Delete(ctx, vault.SessionPath(state.agentID, id)); err != nil && !errors.Is(err, vault.ErrNotFound) {
		r.mu.Unlock()
		return fmt.Errorf("failed to delete persisted session %s: %w", id, err)
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	r.log.Info().Str("session", id).Msg("session deleted")
	return nil
}

// DeleteAllForAgent removes every session belonging to one agent,
// stopping at the first persistence failure.
func (r *Registry) DeleteAllForAgent(ctx context.Context, agentID string) error {
	r.mu.RLock()
	var ids []string
	for id, state := range r.sessions {
		if state.agentID == agentID {
			ids = append(ids, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("failed to delete sessions for agent %s: %w", agentID, err)
		}
	}
	return nil
}

// SendMessage routes one user turn through the session's agent:
// resolve the runnable, append the user message, invoke over the full
// projected history, record the trace and the assistant reply, then
// persist. Sends on the same session serialize; a failure after the
// user message is appended leaves it in memory unpersisted, and the
// returned error says so.
func (r *Registry) SendMessage(ctx context.Context, id, text string) (Item, error) {
	state, err := r.state(id)
	if err != nil {
		return Item{}, err
	}

	state.sendMu.Lock()
	defer state.sendMu.Unlock()

	instance, err := r.agents.Instance(ctx, state.agentID)
	if err != nil {
		return Item{}, fmt.Errorf("failed to resolve agent for session %s: %w", id, err)
	}

	state.mu.Lock()
	state.sess.History = append(state.sess.History, newMessageItem(llm.RoleUser, text))
	state.sess.Context.TotalMessages++
	state.sess.Context.LastActivity = nowMillis()
	state.sess.UpdatedAt = bumpUpdated(state.sess.UpdatedAt)
	projected := projectMessages(state.sess.History)
	state.mu.Unlock()

	result, err := instance.Invoke(ctx, projected)
	if err != nil {
		return Item{}, fmt.Errorf("send failed for session %s (user message kept in memory, not persisted): %w", id, err)
	}

	assistant := newMessageItem(llm.RoleAssistant, result.FinalOutput)

	state.mu.Lock()
	calls := 0
	for _, trace := range result.NewItems {
		item, ok := traceItem(trace)
		if !ok {
			continue
		}
		if item.Kind == KindFunctionCall {
			calls++
		}
		state.sess.History = append(state.sess.History, item)
	}
	state.sess.History = append(state.sess.History, assistant)
	state.sess.Context.TotalMessages++
	state.sess.Context.TotalFunctionCalls += calls
	state.sess.Context.TotalTokens += result.Usage.TotalTokens
	state.sess.Context.LastActivity = nowMillis()
	state.sess.Context.LastAgentID = state.agentID
	state.sess.UpdatedAt = bumpUpdated(state.sess.UpdatedAt)
	snapshot := state.sess.Clone()
	state.mu.Unlock()

	// The session may have been deleted while the model call was in
	// flight; persisting now would resurrect its file.
	if !r.Has(id) {
		return Item{}, fmt.Errorf("%w: %s (deleted during send)", ErrNotFound, id)
	}
	if err := r.persist(ctx, snapshot); err != nil {
		return Item{}, fmt.Errorf("history updated in memory only for session %s: %w", id, err)
	}

	r.log.Debug().
		Str("session", id).
		Int("historyLen", len(snapshot.History)).
		Int("tokens", result.Usage.TotalTokens).
		Msg("message exchanged")
	return assistant, nil
}

// traceItem converts one invocation trace entry into a history item.
// Message-kind entries are skipped: the assistant reply is recorded
// from the final output instead.
func traceItem(trace run.Item) (Item, bool) {
	status := ItemStatus(trace.Status)
	if status == "" {
		status = ItemCompleted
	}
	switch trace.Kind {
	case run.ItemFunctionCall:
		return Item{
			Kind:      KindFunctionCall,
			ID:        uuid.New().String(),
			Timestamp: nowMillis(),
			Status:    status,
			Name:      trace.Name,
			Arguments: trace.Arguments,
			CallID:    trace.CallID,
		}, true
	case run.ItemFunctionCallResult:
		return Item{
			Kind:      KindFunctionCallResult,
			ID:        uuid.New().String(),
			Timestamp: nowMillis(),
			Status:    status,
			Name:      trace.Name,
			CallID:    trace.CallID,
			Output:    trace.Output,
		}, true
	default:
		return Item{}, false
	}
}

// Session returns a copy of the session, if present.
func (r *Registry) Session(id string) (*Session, bool) {
	r.mu.RLock()
	state, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return state.snapshot(), true
}

// Has reports whether a session id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[id]
	return ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// SessionsByAgent returns copies of one agent's sessions, most recent
// activity first.
func (r *Registry) SessionsByAgent(agentID string) []*Session {
	return r.collect(func(state *sessionState) bool {
		return state.agentID == agentID
	})
}

// AllSessions returns copies of every session, most recent activity
// first.
func (r *Registry) AllSessions() []*Session {
	return r.collect(func(*sessionState) bool { return true })
}

func (r *Registry) collect(keep func(*sessionState) bool) []*Session {
	r.mu.RLock()
	states := make([]*sessionState, 0, len(r.sessions))
	for _, state := range r.sessions {
		if keep(state) {
			states = append(states, state)
		}
	}
	r.mu.RUnlock()

	sessions := make([]*Session, 0, len(states))
	for _, state := range states {
		sessions = append(sessions, state.snapshot())
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Context.LastActivity > sessions[j].Context.LastActivity
	})
	return sessions
}

// RecentItems returns the last limit history items (default 50).
func (r *Registry) RecentItems(id string, limit int) ([]Item, error) {
	state, err := r.state(id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	snapshot := state.snapshot()
	if len(snapshot.History) > limit {
		return snapshot.History[len(snapshot.History)-limit:], nil
	}
	return snapshot.History, nil
}

func (r *Registry) state(id string) (*sessionState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return state, nil
}

func (r *Registry) persist(ctx context.Context, sess *Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", sess.ID, err)
	}
	if err := r.store.Write(ctx, vault.SessionPath(sess.AgentID, sess.ID), data); err != nil {
		return fmt.Errorf("failed to persist session %s: %w", sess.ID, err)
	}
	return nil
}

func validateName(name string) error {
	length := utf8.RuneCountInString(name)
	if length < 1 || length > maxNameLength {
		return fmt.Errorf("invalid session name: must be 1-%d characters", maxNameLength)
	}
	return nil
}

// Registry change events.
//
// Information Hiding:
// - Subscriber bookkeeping; delivery happens outside the registry lock

package agent

// EventType tags a registry change.
type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventDeleted  EventType = "deleted"
	EventImported EventType = "imported"
)

// Event describes one registry change. Agent is a snapshot of the
// config after the change; nil for deletions.
type Event struct {
	Type    EventType
	AgentID string
	Agent   *Config
}

// Subscribe registers fn for every subsequent registry event.
// The returned cancel function removes the subscription.
func (r *Registry) Subscribe(fn func(Event)) (cancel func()) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	return func() {
		r.subMu.Lock()
		defer r.subMu.Unlock()
		delete(r.subs, id)
	}
}

// emit delivers an event to every subscriber synchronously, in no
// particular order. Must be called without holding the registry lock.
func (r *Registry) emit(evt Event) {
	r.subMu.Lock()
	fns := make([]func(Event), 0, len(r.subs))
	for _, fn := range r.subs {
		fns = append(fns, fn)
	}
	r.subMu.Unlock()

	for _, fn := range fns {
		fn(evt)
	}
}

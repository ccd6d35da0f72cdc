// Connection abstraction for model providers.
//
// Information Hiding:
// - API client initialization and authentication per kind
// - Request/response format conversion
// - Provider-specific endpoint conventions

package llm

import (
	"context"
	"fmt"
)

// Connection is a live link to one model-serving backend.
// Implementations hide client construction while exposing a
// consistent chat-completions surface.
type Connection interface {
	// Name returns the registry key this connection was created under.
	Name() string

	// Kind returns the provider kind.
	Kind() Kind

	// DefaultModel returns the model used when a caller asks for one
	// by empty name. May be empty for kinds with no sensible default.
	DefaultModel() string

	// ListModels returns the model identifiers the backend advertises.
	// Doubles as the connectivity handshake.
	ListModels(ctx context.Context) ([]string, error)

	// Complete sends a chat completion request.
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)

	// Close releases client resources.
	Close() error
}

// NewConnection constructs the kind-specific connection for a config.
// Fails on an unrecognized kind rather than defaulting. No handshake
// is performed; the first call decides whether the backend is reachable.
func NewConnection(cfg ProviderConfig) (Connection, error) {
	cfg = cfg.withDefaults()
	switch cfg.Kind {
	case KindOpenAI:
		return newOpenAIConnection(cfg), nil
	case KindOpenAICompatible:
		return newCompatConnection(cfg), nil
	case KindOllama:
		return newOllamaConnection(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q (want openai, openai-compatible, or ollama)", cfg.Kind)
	}
}

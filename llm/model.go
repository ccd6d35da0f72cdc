// Model handle binding a connection to one resolved model name.

package llm

import (
	"context"
	"fmt"
)

// Model is a callable handle: a connection plus the model name every
// completion through it will use.
type Model struct {
	conn Connection
	name string
}

// NewModel binds a connection to a model name. An empty name falls
// back to the connection's default; failing that, the bind errors
// rather than deferring the problem to the first completion.
func NewModel(conn Connection, name string) (*Model, error) {
	if name == "" {
		name = conn.DefaultModel()
	}
	if name == "" {
		return nil, fmt.Errorf("model name required for provider %q", conn.Name())
	}
	return &Model{conn: conn, name: name}, nil
}

// Name returns the resolved model name.
func (m *Model) Name() string {
	return m.name
}

// Provider returns the registry key of the backing connection.
func (m *Model) Provider() string {
	return m.conn.Name()
}

// CallOptions carries per-call knobs for Complete.
type CallOptions struct {
	Settings *Settings
	Tools    []ToolDefinition
	Format   *ResponseFormat
}

// Complete issues a chat completion against the bound model.
func (m *Model) Complete(ctx context.Context, messages []Message, opts CallOptions) (Completion, error) {
	return m.conn.Complete(ctx, CompletionRequest{
		Model:    m.name,
		Messages: messages,
		Settings: opts.Settings,
		Tools:    opts.Tools,
		Format:   opts.Format,
	})
}

// OpenAI-compatible connection using the go-openai library.
//
// Information Hiding:
// - Uses the OpenAI protocol against a caller-supplied base URL
// - Sticks to the plain chat-completions endpoint, which is the one
//   surface compatibility servers reliably implement

package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

// CompatConnection talks to any OpenAI-protocol-compatible server
// (LM Studio, vLLM, LiteLLM gateways, and the like).
type CompatConnection struct {
	client *openai.Client
	name   string
}

func newCompatConnection(cfg ProviderConfig) *CompatConnection {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	return &CompatConnection{
		client: openai.NewClientWithConfig(config),
		name:   cfg.Key(),
	}
}

// Name returns the registry key.
func (c *CompatConnection) Name() string {
	return c.name
}

// Kind returns the provider kind.
func (c *CompatConnection) Kind() Kind {
	return KindOpenAICompatible
}

// DefaultModel is empty: compatibility servers expose arbitrary model
// sets, so callers must name one.
func (c *CompatConnection) DefaultModel() string {
	return ""
}

// ListModels lists the models the server advertises.
func (c *CompatConnection) ListModels(ctx context.Context) ([]string, error) {
	return listModelIDs(ctx, c.client)
}

// Complete sends a chat completion request.
func (c *CompatConnection) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return completeChat(ctx, c.client, req)
}

// Close releases client resources.
func (c *CompatConnection) Close() error {
	return nil
}

// Verify CompatConnection implements Connection
var _ Connection = (*CompatConnection)(nil)

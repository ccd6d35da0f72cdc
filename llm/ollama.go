// Ollama connection using the go-openai library.
//
// Information Hiding:
// - Uses Ollama's OpenAI-compatible endpoint with a placeholder key
// - Local-server defaults applied when the config leaves fields empty

package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

const ollamaDefaultModel = "llama3.2"

// OllamaConnection talks to a local Ollama server through its
// OpenAI-compatible /v1 endpoint.
type OllamaConnection struct {
	client *openai.Client
	name   string
}

func newOllamaConnection(cfg ProviderConfig) *OllamaConnection {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	return &OllamaConnection{
		client: openai.NewClientWithConfig(config),
		name:   cfg.Key(),
	}
}

// Name returns the registry key.
func (c *OllamaConnection) Name() string {
	return c.name
}

// Kind returns the provider kind.
func (c *OllamaConnection) Kind() Kind {
	return KindOllama
}

// DefaultModel returns the fallback model for unnamed requests.
func (c *OllamaConnection) DefaultModel() string {
	return ollamaDefaultModel
}

// ListModels lists the locally pulled models.
func (c *OllamaConnection) ListModels(ctx context.Context) ([]string, error) {
	return listModelIDs(ctx, c.client)
}

// Complete sends a chat completion request.
func (c *OllamaConnection) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return completeChat(ctx, c.client, req)
}

// Close releases client resources.
func (c *OllamaConnection) Close() error {
	return nil
}

// Verify OllamaConnection implements Connection
var _ Connection = (*OllamaConnection)(nil)

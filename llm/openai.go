// OpenAI connection using the go-openai library.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for the OpenAI Chat Completions API

package llm

import (
	"context"

	openai "github.com/sashabaranov/go-openai"
)

const openAIDefaultModel = "gpt-4o"

// OpenAIConnection talks to the hosted OpenAI API.
type OpenAIConnection struct {
	client *openai.Client
	name   string
}

func newOpenAIConnection(cfg ProviderConfig) *OpenAIConnection {
	var client *openai.Client
	if cfg.BaseURL != "" {
		config := openai.DefaultConfig(cfg.APIKey)
		config.BaseURL = cfg.BaseURL
		client = openai.NewClientWithConfig(config)
	} else {
		client = openai.NewClient(cfg.APIKey)
	}
	return &OpenAIConnection{client: client, name: cfg.Key()}
}

// Name returns the registry key.
func (c *OpenAIConnection) Name() string {
	return c.name
}

// Kind returns the provider kind.
func (c *OpenAIConnection) Kind() Kind {
	return KindOpenAI
}

// DefaultModel returns the fallback model for unnamed requests.
func (c *OpenAIConnection) DefaultModel() string {
	return openAIDefaultModel
}

// ListModels lists the models the API key can access.
func (c *OpenAIConnection) ListModels(ctx context.Context) ([]string, error) {
	return listModelIDs(ctx, c.client)
}

// Complete sends a chat completion request.
func (c *OpenAIConnection) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	return completeChat(ctx, c.client, req)
}

// Close releases client resources. The HTTP client needs no teardown.
func (c *OpenAIConnection) Close() error {
	return nil
}

// Verify OpenAIConnection implements Connection
var _ Connection = (*OpenAIConnection)(nil)

// Provider configuration and validation.
//
// Information Hiding:
// - The closed set of provider kinds and their per-kind requirements
// - Default endpoint/credential fill-in for local Ollama servers

package llm

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind identifies a supported provider type. The set is closed:
// every connection speaks the OpenAI chat-completions protocol, the
// kinds differ only in endpoint and credential conventions.
type Kind string

const (
	// KindOpenAI is the hosted OpenAI API.
	KindOpenAI Kind = "openai"
	// KindOpenAICompatible is any server speaking the OpenAI protocol
	// at a caller-supplied base URL (LM Studio, vLLM, gateways).
	KindOpenAICompatible Kind = "openai-compatible"
	// KindOllama is a local Ollama server via its OpenAI-compatible endpoint.
	KindOllama Kind = "ollama"
)

// Ollama defaults applied when the config leaves the fields empty.
// The local server ignores the API key but the client requires one.
const (
	OllamaDefaultBaseURL = "http://localhost:11434/v1"
	ollamaKeyPlaceholder = "ollama"
)

// ParseKind parses a provider kind from string (case-insensitive).
// Accepts separator variants like "OpenAICompatible" and "openai_compatible".
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(s)
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "openai":
		return KindOpenAI, nil
	case "openaicompatible":
		return KindOpenAICompatible, nil
	case "ollama":
		return KindOllama, nil
	default:
		return "", fmt.Errorf("unsupported provider type %q (want openai, openai-compatible, or ollama)", s)
	}
}

// ProviderConfig describes one provider connection.
type ProviderConfig struct {
	// ID keys the provider in the registry. Empty means "use the kind
	// string", which keeps one-provider-per-type configs working.
	ID      string `json:"id,omitempty"`
	Kind    Kind   `json:"type"`
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"`
	Enabled bool   `json:"enabled"`
}

// Key returns the registry key for this config.
func (c ProviderConfig) Key() string {
	if c.ID != "" {
		return c.ID
	}
	return string(c.Kind)
}

// ValidationError describes one config violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every violation found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return "invalid provider config: " + strings.Join(msgs, "; ")
}

// Validate checks structural and per-kind requirements, reporting
// every violation rather than stopping at the first.
// Disabled configs skip connectivity-related requirements.
func (c ProviderConfig) Validate() error {
	var errs ValidationErrors

	if _, err := ParseKind(string(c.Kind)); err != nil {
		errs = append(errs, ValidationError{Field: "type", Message: err.Error()})
		return errs
	}

	if c.Enabled {
		switch c.Kind {
		case KindOpenAI:
			if c.APIKey == "" {
				errs = append(errs, ValidationError{Field: "apiKey", Message: "required for openai providers"})
			}
		case KindOpenAICompatible:
			if c.BaseURL == "" {
				errs = append(errs, ValidationError{Field: "baseUrl", Message: "required for openai-compatible providers"})
			}
		}
	}

	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{Field: "baseUrl", Message: fmt.Sprintf("%q is not a valid URL", c.BaseURL)})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// withDefaults returns a copy with kind-specific defaults filled in.
func (c ProviderConfig) withDefaults() ProviderConfig {
	if c.Kind == KindOllama {
		if c.BaseURL == "" {
			c.BaseURL = OllamaDefaultBaseURL
		}
		if c.APIKey == "" {
			c.APIKey = ollamaKeyPlaceholder
		}
	}
	return c
}

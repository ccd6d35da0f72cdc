package llm

import (
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		input string
		want  Kind
	}{
		{"openai", KindOpenAI},
		{"OpenAI", KindOpenAI},
		{"openai-compatible", KindOpenAICompatible},
		{"OpenAICompatible", KindOpenAICompatible},
		{"openai_compatible", KindOpenAICompatible},
		{"ollama", KindOllama},
		{"Ollama", KindOllama},
	}

	for _, tc := range cases {
		got, err := ParseKind(tc.input)
		if err != nil {
			t.Errorf("ParseKind(%q) failed: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseKindUnknown(t *testing.T) {
	for _, input := range []string{"", "anthropic", "gemini", "azure"} {
		if _, err := ParseKind(input); err == nil {
			t.Errorf("ParseKind(%q): expected error", input)
		}
	}
}

func TestProviderConfigKey(t *testing.T) {
	withID := ProviderConfig{ID: "local-lmstudio", Kind: KindOpenAICompatible}
	if got := withID.Key(); got != "local-lmstudio" {
		t.Errorf("expected explicit id, got %q", got)
	}

	withoutID := ProviderConfig{Kind: KindOllama}
	if got := withoutID.Key(); got != "ollama" {
		t.Errorf("expected kind string fallback, got %q", got)
	}
}

func TestProviderConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{
			name:    "openai with key",
			cfg:     ProviderConfig{Kind: KindOpenAI, APIKey: "sk-test", Enabled: true},
			wantErr: false,
		},
		{
			name:    "openai enabled without key",
			cfg:     ProviderConfig{Kind: KindOpenAI, Enabled: true},
			wantErr: true,
		},
		{
			name:    "openai disabled without key",
			cfg:     ProviderConfig{Kind: KindOpenAI, Enabled: false},
			wantErr: false,
		},
		{
			name:    "compatible with base url",
			cfg:     ProviderConfig{Kind: KindOpenAICompatible, BaseURL: "http://localhost:1234/v1", Enabled: true},
			wantErr: false,
		},
		{
			name:    "compatible enabled without base url",
			cfg:     ProviderConfig{Kind: KindOpenAICompatible, Enabled: true},
			wantErr: true,
		},
		{
			name:    "ollama with no fields",
			cfg:     ProviderConfig{Kind: KindOllama, Enabled: true},
			wantErr: false,
		},
		{
			name:    "ollama with malformed base url",
			cfg:     ProviderConfig{Kind: KindOllama, BaseURL: "not a url", Enabled: true},
			wantErr: true,
		},
		{
			name:    "unknown kind",
			cfg:     ProviderConfig{Kind: Kind("anthropic"), Enabled: true},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected valid config, got %v", err)
			}
		})
	}
}

func TestProviderConfigValidateListsEveryViolation(t *testing.T) {
	err := ProviderConfig{Kind: KindOpenAI, BaseURL: "::bad::", Enabled: true}.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	// Missing apiKey and malformed baseUrl are both reported.
	if len(verrs) != 2 {
		t.Errorf("expected 2 violations, got %d: %v", len(verrs), verrs)
	}
	if !strings.Contains(err.Error(), "apiKey") || !strings.Contains(err.Error(), "baseUrl") {
		t.Errorf("expected both fields in message, got %q", err.Error())
	}
}

func TestOllamaDefaults(t *testing.T) {
	cfg := ProviderConfig{Kind: KindOllama, Enabled: true}.withDefaults()

	if cfg.BaseURL != OllamaDefaultBaseURL {
		t.Errorf("expected default base url, got %q", cfg.BaseURL)
	}
	if cfg.APIKey != "ollama" {
		t.Errorf("expected placeholder key, got %q", cfg.APIKey)
	}

	// Explicit values win over defaults.
	custom := ProviderConfig{
		Kind:    KindOllama,
		BaseURL: "http://gpu-box:11434/v1",
		APIKey:  "whatever",
	}.withDefaults()
	if custom.BaseURL != "http://gpu-box:11434/v1" || custom.APIKey != "whatever" {
		t.Errorf("defaults overwrote explicit values: %+v", custom)
	}
}

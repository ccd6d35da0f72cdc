package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeConnection implements Connection without touching the network.
type fakeConnection struct {
	name     string
	kind     Kind
	defModel string
	models   []string
	listErr  error
	lastReq  CompletionRequest
	reply    Completion
	closed   bool
}

func (f *fakeConnection) Name() string         { return f.name }
func (f *fakeConnection) Kind() Kind           { return f.kind }
func (f *fakeConnection) DefaultModel() string { return f.defModel }

func (f *fakeConnection) ListModels(ctx context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.models, nil
}

func (f *fakeConnection) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	f.lastReq = req
	return f.reply, nil
}

func (f *fakeConnection) Close() error {
	f.closed = true
	return nil
}

// register inserts a connection directly, bypassing the network handshake.
func register(r *Registry, conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.Name()] = conn
}

func TestRegistryAddRejectsInvalidConfig(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	err := registry.Add(ctx, ProviderConfig{Kind: KindOpenAI, Enabled: true})
	if err == nil {
		t.Fatal("expected validation error for missing apiKey")
	}
	if !strings.Contains(err.Error(), "apiKey") {
		t.Errorf("expected the error to name the missing field, got %v", err)
	}
	if len(registry.IDs()) != 0 {
		t.Errorf("failed add must not register anything, got %v", registry.IDs())
	}
}

func TestRegistryAddRejectsUnknownKind(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	err := registry.Add(ctx, ProviderConfig{Kind: Kind("gemini"), Enabled: true})
	if err == nil {
		t.Fatal("expected error for unsupported kind")
	}
	if len(registry.IDs()) != 0 {
		t.Errorf("failed add must not register anything, got %v", registry.IDs())
	}
}

func TestRegistryAddDisabledDropsPrior(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	prior := &fakeConnection{name: "openai", kind: KindOpenAI}
	register(registry, prior)

	err := registry.Add(ctx, ProviderConfig{Kind: KindOpenAI, Enabled: false})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if registry.Available("openai") {
		t.Error("disabled config must not stay registered")
	}
	if !prior.closed {
		t.Error("prior connection should be closed when replaced by a disabled config")
	}
}

func TestRegistryRemove(t *testing.T) {
	registry := NewRegistry()

	conn := &fakeConnection{name: "ollama", kind: KindOllama}
	register(registry, conn)

	registry.Remove("ollama")
	if registry.Available("ollama") {
		t.Error("expected provider removed")
	}
	if !conn.closed {
		t.Error("expected connection closed on remove")
	}

	// Removing an absent id is a no-op.
	registry.Remove("ollama")
	registry.Remove("never-added")
}

func TestRegistryGetIsPureLookup(t *testing.T) {
	registry := NewRegistry()

	if _, ok := registry.Get("missing"); ok {
		t.Error("expected lookup miss")
	}

	conn := &fakeConnection{name: "local", kind: KindOpenAICompatible}
	register(registry, conn)

	got, ok := registry.Get("local")
	if !ok {
		t.Fatal("expected lookup hit")
	}
	if got.Name() != "local" {
		t.Errorf("expected 'local', got %q", got.Name())
	}
}

func TestRegistryStatus(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	status := registry.Status(ctx, "missing")
	if status.State != StateDisconnected {
		t.Errorf("expected disconnected for missing provider, got %q", status.State)
	}

	healthy := &fakeConnection{name: "up", kind: KindOpenAI, models: []string{"gpt-4o"}}
	register(registry, healthy)
	if status := registry.Status(ctx, "up"); status.State != StateConnected {
		t.Errorf("expected connected, got %+v", status)
	}

	broken := &fakeConnection{name: "down", kind: KindOllama, listErr: errors.New("connection refused")}
	register(registry, broken)
	status = registry.Status(ctx, "down")
	if status.State != StateError {
		t.Errorf("expected error state, got %q", status.State)
	}
	if status.Error == "" {
		t.Error("expected probe failure message")
	}
}

func TestRegistryTestSwallowsFailures(t *testing.T) {
	registry := NewRegistry()
	ctx := context.Background()

	if registry.Test(ctx, "missing") {
		t.Error("expected false for missing provider")
	}

	broken := &fakeConnection{name: "down", kind: KindOllama, listErr: errors.New("boom")}
	register(registry, broken)
	if registry.Test(ctx, "down") {
		t.Error("expected false for failing probe")
	}

	healthy := &fakeConnection{name: "up", kind: KindOpenAI}
	register(registry, healthy)
	if !registry.Test(ctx, "up") {
		t.Error("expected true for healthy probe")
	}
}

func TestRegistryGetModel(t *testing.T) {
	registry := NewRegistry()

	if _, err := registry.GetModel("missing", "gpt-4o"); err == nil {
		t.Error("expected error for unregistered provider")
	}

	conn := &fakeConnection{name: "openai", kind: KindOpenAI, defModel: "gpt-4o"}
	register(registry, conn)

	model, err := registry.GetModel("openai", "gpt-4o-mini")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if model.Name() != "gpt-4o-mini" {
		t.Errorf("expected explicit model name, got %q", model.Name())
	}
	if model.Provider() != "openai" {
		t.Errorf("expected provider 'openai', got %q", model.Provider())
	}
}

func TestRegistryGetModelDefaultsName(t *testing.T) {
	registry := NewRegistry()

	conn := &fakeConnection{name: "ollama", kind: KindOllama, defModel: "llama3.2"}
	register(registry, conn)

	model, err := registry.GetModel("ollama", "")
	if err != nil {
		t.Fatalf("GetModel failed: %v", err)
	}
	if model.Name() != "llama3.2" {
		t.Errorf("expected default model, got %q", model.Name())
	}

	// A connection with no default cannot resolve an empty name.
	bare := &fakeConnection{name: "local", kind: KindOpenAICompatible}
	register(registry, bare)
	if _, err := registry.GetModel("local", ""); err == nil {
		t.Error("expected error when no model name and no default")
	}
}

func TestModelCompleteRoutesBoundName(t *testing.T) {
	ctx := context.Background()
	conn := &fakeConnection{
		name:  "openai",
		kind:  KindOpenAI,
		reply: Completion{Content: "hi", Usage: TokenUsage{TotalTokens: 7}},
	}

	model, err := NewModel(conn, "gpt-4o")
	if err != nil {
		t.Fatalf("NewModel failed: %v", err)
	}

	temp := 0.2
	got, err := model.Complete(ctx, []Message{UserMessage("hello")}, CallOptions{
		Settings: &Settings{Temperature: &temp},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	if conn.lastReq.Model != "gpt-4o" {
		t.Errorf("expected bound model in request, got %q", conn.lastReq.Model)
	}
	if conn.lastReq.Settings == nil || conn.lastReq.Settings.Temperature == nil {
		t.Error("expected settings forwarded to connection")
	}
	if got.Content != "hi" || got.Usage.TotalTokens != 7 {
		t.Errorf("unexpected completion: %+v", got)
	}
}

func TestRegistryClose(t *testing.T) {
	registry := NewRegistry()

	a := &fakeConnection{name: "a", kind: KindOpenAI}
	b := &fakeConnection{name: "b", kind: KindOllama}
	register(registry, a)
	register(registry, b)

	registry.Close()

	if !a.closed || !b.closed {
		t.Error("expected every connection closed")
	}
	if len(registry.IDs()) != 0 {
		t.Errorf("expected empty registry after Close, got %v", registry.IDs())
	}
}

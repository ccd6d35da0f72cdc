package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/cortexnotes/cortex/agent"
	"github.com/cortexnotes/cortex/llm"
	"github.com/cortexnotes/cortex/run"
	"github.com/cortexnotes/cortex/vault"
)

type stubRunnable struct {
	name     string
	reply    string
	items    []run.Item
	usage    llm.TokenUsage
	err      error
	received [][]llm.Message
}

func (s *stubRunnable) Name() string { return s.name }

func (s *stubRunnable) Invoke(ctx context.Context, messages []llm.Message) (run.Result, error) {
	s.received = append(s.received, messages)
	if s.err != nil {
		return run.Result{}, s.err
	}
	return run.Result{FinalOutput: s.reply, NewItems: s.items, Usage: s.usage}, nil
}

type stubDirectory struct {
	runnables map[string]*stubRunnable
}

func (d *stubDirectory) Has(id string) bool {
	_, ok := d.runnables[id]
	return ok
}

func (d *stubDirectory) IDs() []string {
	ids := make([]string, 0, len(d.runnables))
	for id := range d.runnables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *stubDirectory) Instance(ctx context.Context, id string) (run.Runnable, error) {
	runnable, ok := d.runnables[id]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", id)
	}
	return runnable, nil
}

type failingStore struct {
	vault.Store
	failWrites bool
}

func (s *failingStore) Write(ctx context.Context, path string, data []byte) error {
	if s.failWrites {
		return errors.New("disk full")
	}
	return s.Store.Write(ctx, path, data)
}

func newTestRegistry(reply string) (*Registry, *vault.MemoryStore, *stubRunnable) {
	store := vault.NewMemoryStore()
	runnable := &stubRunnable{name: "Helper", reply: reply}
	dir := &stubDirectory{runnables: map[string]*stubRunnable{"agent-1": runnable}}
	return NewRegistry(store, dir), store, runnable
}

func messageCount(items []Item) int {
	count := 0
	for _, item := range items {
		if item.Kind == KindMessage {
			count++
		}
	}
	return count
}

func TestCreateSession(t *testing.T) {
	reg, store, _ := newTestRegistry("hello")
	ctx := context.Background()

	sess, err := reg.Create(ctx, "agent-1", "Inbox triage")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID == "" {
		t.Error("expected a generated id")
	}
	if sess.AgentID != "agent-1" || sess.Name != "Inbox triage" {
		t.Errorf("unexpected session identity: %+v", sess)
	}
	if sess.Status != StatusActive {
		t.Errorf("expected active status, got %q", sess.Status)
	}
	if len(sess.History) != 0 {
		t.Errorf("expected empty history, got %d items", len(sess.History))
	}
	if sess.Context.TotalMessages != 0 || sess.Context.TotalTokens != 0 || sess.Context.TotalFunctionCalls != 0 {
		t.Errorf("expected zeroed counters, got %+v", sess.Context)
	}
	if sess.Context.LastActivity == 0 {
		t.Error("expected lastActivity stamped")
	}
	if sess.CreatedAt != sess.UpdatedAt {
		t.Errorf("expected createdAt == updatedAt, got %d / %d", sess.CreatedAt, sess.UpdatedAt)
	}
	if !store.Exists(ctx, vault.SessionPath("agent-1", sess.ID)) {
		t.Error("expected session persisted to the vault")
	}
}

func TestCreateSessionUnknownAgent(t *testing.T) {
	reg, _, _ := newTestRegistry("hello")

	_, err := reg.Create(context.Background(), "ghost", "x")
	if err == nil || !strings.Contains(err.Error(), "ghost") {
		t.Errorf("expected error naming the unknown agent, got %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("expected no sessions, got %d", reg.Count())
	}
}

func TestCreateSessionValidatesName(t *testing.T) {
	reg, _, _ := newTestRegistry("hello")
	ctx := context.Background()

	if _, err := reg.Create(ctx, "agent-1", ""); err == nil {
		t.Error("expected empty name rejected")
	}
	if _, err := reg.Create(ctx, "agent-1", strings.Repeat("x", maxNameLength+1)); err == nil {
		t.Error("expected overlong name rejected")
	}
}

func TestSendMessage(t *testing.T) {
	reg, store, _ := newTestRegistry("hello")
	ctx := context.Background()
	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	reply, err := reg.SendMessage(ctx, sess.ID, "hi")
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if reply.Kind != KindMessage || reply.Role != llm.RoleAssistant {
		t.Errorf("expected an assistant message, got %+v", reply)
	}
	if reply.Content != "hello" {
		t.Errorf("expected content hello, got %q", reply.Content)
	}

	got, ok := reg.Session(sess.ID)
	if !ok {
		t.Fatal("expected session to exist")
	}
	if len(got.History) != 2 {
		t.Fatalf("expected history length 2, got %d", len(got.History))
	}
	if got.History[0].Role != llm.RoleUser || got.History[0].Content != "hi" {
		t.Errorf("unexpected user item: %+v", got.History[0])
	}
	if got.History[1].Role != llm.RoleAssistant || got.History[1].Content != "hello" {
		t.Errorf("unexpected assistant item: %+v", got.History[1])
	}
	if got.Context.TotalMessages != 2 {
		t.Errorf("expected totalMessages 2, got %d", got.Context.TotalMessages)
	}
	if got.Context.LastAgentID != "agent-1" {
		t.Errorf("expected lastAgentId agent-1, got %q", got.Context.LastAgentID)
	}

	data, err := store.Read(ctx, vault.SessionPath("agent-1", sess.ID))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Error("expected exchange persisted to the vault")
	}
}

func TestSendMessageProjectsFullHistory(t *testing.T) {
	reg, _, runnable := newTestRegistry("hello")
	ctx := context.Background()
	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := reg.SendMessage(ctx, sess.ID, "first"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if _, err := reg.SendMessage(ctx, sess.ID, "second"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if len(runnable.received) != 2 {
		t.Fatalf("expected 2 invocations, got %d", len(runnable.received))
	}
	first := runnable.received[0]
	if len(first) != 1 || first[0].Content != "first" {
		t.Errorf("unexpected first projection: %+v", first)
	}
	second := runnable.received[1]
	if len(second) != 3 {
		t.Fatalf("expected full history of 3 messages on second send, got %d", len(second))
	}
	if second[0].Content != "first" || second[1].Content != "hello" || second[2].Content != "second" {
		t.Errorf("unexpected second projection: %+v", second)
	}
	if second[0].Role != llm.RoleUser || second[1].Role != llm.RoleAssistant {
		t.Errorf("unexpected roles in projection: %+v", second)
	}
}

func TestSendMessageUnknownSession(t *testing.T) {
	reg, _, _ := newTestRegistry("hello")

	_, err := reg.SendMessage(context.Background(), "bad-session", "hi")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "bad-session") {
		t.Errorf("expected error naming the session, got %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("expected no sessions mutated, got %d", reg.Count())
	}
}

func TestSendMessageRecordsTrace(t *testing.T) {
	reg, _, runnable := newTestRegistry("done")
	ctx := context.Background()
	runnable.items = []run.Item{
		{Kind: run.ItemFunctionCall, Name: "search_notes", Arguments: `{"q":"inbox"}`, CallID: "call-1", Status: "completed"},
		{Kind: run.ItemFunctionCallResult, Name: "search_notes", CallID: "call-1", Status: "completed", Output: "3 notes"},
		{Kind: run.ItemMessage},
	}
	runnable.usage = llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}

	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := reg.SendMessage(ctx, sess.ID, "find my inbox notes"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	got, _ := reg.Session(sess.ID)
	if len(got.History) != 4 {
		t.Fatalf("expected history [user, call, result, assistant], got %d items", len(got.History))
	}
	call := got.History[1]
	if call.Kind != KindFunctionCall || call.Name != "search_notes" || call.Arguments != `{"q":"inbox"}` {
		t.Errorf("unexpected call item: %+v", call)
	}
	result := got.History[2]
	if result.Kind != KindFunctionCallResult || result.Output != "3 notes" {
		t.Errorf("unexpected result item: %+v", result)
	}
	if result.CallID != call.CallID {
		t.Errorf("expected result to reference the preceding call, got %q vs %q", result.CallID, call.CallID)
	}

	if got.Context.TotalFunctionCalls != 1 {
		t.Errorf("expected totalFunctionCalls 1, got %d", got.Context.TotalFunctionCalls)
	}
	if got.Context.TotalTokens != 15 {
		t.Errorf("expected totalTokens 15, got %d", got.Context.TotalTokens)
	}
	if got.Context.TotalMessages != messageCount(got.History) {
		t.Errorf("totalMessages %d diverges from message items %d", got.Context.TotalMessages, messageCount(got.History))
	}
}

func TestSendMessageCounterConsistency(t *testing.T) {
	reg, _, runnable := newTestRegistry("ok")
	ctx := context.Background()
	runnable.usage = llm.TokenUsage{PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10}
	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := reg.SendMessage(ctx, sess.ID, "ping"); err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
	}

	got, _ := reg.Session(sess.ID)
	if got.Context.TotalMessages != 10 {
		t.Errorf("expected totalMessages 10, got %d", got.Context.TotalMessages)
	}
	if got.Context.TotalMessages != messageCount(got.History) {
		t.Errorf("totalMessages %d diverges from message items %d", got.Context.TotalMessages, messageCount(got.History))
	}
	if got.Context.TotalTokens != 50 {
		t.Errorf("expected usage to accumulate to 50 tokens, got %d", got.Context.TotalTokens)
	}
}

func TestSendMessageInvokeFailure(t *testing.T) {
	reg, store, runnable := newTestRegistry("")
	ctx := context.Background()
	runnable.err = errors.New("model unreachable")

	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := reg.SendMessage(ctx, sess.ID, "are you there"); err == nil {
		t.Fatal("expected send to fail")
	}

	got, _ := reg.Session(sess.ID)
	if len(got.History) != 1 || got.History[0].Role != llm.RoleUser {
		t.Errorf("expected only the user message in memory, got %+v", got.History)
	}
	if got.Context.TotalMessages != messageCount(got.History) {
		t.Errorf("counters diverged after failure: %+v", got.Context)
	}

	data, err := store.Read(ctx, vault.SessionPath("agent-1", sess.ID))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if strings.Contains(string(data), "are you there") {
		t.Error("expected failed exchange left unpersisted")
	}
}

func TestSendMessagePersistFailure(t *testing.T) {
	store := &failingStore{Store: vault.NewMemoryStore()}
	runnable := &stubRunnable{name: "Helper", reply: "hello"}
	dir := &stubDirectory{runnables: map[string]*stubRunnable{"agent-1": runnable}}
	reg := NewRegistry(store, dir)
	ctx := context.Background()

	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	store.failWrites = true
	_, err = reg.SendMessage(ctx, sess.ID, "hi")
	if err == nil {
		t.Fatal("expected persistence failure to surface")
	}
	if !strings.Contains(err.Error(), "memory only") {
		t.Errorf("expected error to flag the unsaved state, got %v", err)
	}

	got, _ := reg.Session(sess.ID)
	if len(got.History) != 2 {
		t.Errorf("expected exchange kept in memory, got %d items", len(got.History))
	}
}

func TestUpdateSession(t *testing.T) {
	reg, _, _ := newTestRegistry("hello")
	ctx := context.Background()
	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	name := "Renamed"
	status := StatusPaused
	updated, err := reg.Update(ctx, sess.ID, UpdateInput{Name: &name, Status: &status})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "Renamed" || updated.Status != StatusPaused {
		t.Errorf("unexpected updated session: %+v", updated)
	}
	if updated.UpdatedAt <= sess.UpdatedAt {
		t.Errorf("expected updatedAt to advance: %d -> %d", sess.UpdatedAt, updated.UpdatedAt)
	}

	bad := Status("archived")
	if _, err := reg.Update(ctx, sess.ID, UpdateInput{Status: &bad}); err == nil {
		t.Error("expected unknown status rejected")
	}
	if _, err := reg.Update(ctx, "missing", UpdateInput{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	reg, store, _ := newTestRegistry("hello")
	ctx := context.Background()
	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := reg.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if reg.Has(sess.ID) {
		t.Error("expected session gone after delete")
	}
	if store.Exists(ctx, vault.SessionPath("agent-1", sess.ID)) {
		t.Error("expected vault entry gone after delete")
	}
	if err := reg.Delete(ctx, sess.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestDeleteAllForAgent(t *testing.T) {
	store := vault.NewMemoryStore()
	dir := &stubDirectory{runnables: map[string]*stubRunnable{
		"agent-1": {name: "A"},
		"agent-2": {name: "B"},
	}}
	reg := NewRegistry(store, dir)
	ctx := context.Background()

	for _, name := range []string{"one", "two"} {
		if _, err := reg.Create(ctx, "agent-1", name); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}
	keep, err := reg.Create(ctx, "agent-2", "keep")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := reg.DeleteAllForAgent(ctx, "agent-1"); err != nil {
		t.Fatalf("DeleteAllForAgent failed: %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("expected only the other agent's session left, got %d", reg.Count())
	}
	if !reg.Has(keep.ID) {
		t.Error("expected the other agent's session untouched")
	}
}

func TestCascadeDeleteOnAgentRemoval(t *testing.T) {
	store := vault.NewMemoryStore()
	agents := agent.NewRegistry(store)
	ctx := context.Background()

	cfg, _, err := agents.Create(ctx, agent.CreateInput{
		Name:         "Helper",
		Instructions: "Help.",
		Model:        agent.ModelConfig{Model: "gpt-4o"},
	})
	if err != nil {
		t.Fatalf("Create agent failed: %v", err)
	}

	reg := NewRegistry(store, agents)
	unbind := reg.BindAgentEvents(agents)
	defer unbind()

	sess, err := reg.Create(ctx, cfg.ID, "Chat")
	if err != nil {
		t.Fatalf("Create session failed: %v", err)
	}

	if err := agents.Delete(ctx, cfg.ID); err != nil {
		t.Fatalf("Delete agent failed: %v", err)
	}
	if reg.Has(sess.ID) {
		t.Error("expected agent deletion to cascade to its sessions")
	}
	if store.Exists(ctx, vault.SessionPath(cfg.ID, sess.ID)) {
		t.Error("expected cascaded session file removed")
	}
}

func TestListingOrder(t *testing.T) {
	reg, _, _ := newTestRegistry("hello")
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		sess, err := reg.Create(ctx, "agent-1", name)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, sess.ID)
	}
	for i, activity := range []int64{100, 300, 200} {
		reg.sessions[ids[i]].sess.Context.LastActivity = activity
	}

	all := reg.AllSessions()
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Context.LastActivity > all[i-1].Context.LastActivity {
			t.Errorf("expected non-increasing lastActivity, got %d before %d",
				all[i-1].Context.LastActivity, all[i].Context.LastActivity)
		}
	}

	byAgent := reg.SessionsByAgent("agent-1")
	if len(byAgent) != 3 {
		t.Fatalf("expected 3 sessions for agent, got %d", len(byAgent))
	}
	if byAgent[0].Name != "b" || byAgent[1].Name != "c" || byAgent[2].Name != "a" {
		t.Errorf("unexpected order: %s, %s, %s", byAgent[0].Name, byAgent[1].Name, byAgent[2].Name)
	}
	if len(reg.SessionsByAgent("other")) != 0 {
		t.Error("expected no sessions for an unrelated agent")
	}
}

func TestRecentItems(t *testing.T) {
	reg, _, _ := newTestRegistry("hello")
	ctx := context.Background()
	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	state := reg.sessions[sess.ID]
	for i := 0; i < 60; i++ {
		state.sess.History = append(state.sess.History, Item{
			Kind:    KindMessage,
			ID:      fmt.Sprintf("item-%d", i),
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("m%d", i),
		})
	}

	recent, err := reg.RecentItems(sess.ID, 3)
	if err != nil {
		t.Fatalf("RecentItems failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 items, got %d", len(recent))
	}
	if recent[2].Content != "m59" || recent[0].Content != "m57" {
		t.Errorf("expected the newest items, got %+v", recent)
	}

	capped, err := reg.RecentItems(sess.ID, 0)
	if err != nil {
		t.Fatalf("RecentItems failed: %v", err)
	}
	if len(capped) != defaultRecentLimit {
		t.Errorf("expected default limit %d, got %d", defaultRecentLimit, len(capped))
	}

	if _, err := reg.RecentItems("missing", 5); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadAll(t *testing.T) {
	store := vault.NewMemoryStore()
	dir := &stubDirectory{runnables: map[string]*stubRunnable{"agent-1": {name: "A", reply: "hello"}}}
	reg := NewRegistry(store, dir)
	ctx := context.Background()

	sess, err := reg.Create(ctx, "agent-1", "Chat")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := reg.SendMessage(ctx, sess.ID, "hi"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if err := store.Write(ctx, vault.SessionDir("agent-1")+"/corrupt.json", []byte("{broken")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reloaded := NewRegistry(store, dir)
	if err := reloaded.LoadAll(ctx); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if reloaded.Count() != 1 {
		t.Fatalf("expected 1 session after reload, got %d", reloaded.Count())
	}

	got, ok := reloaded.Session(sess.ID)
	if !ok {
		t.Fatal("expected session to survive reload")
	}
	if len(got.History) != 2 || got.History[1].Content != "hello" {
		t.Errorf("expected history to survive reload, got %+v", got.History)
	}
	if got.Context.TotalMessages != 2 {
		t.Errorf("expected counters to survive reload, got %+v", got.Context)
	}
}

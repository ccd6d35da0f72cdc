// Package session owns chat sessions: ordered history, rolling
// counters, and the send-message pipeline that routes a user turn
// through a runnable agent instance.
//
// Information Hiding:
// - Stored JSON shape (camelCase with a "type" tag per history item)
// - Counter bookkeeping rules
// - History projection into model-facing messages
package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cortexnotes/cortex/llm"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// ItemKind discriminates history items.
type ItemKind string

const (
	KindMessage            ItemKind = "message"
	KindFunctionCall       ItemKind = "function_call"
	KindFunctionCallResult ItemKind = "function_call_result"
	KindHandoff            ItemKind = "handoff"
)

// ItemStatus is the per-item completion state.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemCompleted ItemStatus = "completed"
	ItemFailed    ItemStatus = "failed"
)

// ContentBlock is one typed segment of a structured message.
type ContentBlock struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Item is one history entry. Kind selects which fields carry meaning;
// the rest stay zero and are omitted from JSON. This keeps the vault
// files flat and readable while still acting as a tagged union.
type Item struct {
	Kind      ItemKind   `json:"type"`
	ID        string     `json:"id"`
	Timestamp int64      `json:"timestamp"`
	Status    ItemStatus `json:"status,omitempty"`

	// message
	Role    string         `json:"role,omitempty"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`

	// function_call and function_call_result
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"callId,omitempty"`
	Output    string `json:"output,omitempty"`

	// handoff
	FromAgent string `json:"fromAgent,omitempty"`
	ToAgent   string `json:"toAgent,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Text flattens the item's message content into one string. Text
// blocks contribute verbatim; other block types contribute their JSON
// encoding so nothing is silently dropped.
func (it Item) Text() string {
	if len(it.Blocks) == 0 {
		return it.Content
	}
	parts := make([]string, 0, len(it.Blocks))
	for _, block := range it.Blocks {
		if block.Type == "text" {
			parts = append(parts, block.Text)
			continue
		}
		encoded, err := json.Marshal(block)
		if err != nil {
			continue
		}
		parts = append(parts, string(encoded))
	}
	return strings.Join(parts, "\n")
}

func newMessageItem(role, content string) Item {
	return Item{
		Kind:      KindMessage,
		ID:        uuid.New().String(),
		Timestamp: nowMillis(),
		Status:    ItemCompleted,
		Role:      role,
		Content:   content,
	}
}

// Stats is the session's rolling aggregate context block.
type Stats struct {
	TotalTokens        int    `json:"totalTokens"`
	TotalMessages      int    `json:"totalMessages"`
	TotalFunctionCalls int    `json:"totalFunctionCalls"`
	LastActivity       int64  `json:"lastActivity"`
	LastAgentID        string `json:"lastAgentId,omitempty"`
}

// Session is one conversation thread bound to a single agent.
// History is append-only; items are never reordered or rewritten.
type Session struct {
	ID        string `json:"id"`
	AgentID   string `json:"agentId"`
	Name      string `json:"name"`
	History   []Item `json:"history"`
	Context   Stats  `json:"context"`
	Status    Status `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate freely.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	copied := *s

	copied.History = make([]Item, len(s.History))
	for i, item := range s.History {
		if item.Blocks != nil {
			blocks := make([]ContentBlock, len(item.Blocks))
			for j, block := range item.Blocks {
				block.Data = append(json.RawMessage(nil), block.Data...)
				blocks[j] = block
			}
			item.Blocks = blocks
		}
		copied.History[i] = item
	}
	return &copied
}

// projectMessages converts message-kind history into the role+content
// list handed to the model. Function-call and handoff items are
// bookkeeping, not conversation, and are filtered out. The whole
// history is projected every turn; there is no sliding window.
func projectMessages(history []Item) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, item := range history {
		if item.Kind != KindMessage {
			continue
		}
		messages = append(messages, llm.Message{Role: item.Role, Content: item.Text()})
	}
	return messages
}

// nowMillis returns the current Unix time in milliseconds, the
// timestamp unit used throughout the stored JSON.
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// bumpUpdated returns a strictly increasing updatedAt: wall clock when
// it moved, previous+1 when two mutations land in the same millisecond.
func bumpUpdated(prev int64) int64 {
	now := nowMillis()
	if now <= prev {
		return prev + 1
	}
	return now
}

// Package agent owns agent configurations: the schema, validation,
// and the registry that resolves configs into runnable instances.
//
// Information Hiding:
// - Stored JSON shape (camelCase, matching the host app's vault files)
// - Timestamp stamping and monotonicity rules
// - Deep-copy semantics so callers never alias registry state
package agent

import (
	"encoding/json"
	"time"

	"github.com/cortexnotes/cortex/llm"
)

// ToolType classifies a tool config entry.
type ToolType string

const (
	ToolBuiltin ToolType = "builtin"
	ToolCustom  ToolType = "custom"
	ToolMCP     ToolType = "mcp"
	ToolHosted  ToolType = "hosted"
)

// ToolUseBehavior controls how an execution engine treats tool output.
type ToolUseBehavior string

const (
	ToolUseRunAgain        ToolUseBehavior = "run-again"
	ToolUseStopOnFirstTool ToolUseBehavior = "stop-on-first-tool"
	ToolUseStopAtNamed     ToolUseBehavior = "stop-at-named-tools"
)

// ModelConfig references the model an agent runs on.
type ModelConfig struct {
	// ProviderID names a provider registry entry. Empty means the
	// model is resolved by name alone.
	ProviderID string        `json:"providerId,omitempty"`
	Model      string        `json:"model"`
	Settings   *llm.Settings `json:"settings,omitempty"`
}

// ToolConfig describes one tool made available to the agent.
type ToolConfig struct {
	Type        ToolType        `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Enabled     bool            `json:"enabled"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// HandoffConfig opts an agent into delegating to other agents.
type HandoffConfig struct {
	Enabled       bool     `json:"enabled"`
	AllowedAgents []string `json:"allowedAgents,omitempty"`
}

// OutputType constrains the agent's final output shape.
type OutputType struct {
	// Type is "text" or "json_schema".
	Type   string          `json:"type"`
	Name   string          `json:"name,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
	Strict bool            `json:"strict,omitempty"`
}

// GuardrailConfig names a guardrail applied to agent input or output.
type GuardrailConfig struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// MCPServerConfig describes an MCP server the agent may use,
// reachable either by spawning a command or over a URL.
type MCPServerConfig struct {
	Name       string   `json:"name"`
	Command    string   `json:"command,omitempty"`
	Args       []string `json:"args,omitempty"`
	URL        string   `json:"url,omitempty"`
	CacheTools bool     `json:"cacheTools,omitempty"`
}

// Config is a stored agent configuration.
type Config struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Instructions     string            `json:"instructions"`
	Model            ModelConfig       `json:"model"`
	Tools            []ToolConfig      `json:"tools,omitempty"`
	Handoffs         *HandoffConfig    `json:"handoffs,omitempty"`
	OutputType       *OutputType       `json:"outputType,omitempty"`
	InputGuardrails  []GuardrailConfig `json:"inputGuardrails,omitempty"`
	OutputGuardrails []GuardrailConfig `json:"outputGuardrails,omitempty"`
	MCPServers       []MCPServerConfig `json:"mcpServers,omitempty"`
	ToolUseBehavior  ToolUseBehavior   `json:"toolUseBehavior,omitempty"`
	StopToolNames    []string          `json:"stopToolNames,omitempty"`
	ResetToolChoice  bool              `json:"resetToolChoice,omitempty"`
	CreatedAt        int64             `json:"createdAt"`
	UpdatedAt        int64             `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate freely.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	copied := *c

	copied.Tools = cloneTools(c.Tools)
	copied.InputGuardrails = append([]GuardrailConfig(nil), c.InputGuardrails...)
	copied.OutputGuardrails = append([]GuardrailConfig(nil), c.OutputGuardrails...)
	copied.StopToolNames = append([]string(nil), c.StopToolNames...)

	if c.Model.Settings != nil {
		settings := *c.Model.Settings
		settings.Temperature = clonePtr(c.Model.Settings.Temperature)
		settings.TopP = clonePtr(c.Model.Settings.TopP)
		settings.FrequencyPenalty = clonePtr(c.Model.Settings.FrequencyPenalty)
		settings.PresencePenalty = clonePtr(c.Model.Settings.PresencePenalty)
		copied.Model.Settings = &settings
	}
	if c.Handoffs != nil {
		handoffs := *c.Handoffs
		handoffs.AllowedAgents = append([]string(nil), c.Handoffs.AllowedAgents...)
		copied.Handoffs = &handoffs
	}
	if c.OutputType != nil {
		output := *c.OutputType
		output.Schema = append(json.RawMessage(nil), c.OutputType.Schema...)
		copied.OutputType = &output
	}
	if c.MCPServers != nil {
		copied.MCPServers = make([]MCPServerConfig, len(c.MCPServers))
		for i, server := range c.MCPServers {
			server.Args = append([]string(nil), server.Args...)
			copied.MCPServers[i] = server
		}
	}
	return &copied
}

func cloneTools(tools []ToolConfig) []ToolConfig {
	if tools == nil {
		return nil
	}
	copied := make([]ToolConfig, len(tools))
	for i, tool := range tools {
		tool.Parameters = append(json.RawMessage(nil), tool.Parameters...)
		copied[i] = tool
	}
	return copied
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CreateInput is the caller-supplied part of a new agent config.
type CreateInput struct {
	Name             string            `json:"name"`
	Instructions     string            `json:"instructions"`
	Model            ModelConfig       `json:"model"`
	Tools            []ToolConfig      `json:"tools,omitempty"`
	Handoffs         *HandoffConfig    `json:"handoffs,omitempty"`
	OutputType       *OutputType       `json:"outputType,omitempty"`
	InputGuardrails  []GuardrailConfig `json:"inputGuardrails,omitempty"`
	OutputGuardrails []GuardrailConfig `json:"outputGuardrails,omitempty"`
	MCPServers       []MCPServerConfig `json:"mcpServers,omitempty"`
	ToolUseBehavior  ToolUseBehavior   `json:"toolUseBehavior,omitempty"`
	StopToolNames    []string          `json:"stopToolNames,omitempty"`
	ResetToolChoice  bool              `json:"resetToolChoice,omitempty"`
}

// UpdateInput is a partial patch. Nil fields stay unchanged; slice
// fields replace wholesale when non-nil (pass an empty slice to clear).
type UpdateInput struct {
	Name             *string           `json:"name,omitempty"`
	Instructions     *string           `json:"instructions,omitempty"`
	Model            *ModelConfig      `json:"model,omitempty"`
	Tools            []ToolConfig      `json:"tools,omitempty"`
	Handoffs         *HandoffConfig    `json:"handoffs,omitempty"`
	OutputType       *OutputType       `json:"outputType,omitempty"`
	InputGuardrails  []GuardrailConfig `json:"inputGuardrails,omitempty"`
	OutputGuardrails []GuardrailConfig `json:"outputGuardrails,omitempty"`
	MCPServers       []MCPServerConfig `json:"mcpServers,omitempty"`
	ToolUseBehavior  ToolUseBehavior   `json:"toolUseBehavior,omitempty"`
	StopToolNames    []string          `json:"stopToolNames,omitempty"`
	ResetToolChoice  *bool             `json:"resetToolChoice,omitempty"`
}

// apply merges the patch over cfg in place.
func (u UpdateInput) apply(cfg *Config) {
	if u.Name != nil {
		cfg.Name = *u.Name
	}
	if u.Instructions != nil {
		cfg.Instructions = *u.Instructions
	}
	if u.Model != nil {
		cfg.Model = *u.Model
	}
	if u.Tools != nil {
		cfg.Tools = cloneTools(u.Tools)
	}
	if u.Handoffs != nil {
		cfg.Handoffs = u.Handoffs
	}
	if u.OutputType != nil {
		cfg.OutputType = u.OutputType
	}
	if u.InputGuardrails != nil {
		cfg.InputGuardrails = append([]GuardrailConfig(nil), u.InputGuardrails...)
	}
	if u.OutputGuardrails != nil {
		cfg.OutputGuardrails = append([]GuardrailConfig(nil), u.OutputGuardrails...)
	}
	if u.MCPServers != nil {
		cfg.MCPServers = append([]MCPServerConfig(nil), u.MCPServers...)
	}
	if u.ToolUseBehavior != "" {
		cfg.ToolUseBehavior = u.ToolUseBehavior
	}
	if u.StopToolNames != nil {
		cfg.StopToolNames = append([]string(nil), u.StopToolNames...)
	}
	if u.ResetToolChoice != nil {
		cfg.ResetToolChoice = *u.ResetToolChoice
	}
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

// Execution-engine compatibility check, separate from schema
// validation: schema says the config is well-formed, this says the
// execution engine can actually do something useful with it.

package agent

import (
	"errors"
	"fmt"
	"strings"
)

// CheckCompat inspects a config for execution-engine problems.
// Hard problems (the engine cannot run this config at all) come back
// as the error; soft problems come back as warnings for the caller
// to log without blocking the operation.
func CheckCompat(cfg *Config) (warnings []string, err error) {
	var hard []string

	if strings.TrimSpace(cfg.Name) == "" {
		hard = append(hard, "agent has no name")
	}
	if strings.TrimSpace(cfg.Instructions) == "" {
		hard = append(hard, "agent has no instructions")
	}
	if strings.TrimSpace(cfg.Model.Model) == "" {
		hard = append(hard, "agent has no model reference")
	}

	for _, tool := range cfg.Tools {
		if tool.Type == ToolMCP && tool.Enabled && len(cfg.MCPServers) == 0 {
			warnings = append(warnings, fmt.Sprintf("tool %q is an enabled mcp tool but no MCP servers are configured", tool.Name))
		}
	}
	if cfg.Handoffs != nil && cfg.Handoffs.Enabled && len(cfg.Handoffs.AllowedAgents) == 0 {
		warnings = append(warnings, "handoffs are enabled but the allowed-agents list is empty")
	}

	if len(hard) > 0 {
		return warnings, errors.New("config is not runnable: " + strings.Join(hard, "; "))
	}
	return warnings, nil
}

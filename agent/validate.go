// Schema validation for agent configs.
//
// Information Hiding:
// - Field limits and allowed enum values
// - Violations are collected, not thrown one at a time

package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 100

// ValidationError describes one schema violation.
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
	return "invalid agent config: " + strings.Join(msgs, "; ")
}

// Validate checks a fully assembled config against the schema,
// reporting every violation rather than stopping at the first.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.ID == "" {
		errs = append(errs, ValidationError{Field: "id", Message: "must not be empty"})
	}
	errs = append(errs, validateCommon(c.Name, c.Instructions, c.Model)...)
	errs = append(errs, validateOptional(c.Tools, c.OutputType, c.MCPServers, c.InputGuardrails, c.OutputGuardrails, c.ToolUseBehavior, c.StopToolNames)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate checks a creation input before any ids or timestamps exist.
func (in CreateInput) Validate() error {
	var errs ValidationErrors

	errs = append(errs, validateCommon(in.Name, in.Instructions, in.Model)...)
	errs = append(errs, validateOptional(in.Tools, in.OutputType, in.MCPServers, in.InputGuardrails, in.OutputGuardrails, in.ToolUseBehavior, in.StopToolNames)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateCommon(name, instructions string, model ModelConfig) ValidationErrors {
	var errs ValidationErrors

	nameLen := utf8.RuneCountInString(name)
	if nameLen < 1 || nameLen > maxNameLength {
		errs = append(errs, ValidationError{Field: "name", Message: fmt.Sprintf("must be 1-%d characters", maxNameLength)})
	}
	if strings.TrimSpace(instructions) == "" {
		errs = append(errs, ValidationError{Field: "instructions", Message: "must not be empty"})
	}
	if strings.TrimSpace(model.Model) == "" {
		errs = append(errs, ValidationError{Field: "model.model", Message: "model name is required"})
	}

	if s := model.Settings; s != nil {
		if s.Temperature != nil && (*s.Temperature < 0 || *s.Temperature > 2) {
			errs = append(errs, ValidationError{Field: "model.settings.temperature", Message: "must be between 0 and 2"})
		}
		if s.MaxTokens < 0 {
			errs = append(errs, ValidationError{Field: "model.settings.maxTokens", Message: "must not be negative"})
		}
		if s.TopP != nil && (*s.TopP < 0 || *s.TopP > 1) {
			errs = append(errs, ValidationError{Field: "model.settings.topP", Message: "must be between 0 and 1"})
		}
		if s.FrequencyPenalty != nil && (*s.FrequencyPenalty < -2 || *s.FrequencyPenalty > 2) {
			errs = append(errs, ValidationError{Field: "model.settings.frequencyPenalty", Message: "must be between -2 and 2"})
		}
		if s.PresencePenalty != nil && (*s.PresencePenalty < -2 || *s.PresencePenalty > 2) {
			errs = append(errs, ValidationError{Field: "model.settings.presencePenalty", Message: "must be between -2 and 2"})
		}
	}
	return errs
}

func validateOptional(
	tools []ToolConfig,
	output *OutputType,
	servers []MCPServerConfig,
	inputGuardrails, outputGuardrails []GuardrailConfig,
	behavior ToolUseBehavior,
	stopNames []string,
) ValidationErrors {
	var errs ValidationErrors

	for i, tool := range tools {
		field := fmt.Sprintf("tools[%d]", i)
		if tool.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "must not be empty"})
		}
		switch tool.Type {
		case ToolBuiltin, ToolCustom, ToolMCP, ToolHosted:
		default:
			errs = append(errs, ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown tool type %q", tool.Type)})
		}
	}

	if output != nil {
		switch output.Type {
		case "text":
		case "json_schema":
			if len(output.Schema) == 0 {
				errs = append(errs, ValidationError{Field: "outputType.schema", Message: "required for json_schema output"})
			}
			if output.Name == "" {
				errs = append(errs, ValidationError{Field: "outputType.name", Message: "required for json_schema output"})
			}
		default:
			errs = append(errs, ValidationError{Field: "outputType.type", Message: fmt.Sprintf("unknown output type %q", output.Type)})
		}
	}

	for i, server := range servers {
		field := fmt.Sprintf("mcpServers[%d]", i)
		if server.Name == "" {
			errs = append(errs, ValidationError{Field: field + ".name", Message: "must not be empty"})
		}
		hasCommand := server.Command != ""
		hasURL := server.URL != ""
		if hasCommand == hasURL {
			errs = append(errs, ValidationError{Field: field, Message: "exactly one of command or url is required"})
		}
	}

	for i, g := range inputGuardrails {
		if g.Name == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("inputGuardrails[%d].name", i), Message: "must not be empty"})
		}
	}
	for i, g := range outputGuardrails {
		if g.Name == "" {
			errs = append(errs, ValidationError{Field: fmt.Sprintf("outputGuardrails[%d].name", i), Message: "must not be empty"})
		}
	}

	switch behavior {
	case "", ToolUseRunAgain, ToolUseStopOnFirstTool:
	case ToolUseStopAtNamed:
		if len(stopNames) == 0 {
			errs = append(errs, ValidationError{Field: "stopToolNames", Message: "required for stop-at-named-tools"})
		}
	default:
		errs = append(errs, ValidationError{Field: "toolUseBehavior", Message: fmt.Sprintf("unknown behavior %q", behavior)})
	}

	return errs
}

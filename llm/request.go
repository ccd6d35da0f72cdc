// Request/response conversion between the neutral types and go-openai.

package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// buildChatRequest converts a CompletionRequest to the go-openai form,
// applying sampling settings, tools, and response format when present.
func buildChatRequest(req CompletionRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.Messages),
	}

	if s := req.Settings; s != nil {
		if s.Temperature != nil {
			out.Temperature = float32(*s.Temperature)
		}
		if s.MaxTokens > 0 {
			out.MaxTokens = s.MaxTokens
		}
		if s.TopP != nil {
			out.TopP = float32(*s.TopP)
		}
		if s.FrequencyPenalty != nil {
			out.FrequencyPenalty = float32(*s.FrequencyPenalty)
		}
		if s.PresencePenalty != nil {
			out.PresencePenalty = float32(*s.PresencePenalty)
		}
		if s.ToolChoice != "" {
			out.ToolChoice = s.ToolChoice
		}
	}

	if len(req.Tools) > 0 {
		out.Tools = toOpenAITools(req.Tools)
	}

	if f := req.Format; f != nil && f.Type != ResponseFormatText {
		out.ResponseFormat = toOpenAIFormat(f)
	}

	return out
}

// toOpenAIMessages converts messages, carrying tool calls and tool
// results through for multi-turn tool conversations.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		converted := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		for _, tc := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(tc.Arguments),
				},
			})
		}
		if msg.ToolCallID != "" {
			converted.ToolCallID = msg.ToolCallID
		}
		result[i] = converted
	}
	return result
}

// toOpenAITools converts tool definitions to OpenAI format.
func toOpenAITools(tools []ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return result
}

// toOpenAIFormat converts a response format descriptor.
func toOpenAIFormat(f *ResponseFormat) *openai.ChatCompletionResponseFormat {
	out := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatType(f.Type),
	}
	if f.Type == ResponseFormatJSONSchema && f.JSONSchema != nil {
		out.JSONSchema = &openai.ChatCompletionResponseFormatJSONSchema{
			Name:        f.JSONSchema.Name,
			Description: f.JSONSchema.Description,
			Schema:      f.JSONSchema.Schema,
			Strict:      f.JSONSchema.Strict,
		}
	}
	return out
}

// completeChat issues the request and converts the first choice back.
func completeChat(ctx context.Context, client *openai.Client, req CompletionRequest) (Completion, error) {
	resp, err := client.CreateChatCompletion(ctx, buildChatRequest(req))
	if err != nil {
		return Completion{}, fmt.Errorf("chat completion failed: %w", err)
	}

	completion := Completion{
		Usage: TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if len(resp.Choices) > 0 {
		msg := resp.Choices[0].Message
		completion.Content = msg.Content
		for _, tc := range msg.ToolCalls {
			completion.ToolCalls = append(completion.ToolCalls, ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: []byte(tc.Function.Arguments),
			})
		}
	}
	return completion, nil
}

// listModelIDs lists the backend's advertised model identifiers.
func listModelIDs(ctx context.Context, client *openai.Client) ([]string, error) {
	list, err := client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

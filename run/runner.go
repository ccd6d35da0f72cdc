// Package run defines the runnable-instance contract: the object a
// resolved agent config turns into, invocable with a conversation to
// produce one assistant turn.
//
// Information Hiding:
// - Model binding (explicit handle vs lazy environment fallback)
// - System-prompt assembly from static or dynamic instructions
// - Trace extraction from the completion response
// - Structured-output cleanup on the final text

package run

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/cortexnotes/cortex/internal/json"
	"github.com/cortexnotes/cortex/llm"
)

// Runnable is a resolved agent instance capable of executing one
// conversational turn.
type Runnable interface {
	// Name returns the agent name this instance was built from.
	Name() string

	// Invoke executes a turn over the full projected conversation.
	Invoke(ctx context.Context, messages []llm.Message) (Result, error)
}

// ItemKind tags entries in an invocation's result trace.
type ItemKind string

const (
	ItemMessage            ItemKind = "message"
	ItemFunctionCall       ItemKind = "function_call"
	ItemFunctionCallResult ItemKind = "function_call_result"
)

// Item is one entry in the invocation trace.
type Item struct {
	Kind      ItemKind
	Name      string
	Arguments string
	CallID    string
	Status    string
	Output    string
}

// Result is the outcome of one invocation.
type Result struct {
	// FinalOutput is the assistant's textual reply, empty if the
	// model produced none.
	FinalOutput string

	// NewItems holds trace entries produced during the turn
	// (function calls the model requested).
	NewItems []Item

	// Usage carries the real token counts from the API response.
	Usage llm.TokenUsage
}

// InstructionsFunc produces instructions at invocation time.
type InstructionsFunc func(ctx context.Context) (string, error)

// Config describes how to build a runnable instance.
type Config struct {
	// Name of the agent.
	Name string

	// Instructions become the system message. Ignored when an
	// instructions function is attached.
	Instructions string

	// Model is the bare model name, used when Handle is nil.
	Model string

	// Handle is an optional provider-bound model. When nil, the
	// runner falls back to a default OpenAI connection built from
	// OPENAI_API_KEY the first time it is needed.
	Handle *llm.Model

	// Settings holds optional sampling parameters.
	Settings *llm.Settings

	// Tools are advertised to the model. Execution is the host
	// application's concern; calls surface as trace items.
	Tools []llm.ToolDefinition

	// Format constrains the response shape (structured output).
	Format *llm.ResponseFormat
}

// Runner is the default completion-backed Runnable.
type Runner struct {
	cfg              Config
	instructionsFunc InstructionsFunc

	fallbackOnce sync.Once
	fallback     *llm.Model
	fallbackErr  error
}

// New creates a runnable instance from a config. Construction never
// fails: a missing provider binding is only an error once the
// instance is actually invoked and no fallback can be built.
func New(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// WithInstructionsFunc attaches dynamic instructions, overriding the
// static ones at each invocation.
func (r *Runner) WithInstructionsFunc(fn InstructionsFunc) *Runner {
	r.instructionsFunc = fn
	return r
}

// Name returns the agent name.
func (r *Runner) Name() string {
	return r.cfg.Name
}

// Invoke executes one turn: system prompt + projected history in,
// assistant text and trace out.
func (r *Runner) Invoke(ctx context.Context, messages []llm.Message) (Result, error) {
	instructions, err := r.instructions(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve instructions for %q: %w", r.cfg.Name, err)
	}

	conversation := make([]llm.Message, 0, len(messages)+1)
	if instructions != "" {
		conversation = append(conversation, llm.SystemMessage(instructions))
	}
	conversation = append(conversation, messages...)

	model, err := r.model()
	if err != nil {
		return Result{}, err
	}

	completion, err := model.Complete(ctx, conversation, llm.CallOptions{
		Settings: r.cfg.Settings,
		Tools:    r.cfg.Tools,
		Format:   r.cfg.Format,
	})
	if err != nil {
		return Result{}, fmt.Errorf("invocation of %q failed: %w", r.cfg.Name, err)
	}

	finalOutput := completion.Content
	if r.cfg.Format != nil {
		// Models sometimes fence or preface structured output; keep
		// the bare payload when one parses, the raw text otherwise.
		if payload, err := json.ExtractObject(finalOutput); err == nil {
			finalOutput = payload
		}
	}

	result := Result{
		FinalOutput: finalOutput,
		Usage:       completion.Usage,
	}
	for _, call := range completion.ToolCalls {
		result.NewItems = append(result.NewItems, Item{
			Kind:      ItemFunctionCall,
			Name:      call.Name,
			Arguments: string(call.Arguments),
			CallID:    call.ID,
			Status:    "completed",
		})
	}
	return result, nil
}

func (r *Runner) instructions(ctx context.Context) (string, error) {
	if r.instructionsFunc != nil {
		return r.instructionsFunc(ctx)
	}
	return r.cfg.Instructions, nil
}

// model returns the bound handle, or lazily builds the environment
// fallback so a bare model name stays resolvable without provider wiring.
func (r *Runner) model() (*llm.Model, error) {
	if r.cfg.Handle != nil {
		return r.cfg.Handle, nil
	}

	r.fallbackOnce.Do(func() {
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			r.fallbackErr = fmt.Errorf("agent %q has no provider bound and OPENAI_API_KEY is not set", r.cfg.Name)
			return
		}
		conn, err := llm.NewConnection(llm.ProviderConfig{
			Kind:    llm.KindOpenAI,
			APIKey:  apiKey,
			Enabled: true,
		})
		if err != nil {
			r.fallbackErr = err
			return
		}
		r.fallback, r.fallbackErr = llm.NewModel(conn, r.cfg.Model)
	})
	return r.fallback, r.fallbackErr
}

// Verify Runner implements Runnable
var _ Runnable = (*Runner)(nil)

package llm

import (
	"context"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string

	// ToolCalls is set on assistant messages that requested tool execution.
	ToolCalls []ToolCall
	// ToolResult is set on messages carrying a tool's output back to the model.
	ToolResult *ToolResult
}

// ToolCall is a model request to run one registered tool.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResult carries a tool's output back into the conversation.
type ToolResult struct {
	Name    string
	Content string
}

// ToolParam describes a single parameter of a tool schema.
type ToolParam struct {
	Name        string
	Type        string // "string", "integer", "number", "boolean"
	Description string
	Required    bool
}

// Tool is the provider-agnostic declaration of a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParam
}

// ChatResponse is the result of a tool-enabled chat turn. Text and
// ToolCalls can both be present; ToolCalls empty means the model chose
// to answer directly.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature  float64
	MaxTokens    int
	Model        string // Override default model
	SystemPrompt string
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}

// ToolCallingProvider extends LLMProvider with function calling. The
// agent loop requires this capability from its decision model.
type ToolCallingProvider interface {
	LLMProvider

	ChatWithTools(ctx context.Context, history []Message, tools []Tool, options ...Option) (*ChatResponse, error)
}

// StreamingProvider emits the response token by token. onToken is called
// from the provider goroutine for every text delta; the accumulated full
// text is returned once the stream ends.
type StreamingProvider interface {
	Stream(ctx context.Context, history []Message, onToken func(token string), options ...Option) (string, error)
}

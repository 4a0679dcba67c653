// Package llm defines the port for chat-completion providers.
package llm

import "context"

// Message roles follow the chat-completion convention.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn in a completion transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // set on tool-result turns
}

// ToolCall is a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition describes a tool to the model. Parameters is a JSON Schema
// object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage is the token accounting for one completion call.
type Usage struct {
	TokensIn  int `json:"input_tokens"`
	TokensOut int `json:"output_tokens"`
}

// Response is the provider-neutral completion result.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// Provider is the port for a chat-completion backend. Complete returns an
// error on transport or auth failure; the agent converts that into a task
// failure.
type Provider interface {
	// Model returns the model identifier used for cost attribution.
	Model() string

	// Complete sends the transcript and tool definitions and returns the
	// model's next turn.
	Complete(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error)
}

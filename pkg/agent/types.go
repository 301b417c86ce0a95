// Package agent implements the bounded tool-calling loop at the heart of the
// assistant: a registry of accounting tools, an executor that normalizes every
// tool outcome, and the iterate-call-reinject cycle driving the model.
package agent

import (
	"context"
	"encoding/json"
)

// Conversation roles. Callers may only submit user and assistant turns; system
// and tool turns are produced internally.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// FallbackMessage is returned when a backend produces no usable text.
const FallbackMessage = "Désolé, je n'ai pas pu générer de réponse."

// Message is one turn of conversation in the backend-neutral shape. Assistant
// turns that requested tools carry ToolCalls; tool-result turns carry the
// ToolCallID they answer.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall is a model-issued request to invoke a named tool. Arguments holds
// the raw JSON so adapters can echo it back verbatim.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Usage reports token consumption for the final model turn.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// TurnKind tags a normalized model response.
type TurnKind string

const (
	TurnFinal     TurnKind = "final"
	TurnToolCalls TurnKind = "tool_calls"
)

// TurnResult is the normalized response of one model turn, regardless of
// which backend produced it.
type TurnResult struct {
	Kind  TurnKind
	Text  string
	Calls []ToolCall
	Usage *Usage
}

// PromptContext carries the per-request identifiers woven into the system
// prompt.
type PromptContext struct {
	UserID    string
	CompanyID string
}

// ChatModel sends one turn to a language model backend and normalizes the
// response. Implementations live in pkg/models; nothing outside of them may
// branch on backend identity.
type ChatModel interface {
	// Mode identifies the active backend, e.g. "anthropic-claude".
	Mode() string
	SendTurn(ctx context.Context, prompt PromptContext, history []Message) (*TurnResult, error)
}

// ToolSpec describes how a tool is presented to the model. The same spec is
// rendered into each backend's wire encoding, so the two encodings cannot
// drift.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// ToolRequest captures an invocation request for a tool.
type ToolRequest struct {
	Arguments map[string]any
}

// ToolResponse holds the success payload a tool produced. The payload must be
// JSON-serializable; the executor turns it into a tool-result turn.
type ToolResponse struct {
	Payload any
}

// Tool exposes structured metadata and an invocation handler.
type Tool interface {
	Spec() ToolSpec
	Invoke(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

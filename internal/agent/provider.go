package agent

import (
	"context"
	"errors"

	"github.com/steward-ai/steward/internal/dispatch"
	"github.com/steward-ai/steward/pkg/models"
)

// ErrNoProvider is returned when a loop is constructed without an LLM provider.
var ErrNoProvider = errors.New("no LLM provider configured")

// StopReason classifies why the model stopped generating.
type StopReason string

const (
	// StopEndOfTurn means the model finished a complete answer.
	StopEndOfTurn StopReason = "end_of_turn"
	// StopToolUse means the model wants tool results before continuing.
	StopToolUse StopReason = "tool_use"
	// StopOther covers every other stop condition (length caps, filters).
	StopOther StopReason = "other"
)

// CompletionMessage is a single message in a model conversation.
//
// Role values: "user", "assistant", "tool". Assistant messages may carry
// tool calls; tool messages carry the matching results keyed by call id.
type CompletionMessage struct {
	Role        string            `json:"role"`
	Content     string            `json:"content,omitempty"`
	ToolCalls   []models.ToolCall `json:"tool_calls,omitempty"`
	ToolResults []ToolResultBlock `json:"tool_results,omitempty"`
}

// ToolResultBlock pairs one tool call id with its result.
type ToolResultBlock struct {
	CallID string                   `json:"call_id"`
	Result *models.CapabilityResult `json:"result"`
}

// CompletionRequest is a single model call.
type CompletionRequest struct {
	Model     string              `json:"model"`
	System    string              `json:"system,omitempty"`
	Messages  []CompletionMessage `json:"messages"`
	Tools     []dispatch.ToolSpec `json:"tools,omitempty"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

// CompletionChunk is one element of a streaming model response. Text arrives
// incrementally; tool calls arrive whole. The final chunk has Done set and
// carries the stop reason and token usage.
type CompletionChunk struct {
	Text     string           `json:"text,omitempty"`
	ToolCall *models.ToolCall `json:"tool_call,omitempty"`

	Done       bool       `json:"done,omitempty"`
	StopReason StopReason `json:"stop_reason,omitempty"`

	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`

	Error error `json:"-"`
}

// LLMProvider streams completions from a language model.
type LLMProvider interface {
	// Name identifies the provider for logging and metrics.
	Name() string

	// Complete starts a completion and returns a channel of chunks. The
	// channel is closed after the Done or Error chunk.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)
}

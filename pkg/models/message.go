package models

import (
	"encoding/json"
	"time"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single transcript entry, scoped to a channel and totally
// ordered by its store-assigned ID.
type Message struct {
	ID        int64     `json:"id"`
	Channel   string    `json:"channel"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ToolCall represents an LLM's request to execute a tool. Name is the
// qualified wire name exactly as the model emitted it.
type ToolCall struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// CapabilityResult is the uniform outcome of every tool, capability, and
// bridge invocation. It is always a value, never an exception: failures set
// Success=false and carry a human-readable Error.
type CapabilityResult struct {
	Success bool            `json:"success"`
	Text    string          `json:"text"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Failure builds a failed CapabilityResult whose text and error carry the
// same message.
func Failure(msg string) *CapabilityResult {
	return &CapabilityResult{Success: false, Text: msg, Error: msg}
}

// Summary is a rolling compaction summary covering a channel's messages up to
// and including CoversUpToID.
type Summary struct {
	Channel      string    `json:"channel"`
	Text         string    `json:"text"`
	CoversUpToID int64     `json:"covers_up_to_id"`
	CreatedAt    time.Time `json:"created_at"`
}

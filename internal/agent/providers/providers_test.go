package providers

import (
	"encoding/json"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/steward-ai/steward/internal/agent"
	"github.com/steward-ai/steward/internal/dispatch"
	"github.com/steward-ai/steward/pkg/models"
)

func TestMapAnthropicStopReason(t *testing.T) {
	cases := map[string]agent.StopReason{
		"end_turn":      agent.StopEndOfTurn,
		"stop_sequence": agent.StopEndOfTurn,
		"tool_use":      agent.StopToolUse,
		"max_tokens":    agent.StopOther,
		"":              agent.StopOther,
	}
	for reason, want := range cases {
		if got := mapAnthropicStopReason(reason); got != want {
			t.Errorf("mapAnthropicStopReason(%q) = %v, want %v", reason, got, want)
		}
	}
}

func TestConvertMessagesRolesAndBlocks(t *testing.T) {
	msgs := []agent.CompletionMessage{
		{Role: "user", Content: "what time is it?"},
		{
			Role: "assistant",
			ToolCalls: []models.ToolCall{
				{ID: "c1", Name: "time__get", Input: json.RawMessage(`{"timezone":"UTC"}`)},
			},
		},
		{
			Role: "tool",
			ToolResults: []agent.ToolResultBlock{
				{CallID: "c1", Result: &models.CapabilityResult{Success: true, Text: "12:00 UTC"}},
			},
		},
		{Role: "assistant", Content: ""}, // empty, must be skipped
	}

	out, err := convertMessages(msgs)
	if err != nil {
		t.Fatalf("convertMessages: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3 (empty message skipped)", len(out))
	}
	if out[0].Role != "user" || out[1].Role != "assistant" {
		t.Errorf("roles = %v, %v", out[0].Role, out[1].Role)
	}
	// Tool results ride in a user-role message.
	if out[2].Role != "user" {
		t.Errorf("tool result role = %v, want user", out[2].Role)
	}
}

func TestConvertMessagesRejectsBadToolInput(t *testing.T) {
	msgs := []agent.CompletionMessage{
		{
			Role:      "assistant",
			ToolCalls: []models.ToolCall{{ID: "c", Name: "t", Input: json.RawMessage(`{broken`)}},
		},
	}
	if _, err := convertMessages(msgs); err == nil {
		t.Fatal("expected error for malformed tool input")
	}
}

func TestConvertToolsDefaultsEmptySchema(t *testing.T) {
	out, err := convertTools([]dispatch.ToolSpec{
		{Name: "memory_search", Description: "search memory"},
	})
	if err != nil {
		t.Fatalf("convertTools: %v", err)
	}
	if len(out) != 1 || out[0].OfTool == nil {
		t.Fatalf("out = %+v", out)
	}
	if out[0].OfTool.Name != "memory_search" {
		t.Errorf("name = %q", out[0].OfTool.Name)
	}
	if out[0].OfTool.InputSchema.Type != "object" {
		t.Errorf("schema type = %q, want object", out[0].OfTool.InputSchema.Type)
	}
}

func TestIsRetryableError(t *testing.T) {
	retryable := []string{
		"rate_limit_error: slow down",
		"status 429",
		"internal server error",
		"502 bad gateway",
		"request timeout",
		"connection refused",
	}
	for _, msg := range retryable {
		if !isRetryableError(errors.New(msg)) {
			t.Errorf("isRetryableError(%q) = false, want true", msg)
		}
	}

	if isRetryableError(nil) {
		t.Error("nil error must not be retryable")
	}
	if isRetryableError(errors.New("invalid_request_error: bad model")) {
		t.Error("client errors must not be retryable")
	}
}

func TestConvertToOpenAIMessages(t *testing.T) {
	msgs := []agent.CompletionMessage{
		{Role: "user", Content: "hi"},
		{
			Role:    "assistant",
			Content: "let me check",
			ToolCalls: []models.ToolCall{
				{ID: "c1", Name: "time__get", Input: json.RawMessage(`{}`)},
				{ID: "c2", Name: "notes__list", Input: json.RawMessage(`{}`)},
			},
		},
		{
			Role: "tool",
			ToolResults: []agent.ToolResultBlock{
				{CallID: "c1", Result: &models.CapabilityResult{Success: true, Text: "12:00"}},
				{CallID: "c2", Result: models.Failure("notes unavailable")},
			},
		},
	}

	out := convertToOpenAIMessages(msgs, "be helpful")
	// system + user + assistant + two tool messages
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleSystem || out[0].Content != "be helpful" {
		t.Errorf("system message = %+v", out[0])
	}
	if len(out[2].ToolCalls) != 2 {
		t.Errorf("assistant tool calls = %d, want 2", len(out[2].ToolCalls))
	}
	if out[3].Role != openai.ChatMessageRoleTool || out[3].ToolCallID != "c1" {
		t.Errorf("first tool message = %+v", out[3])
	}
	if out[4].ToolCallID != "c2" || out[4].Content != "notes unavailable" {
		t.Errorf("failed tool message = %+v", out[4])
	}
}

func TestConvertToOpenAIMessagesNoSystem(t *testing.T) {
	out := convertToOpenAIMessages([]agent.CompletionMessage{{Role: "user", Content: "hi"}}, "")
	if len(out) != 1 || out[0].Role != openai.ChatMessageRoleUser {
		t.Fatalf("out = %+v", out)
	}
}

func TestConvertToOpenAITools(t *testing.T) {
	out := convertToOpenAITools([]dispatch.ToolSpec{
		{Name: "time__get", Description: "current time", InputSchema: json.RawMessage(`{"type":"object","properties":{}}`)},
		{Name: "bare"},
	})
	if len(out) != 2 {
		t.Fatalf("len = %d", len(out))
	}
	if out[0].Function.Name != "time__get" || out[0].Function.Description != "current time" {
		t.Errorf("fn = %+v", out[0].Function)
	}
	if string(out[1].Function.Parameters.(json.RawMessage)) != `{"type":"object"}` {
		t.Errorf("empty schema not defaulted: %v", out[1].Function.Parameters)
	}
}

func TestProviderConstructorsRequireAPIKey(t *testing.T) {
	if _, err := NewAnthropicProvider(AnthropicConfig{}); err == nil {
		t.Error("NewAnthropicProvider accepted an empty API key")
	}
	if _, err := NewOpenAIProvider(OpenAIConfig{}); err == nil {
		t.Error("NewOpenAIProvider accepted an empty API key")
	}
}

// Package providers implements LLM provider integrations for the turn loop.
//
// Each provider converts between the loop's internal request format and its
// API, streams tokens as they arrive, and retries transient failures with
// exponential backoff.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/steward-ai/steward/internal/agent"
	"github.com/steward-ai/steward/internal/dispatch"
	"github.com/steward-ai/steward/pkg/models"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicProvider implements agent.LLMProvider against the Anthropic API.
// It is safe for concurrent use; each Complete call owns its own stream.
type AnthropicProvider struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// AnthropicConfig configures the provider. Only APIKey is required.
type AnthropicConfig struct {
	APIKey  string
	BaseURL string

	// MaxRetries bounds retry attempts for transient failures. Default: 3.
	MaxRetries int

	// RetryDelay is the backoff base; actual delay is RetryDelay * 2^attempt.
	// Default: 1 second.
	RetryDelay time.Duration

	// DefaultModel is used when a request does not name one.
	DefaultModel string
}

func NewAnthropicProvider(cfg AnthropicConfig) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultAnthropicModel
	}

	options := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicProvider{
		client:       anthropic.NewClient(options...),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Complete streams a completion. The returned channel closes after the Done
// or Error chunk.
func (p *AnthropicProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	chunks := make(chan *agent.CompletionChunk)

	go func() {
		defer close(chunks)

		var stream *ssestream.Stream[anthropic.MessageStreamEventUnion]
		var err error

		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			stream, err = p.createStream(ctx, req)
			if err == nil {
				break
			}
			if !isRetryableError(err) {
				chunks <- &agent.CompletionChunk{Error: err}
				return
			}
			if attempt < p.maxRetries {
				backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
				select {
				case <-ctx.Done():
					chunks <- &agent.CompletionChunk{Error: ctx.Err()}
					return
				case <-time.After(backoff):
				}
			}
		}
		if err != nil {
			chunks <- &agent.CompletionChunk{Error: fmt.Errorf("anthropic: max retries exceeded: %w", err)}
			return
		}

		p.processStream(stream, chunks)
	}()

	return chunks, nil
}

func (p *AnthropicProvider) createStream(ctx context.Context, req *agent.CompletionRequest) (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return nil, fmt.Errorf("anthropic: failed to convert messages: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model(req.Model)),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return nil, fmt.Errorf("anthropic: failed to convert tools: %w", err)
		}
		params.Tools = tools
	}

	return p.client.Messages.NewStreaming(ctx, params), nil
}

// processStream translates Anthropic SSE events into completion chunks.
// Tool input JSON arrives in fragments and is assembled per content block.
func (p *AnthropicProvider) processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], chunks chan<- *agent.CompletionChunk) {
	var currentToolCall *models.ToolCall
	var currentToolInput strings.Builder

	var inputTokens, outputTokens int
	stopReason := agent.StopOther

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case "message_start":
			messageStart := event.AsMessageStart()
			if messageStart.Message.Usage.InputTokens > 0 {
				inputTokens = int(messageStart.Message.Usage.InputTokens)
			}

		case "content_block_start":
			contentBlock := event.AsContentBlockStart().ContentBlock
			if contentBlock.Type == "tool_use" {
				toolUse := contentBlock.AsToolUse()
				currentToolCall = &models.ToolCall{ID: toolUse.ID, Name: toolUse.Name}
				currentToolInput.Reset()
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					chunks <- &agent.CompletionChunk{Text: delta.Text}
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput.WriteString(delta.PartialJSON)
				}
			}

		case "content_block_stop":
			if currentToolCall != nil {
				input := currentToolInput.String()
				if input == "" {
					input = "{}"
				}
				currentToolCall.Input = json.RawMessage(input)
				chunks <- &agent.CompletionChunk{ToolCall: currentToolCall}
				currentToolCall = nil
			}

		case "message_delta":
			messageDelta := event.AsMessageDelta()
			if messageDelta.Usage.OutputTokens > 0 {
				outputTokens = int(messageDelta.Usage.OutputTokens)
			}
			if messageDelta.Delta.StopReason != "" {
				stopReason = mapAnthropicStopReason(string(messageDelta.Delta.StopReason))
			}

		case "message_stop":
			chunks <- &agent.CompletionChunk{
				Done:         true,
				StopReason:   stopReason,
				InputTokens:  inputTokens,
				OutputTokens: outputTokens,
			}
			return

		case "error":
			chunks <- &agent.CompletionChunk{Error: errors.New("anthropic: stream error")}
			return
		}
	}

	if err := stream.Err(); err != nil {
		chunks <- &agent.CompletionChunk{Error: fmt.Errorf("anthropic: %w", err)}
	}
}

func mapAnthropicStopReason(reason string) agent.StopReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return agent.StopEndOfTurn
	case "tool_use":
		return agent.StopToolUse
	default:
		return agent.StopOther
	}
}

func (p *AnthropicProvider) model(model string) string {
	if model != "" {
		return model
	}
	return p.defaultModel
}

func convertMessages(messages []agent.CompletionMessage) ([]anthropic.MessageParam, error) {
	var result []anthropic.MessageParam

	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion

		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, block := range msg.ToolResults {
			text := block.Result.Text
			if !block.Result.Success && text == "" {
				text = block.Result.Error
			}
			content = append(content, anthropic.NewToolResultBlock(
				block.CallID, text, !block.Result.Success))
		}
		for _, call := range msg.ToolCalls {
			var input map[string]interface{}
			if len(call.Input) > 0 {
				if err := json.Unmarshal(call.Input, &input); err != nil {
					return nil, fmt.Errorf("invalid tool call input: %w", err)
				}
			}
			content = append(content, anthropic.NewToolUseBlock(call.ID, input, call.Name))
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == "assistant" {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			// User and tool roles both map to user messages.
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}

	return result, nil
}

func convertTools(tools []dispatch.ToolSpec) ([]anthropic.ToolUnionParam, error) {
	var result []anthropic.ToolUnionParam

	for _, tool := range tools {
		schemaJSON := tool.InputSchema
		if len(schemaJSON) == 0 {
			schemaJSON = json.RawMessage(`{"type":"object"}`)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaJSON, &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", tool.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("invalid tool schema for %s: missing tool definition", tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)

		result = append(result, toolParam)
	}

	return result, nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()

	// Rate limits
	if strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") {
		return true
	}
	// Server errors
	if strings.Contains(msg, "500") ||
		strings.Contains(msg, "502") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "504") ||
		strings.Contains(msg, "internal server error") ||
		strings.Contains(msg, "bad gateway") ||
		strings.Contains(msg, "service unavailable") ||
		strings.Contains(msg, "gateway timeout") {
		return true
	}
	// Timeouts and connectivity
	if strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "deadline exceeded") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host") {
		return true
	}
	return false
}

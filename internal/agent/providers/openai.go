package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/steward-ai/steward/internal/agent"
	"github.com/steward-ai/steward/internal/dispatch"
	"github.com/steward-ai/steward/pkg/models"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIProvider implements agent.LLMProvider against the OpenAI chat API.
type OpenAIProvider struct {
	client       *openai.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
}

// OpenAIConfig configures the provider. Only APIKey is required.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = defaultOpenAIModel
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		defaultModel: cfg.DefaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete streams a completion. The returned channel closes after the Done
// or Error chunk.
func (p *OpenAIProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (<-chan *agent.CompletionChunk, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertToOpenAIMessages(req.Messages, req.System),
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertToOpenAITools(req.Tools)
	}

	chunks := make(chan *agent.CompletionChunk)

	go func() {
		var stream *openai.ChatCompletionStream
		var err error
		for attempt := 0; attempt <= p.maxRetries; attempt++ {
			stream, err = p.client.CreateChatCompletionStream(ctx, chatReq)
			if err == nil {
				break
			}
			if !isRetryableError(err) {
				chunks <- &agent.CompletionChunk{Error: err}
				close(chunks)
				return
			}
			if attempt < p.maxRetries {
				backoff := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
				select {
				case <-ctx.Done():
					chunks <- &agent.CompletionChunk{Error: ctx.Err()}
					close(chunks)
					return
				case <-time.After(backoff):
				}
			}
		}
		if err != nil {
			chunks <- &agent.CompletionChunk{Error: fmt.Errorf("openai: max retries exceeded: %w", err)}
			close(chunks)
			return
		}

		p.processStream(ctx, stream, chunks)
	}()

	return chunks, nil
}

// processStream accumulates tool call fragments by index and emits complete
// calls once the stream finishes or the finish reason reports them done.
func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, chunks chan<- *agent.CompletionChunk) {
	defer close(chunks)
	defer stream.Close()

	toolCalls := make(map[int]*models.ToolCall)
	stopReason := agent.StopOther
	sawToolCalls := false

	flushToolCalls := func() {
		indexes := make([]int, 0, len(toolCalls))
		for i := range toolCalls {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		for _, i := range indexes {
			tc := toolCalls[i]
			if tc.ID != "" && tc.Name != "" {
				chunks <- &agent.CompletionChunk{ToolCall: tc}
			}
		}
		toolCalls = make(map[int]*models.ToolCall)
	}

	for {
		select {
		case <-ctx.Done():
			chunks <- &agent.CompletionChunk{Error: ctx.Err()}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				flushToolCalls()
				chunks <- &agent.CompletionChunk{Done: true, StopReason: stopReason}
				return
			}
			chunks <- &agent.CompletionChunk{Error: err}
			return
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if choice.Delta.Content != "" {
			chunks <- &agent.CompletionChunk{Text: choice.Delta.Content}
		}

		for _, tc := range choice.Delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if toolCalls[index] == nil {
				toolCalls[index] = &models.ToolCall{}
			}
			if tc.ID != "" {
				toolCalls[index].ID = tc.ID
			}
			if tc.Function.Name != "" {
				toolCalls[index].Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				toolCalls[index].Input = json.RawMessage(string(toolCalls[index].Input) + tc.Function.Arguments)
			}
		}

		switch choice.FinishReason {
		case openai.FinishReasonToolCalls:
			sawToolCalls = true
			stopReason = agent.StopToolUse
			flushToolCalls()
		case openai.FinishReasonStop:
			if !sawToolCalls {
				stopReason = agent.StopEndOfTurn
			}
		case "":
		default:
			if !sawToolCalls {
				stopReason = agent.StopOther
			}
		}
	}
}

func convertToOpenAIMessages(messages []agent.CompletionMessage, system string) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)

	if system != "" {
		result = append(result, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}

	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			// Every tool result becomes its own tool-role message.
			for _, block := range msg.ToolResults {
				content := block.Result.Text
				if !block.Result.Success && content == "" {
					content = block.Result.Error
				}
				result = append(result, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    content,
					ToolCallID: block.CallID,
				})
			}

		case "assistant":
			oaiMsg := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Input),
					},
				})
			}
			result = append(result, oaiMsg)

		default:
			result = append(result, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		}
	}

	return result
}

func convertToOpenAITools(tools []dispatch.ToolSpec) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		schema := tool.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object"}`)
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}

package agent

import (
	"context"
	"fmt"
	"strings"
)

// ProviderCompleter adapts an LLMProvider to the one-shot completion shape
// the memory lifecycle consumes for summarization and fact extraction.
type ProviderCompleter struct {
	provider  LLMProvider
	model     string
	maxTokens int
}

func NewProviderCompleter(provider LLMProvider, model string, maxTokens int) *ProviderCompleter {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ProviderCompleter{provider: provider, model: model, maxTokens: maxTokens}
}

func (c *ProviderCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	chunks, err := c.provider.Complete(ctx, &CompletionRequest{
		Model:     c.model,
		System:    system,
		Messages:  []CompletionMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	var text strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", fmt.Errorf("completion stream failed: %w", chunk.Error)
		}
		text.WriteString(chunk.Text)
	}
	return text.String(), nil
}

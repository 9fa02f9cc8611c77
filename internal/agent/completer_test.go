package agent

import (
	"context"
	"errors"
	"testing"
)

func TestProviderCompleterCollectsStream(t *testing.T) {
	provider := &scriptedProvider{turns: []providerTurn{
		{text: "a condensed summary", stop: StopEndOfTurn},
	}}
	c := NewProviderCompleter(provider, "test-model", 0)

	out, err := c.Complete(context.Background(), "summarize", "the transcript")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "a condensed summary" {
		t.Errorf("out = %q", out)
	}

	req := provider.requests[0]
	if req.System != "summarize" {
		t.Errorf("system = %q", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "the transcript" {
		t.Errorf("messages = %+v", req.Messages)
	}
	if req.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want the 1024 default", req.MaxTokens)
	}
}

func TestProviderCompleterPropagatesError(t *testing.T) {
	provider := &scriptedProvider{turns: []providerTurn{
		{err: errors.New("boom")},
	}}
	c := NewProviderCompleter(provider, "test-model", 256)

	if _, err := c.Complete(context.Background(), "s", "p"); err == nil {
		t.Fatal("expected error")
	}
}

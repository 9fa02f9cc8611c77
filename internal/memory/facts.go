package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

const factSystemPrompt = "You extract durable facts about the user from a conversation exchange. Reply with a JSON object mapping snake_case keys to short string values, for example {\"favorite_color\": \"green\"}. Reply with {} when the exchange contains no durable facts. JSON only."

// FactExtractor asks the model for durable facts in an exchange and stores
// them. Model output that is not a JSON object is discarded without error;
// extraction is best effort and must never surface failures into a turn.
type FactExtractor struct {
	store     Store
	completer Completer
	index     IndexFunc
	logger    *slog.Logger
}

func NewFactExtractor(store Store, completer Completer, index IndexFunc, logger *slog.Logger) *FactExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FactExtractor{
		store:     store,
		completer: completer,
		index:     index,
		logger:    logger.With("component", "memory.facts"),
	}
}

// ExtractAndStore runs one extraction pass over a user/assistant exchange.
// Each stored fact is also handed to the semantic index when one is
// configured. It returns the number of facts stored.
func (e *FactExtractor) ExtractAndStore(ctx context.Context, channel, userText, assistantText string) int {
	prompt := fmt.Sprintf("user: %s\nassistant: %s", userText, assistantText)
	raw, err := e.completer.Complete(ctx, factSystemPrompt, prompt)
	if err != nil {
		e.logger.Debug("fact extraction call failed", "error", err)
		return 0
	}

	facts := parseFacts(raw)
	stored := 0
	for key, value := range facts {
		if key == "" || value == "" {
			continue
		}
		if err := e.store.SetFact(ctx, key, value); err != nil {
			e.logger.Warn("failed to store fact", "key", key, "error", err)
			continue
		}
		if e.index != nil {
			e.index(ctx, channel, key+": "+value)
		}
		stored++
	}
	if stored > 0 {
		e.logger.Debug("stored extracted facts", "count", stored)
	}
	return stored
}

// parseFacts decodes the model's reply. Code fences are stripped first;
// anything that still fails to parse as a flat string map yields nothing.
func parseFacts(raw string) map[string]string {
	cleaned := stripCodeFences(raw)
	var facts map[string]string
	if err := json.Unmarshal([]byte(cleaned), &facts); err != nil {
		return nil
	}
	return facts
}

// stripCodeFences removes a surrounding ``` block, with or without a
// language tag.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json" etc.) if one is present.
		first := strings.TrimSpace(s[:idx])
		if first == "" || !strings.ContainsAny(first, "{[") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

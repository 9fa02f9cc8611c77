package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/steward-ai/steward/pkg/models"
)

// SearchTool is the flat memory_search tool. It embeds the query and
// returns the closest indexed exchanges. Without an embedder it reports the
// index as unavailable instead of erroring the turn.
type SearchTool struct {
	vectors  VectorStore
	embedder Embedder
	limit    int
}

func NewSearchTool(vectors VectorStore, embedder Embedder, limit int) *SearchTool {
	if limit <= 0 {
		limit = 5
	}
	return &SearchTool{vectors: vectors, embedder: embedder, limit: limit}
}

func (t *SearchTool) Name() string { return "memory_search" }

func (t *SearchTool) Description() string {
	return "Searches long-term conversation memory for exchanges similar to a query."
}

func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "What to look for in past conversations"}
  },
  "required": ["query"]
}`)
}

func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (*models.CapabilityResult, error) {
	var params struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return models.Failure(fmt.Sprintf("invalid input: %v", err)), nil
	}
	if strings.TrimSpace(params.Query) == "" {
		return models.Failure("query is required"), nil
	}
	if t.embedder == nil || t.vectors == nil {
		return &models.CapabilityResult{Success: true, Text: "Memory search is not available."}, nil
	}

	vector, err := t.embedder.Embed(ctx, params.Query)
	if err != nil {
		return models.Failure(fmt.Sprintf("embedding failed: %v", err)), nil
	}
	entries, err := t.vectors.SearchEmbedding(ctx, vector, t.limit)
	if err != nil {
		return models.Failure(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(entries) == 0 {
		return &models.CapabilityResult{Success: true, Text: "No similar exchanges found."}, nil
	}

	var b strings.Builder
	for i, entry := range entries {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(entry.Content)
	}
	data, _ := json.Marshal(entries)
	return &models.CapabilityResult{Success: true, Text: b.String(), Data: data}, nil
}

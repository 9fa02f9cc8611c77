// Package memory persists conversation history, summaries, and facts, and
// runs the background lifecycle that keeps a channel's history bounded:
// compaction into rolling summaries, fact extraction, and semantic indexing.
package memory

import (
	"context"
	"errors"

	"github.com/steward-ai/steward/pkg/models"
)

// ErrNoSummary is returned when a channel has no summary yet.
var ErrNoSummary = errors.New("no summary for channel")

// Store is the persistence contract for conversation memory. Message IDs are
// assigned by the store and increase monotonically within a channel.
type Store interface {
	// SaveMessage persists a message and fills in its ID.
	SaveMessage(ctx context.Context, msg *models.Message) error

	// RecentMessages returns up to limit messages for a channel in
	// chronological order, ending with the newest.
	RecentMessages(ctx context.Context, channel string, limit int) ([]*models.Message, error)

	// CountMessages returns the number of stored messages for a channel.
	CountMessages(ctx context.Context, channel string) (int, error)

	// CountMessagesUpTo counts a channel's messages with an ID at or below
	// the given ID. Compaction uses it to ignore messages persisted after
	// the turn it was queued for.
	CountMessagesUpTo(ctx context.Context, channel string, id int64) (int, error)

	// OldestMessages returns the n oldest messages for a channel in
	// chronological order.
	OldestMessages(ctx context.Context, channel string, n int) ([]*models.Message, error)

	// DeleteMessagesUpTo removes every message for a channel with an ID at
	// or below the given ID.
	DeleteMessagesUpTo(ctx context.Context, channel string, id int64) error

	// SaveSummary persists a channel summary, replacing any earlier one.
	SaveSummary(ctx context.Context, summary *models.Summary) error

	// LatestSummary returns the channel's current summary, or ErrNoSummary.
	LatestSummary(ctx context.Context, channel string) (*models.Summary, error)

	// SetFact upserts a fact. Later writes win.
	SetFact(ctx context.Context, key, value string) error

	// Facts returns all stored facts.
	Facts(ctx context.Context) (map[string]string, error)
}

// VectorStore is the optional semantic index over remembered content.
type VectorStore interface {
	// IndexEmbedding stores content with its embedding vector.
	IndexEmbedding(ctx context.Context, channel, content string, vector []float32) error

	// SearchEmbedding returns the stored entries most similar to the query
	// vector, best first.
	SearchEmbedding(ctx context.Context, vector []float32, limit int) ([]ScoredEntry, error)
}

// ScoredEntry is one semantic search hit.
type ScoredEntry struct {
	Channel string
	Content string
	Score   float32
}

// IndexFunc hands one piece of remembered text (a fact, a summary, or a
// full exchange) to the semantic index. Implementations never report
// failure; a nil IndexFunc means indexing is off.
type IndexFunc func(ctx context.Context, channel, content string)

// Embedder turns text into an embedding vector. Implementations may be
// unavailable at runtime; the lifecycle treats a nil Embedder as "indexing
// off".
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer is a one-shot text completion used for summarization and fact
// extraction. The turn loop's provider satisfies it through a thin adapter.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

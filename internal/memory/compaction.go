package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/steward-ai/steward/internal/observability"
	"github.com/steward-ai/steward/pkg/models"
)

const summarySystemPrompt = "You condense conversation history. Reply with a short factual summary of the exchanges, keeping names, dates, decisions, and open tasks. No preamble."

// Compactor folds a channel's oldest messages into its rolling summary once
// the message count crosses the threshold. The new summary is written before
// the covered messages are deleted, so a crash between the two steps
// duplicates context instead of losing it.
type Compactor struct {
	store     Store
	completer Completer
	threshold int
	keep      int
	index     IndexFunc
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewCompactor builds a compactor. threshold is the message count that must
// be exceeded before compaction runs; keep is how many recent messages
// survive it. The written summary is handed to index when one is configured.
func NewCompactor(store Store, completer Completer, threshold, keep int, index IndexFunc, logger *slog.Logger, metrics *observability.Metrics) *Compactor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		store:     store,
		completer: completer,
		threshold: threshold,
		keep:      keep,
		index:     index,
		logger:    logger.With("component", "memory.compaction"),
		metrics:   metrics,
	}
}

// Compact runs one compaction pass for a channel. At or below the threshold
// it is a no-op. When upTo is positive, only messages with an ID at or below
// upTo are considered, so a reply persisted after the triggering exchange
// never inflates the surplus. It reports whether compaction ran.
func (c *Compactor) Compact(ctx context.Context, channel string, upTo int64) (bool, error) {
	var (
		count int
		err   error
	)
	if upTo > 0 {
		count, err = c.store.CountMessagesUpTo(ctx, channel, upTo)
	} else {
		count, err = c.store.CountMessages(ctx, channel)
	}
	if err != nil {
		return false, c.fail(channel, fmt.Errorf("count messages: %w", err))
	}
	if count <= c.threshold {
		c.observe(channel, "skipped")
		return false, nil
	}

	surplus := count - c.keep
	oldest, err := c.store.OldestMessages(ctx, channel, surplus)
	if err != nil {
		return false, c.fail(channel, fmt.Errorf("load oldest messages: %w", err))
	}
	if len(oldest) == 0 {
		c.observe(channel, "skipped")
		return false, nil
	}

	prior := ""
	if summary, err := c.store.LatestSummary(ctx, channel); err == nil {
		prior = summary.Text
	} else if !errors.Is(err, ErrNoSummary) {
		return false, c.fail(channel, fmt.Errorf("load summary: %w", err))
	}

	text, err := c.summarize(ctx, prior, oldest)
	if err != nil {
		return false, c.fail(channel, fmt.Errorf("summarize: %w", err))
	}

	lastID := oldest[len(oldest)-1].ID
	summary := &models.Summary{
		Channel:      channel,
		Text:         text,
		CoversUpToID: lastID,
		CreatedAt:    time.Now().UTC(),
	}

	// Write the summary before deleting the messages it covers.
	if err := c.store.SaveSummary(ctx, summary); err != nil {
		return false, c.fail(channel, fmt.Errorf("save summary: %w", err))
	}
	if err := c.store.DeleteMessagesUpTo(ctx, channel, lastID); err != nil {
		return false, c.fail(channel, fmt.Errorf("delete compacted messages: %w", err))
	}
	if c.index != nil {
		c.index(ctx, channel, text)
	}

	c.logger.Info("compacted channel history",
		"channel", channel, "compacted", len(oldest), "kept", c.keep)
	c.observe(channel, "success")
	return true, nil
}

func (c *Compactor) summarize(ctx context.Context, prior string, msgs []*models.Message) (string, error) {
	var b strings.Builder
	if prior != "" {
		b.WriteString("Earlier summary:\n")
		b.WriteString(prior)
		b.WriteString("\n\n")
	}
	b.WriteString("Conversation to fold in:\n")
	for _, msg := range msgs {
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	text, err := c.completer.Complete(ctx, summarySystemPrompt, b.String())
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("summarizer returned empty text")
	}
	return text, nil
}

func (c *Compactor) fail(channel string, err error) error {
	c.observe(channel, "error")
	return err
}

func (c *Compactor) observe(channel, status string) {
	if c.metrics != nil {
		c.metrics.CompactionCounter.WithLabelValues(channel, status).Inc()
	}
}

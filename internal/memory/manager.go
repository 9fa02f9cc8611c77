package memory

import (
	"context"
	"log/slog"

	"github.com/steward-ai/steward/internal/observability"
)

// Manager owns the post-turn memory lifecycle. After each completed
// exchange the turn loop hands it the channel and both texts; everything
// else happens on the background queue and never blocks or fails a turn.
type Manager struct {
	store     Store
	vectors   VectorStore
	queue     *TaskQueue
	compactor *Compactor
	extractor *FactExtractor
	embedder  Embedder
	logger    *slog.Logger
}

// ManagerConfig wires a Manager. Embedder may be nil; semantic indexing is
// then skipped silently. Vectors may be nil only when Embedder is nil.
type ManagerConfig struct {
	Store               Store
	Vectors             VectorStore
	Completer           Completer
	Embedder            Embedder
	CompactionThreshold int
	KeepRecent          int
	QueueCapacity       int
	Logger              *slog.Logger
	Metrics             *observability.Metrics
}

// NewManager builds the lifecycle manager and starts its worker.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:    cfg.Store,
		vectors:  cfg.Vectors,
		queue:    NewTaskQueue(cfg.QueueCapacity, logger, cfg.Metrics),
		embedder: cfg.Embedder,
		logger:   logger.With("component", "memory.lifecycle"),
	}
	var index IndexFunc
	if cfg.Embedder != nil && cfg.Vectors != nil {
		index = m.indexText
	}
	m.compactor = NewCompactor(cfg.Store, cfg.Completer, cfg.CompactionThreshold, cfg.KeepRecent, index, logger, cfg.Metrics)
	m.extractor = NewFactExtractor(cfg.Store, cfg.Completer, index, logger)
	return m
}

// Store exposes the underlying persistence for the turn loop.
func (m *Manager) Store() Store { return m.store }

// Vectors exposes the semantic index, which may be nil.
func (m *Manager) Vectors() VectorStore { return m.vectors }

// ProcessExchange queues the lifecycle work for one completed exchange:
// fact extraction, semantic indexing, and a compaction check. userMsgID is
// the stored ID of the exchange's user message; compaction considers history
// only up to that point.
func (m *Manager) ProcessExchange(channel string, userMsgID int64, userText, assistantText string) {
	m.queue.Enqueue(Task{
		Name: "extract_facts",
		Run: func(ctx context.Context) {
			m.extractor.ExtractAndStore(ctx, channel, userText, assistantText)
		},
	})

	if m.embedder != nil && m.vectors != nil {
		m.queue.Enqueue(Task{
			Name: "index_exchange",
			Run: func(ctx context.Context) {
				m.indexText(ctx, channel, "user: "+userText+"\nassistant: "+assistantText)
			},
		})
	}

	m.queue.Enqueue(Task{
		Name: "compact",
		Run: func(ctx context.Context) {
			if _, err := m.compactor.Compact(ctx, channel, userMsgID); err != nil {
				m.logger.Warn("compaction failed", "channel", channel, "error", err)
			}
		},
	})
}

// indexText embeds one piece of remembered text and upserts it into the
// vector index. Embedding failures are logged and dropped; the index is an
// accelerator, not a source of truth.
func (m *Manager) indexText(ctx context.Context, channel, content string) {
	vector, err := m.embedder.Embed(ctx, content)
	if err != nil {
		m.logger.Debug("embedding unavailable, skipping index", "error", err)
		return
	}
	if err := m.vectors.IndexEmbedding(ctx, channel, content, vector); err != nil {
		m.logger.Warn("failed to index content", "channel", channel, "error", err)
	}
}

// Close drains the background queue.
func (m *Manager) Close() {
	m.queue.Close()
}

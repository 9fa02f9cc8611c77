package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

// unitEmbedder maps text deterministically onto a tiny vector space and
// records what it was asked to embed.
type unitEmbedder struct {
	calls int
	texts []string
}

func (u *unitEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	u.calls++
	u.texts = append(u.texts, text)
	v := make([]float32, 3)
	for i, r := range text {
		v[i%3] += float32(r%13) / 13
	}
	return v, nil
}

func TestProcessExchangeRunsFullLifecycle(t *testing.T) {
	store := newTestStore(t)
	seedMessages(t, store, "cli", 31)
	completer := &scriptedCompleter{replies: []string{
		`{"wake_time": "6am"}`, // fact extraction
		"rolled-up history",    // compaction summary
	}}
	embedder := &unitEmbedder{}
	m := NewManager(ManagerConfig{
		Store:               store,
		Vectors:             store,
		Completer:           completer,
		Embedder:            embedder,
		CompactionThreshold: 30,
		KeepRecent:          20,
		QueueCapacity:       8,
	})

	m.ProcessExchange("cli", 31, "I wake at 6am", "Noted, early riser.")
	m.Close()

	ctx := context.Background()
	facts, _ := store.Facts(ctx)
	if facts["wake_time"] != "6am" {
		t.Errorf("wake_time = %q, want 6am", facts["wake_time"])
	}

	// The fact, the exchange, and the compaction summary are all indexed.
	wantIndexed := []string{
		"wake_time: 6am",
		"user: I wake at 6am\nassistant: Noted, early riser.",
		"rolled-up history",
	}
	if embedder.calls != len(wantIndexed) {
		t.Fatalf("embedder calls = %d (%v), want %d", embedder.calls, embedder.texts, len(wantIndexed))
	}
	for i, want := range wantIndexed {
		if embedder.texts[i] != want {
			t.Errorf("indexed[%d] = %q, want %q", i, embedder.texts[i], want)
		}
	}
	hits, err := store.SearchEmbedding(ctx, []float32{1, 1, 1}, 3)
	if err != nil {
		t.Fatalf("SearchEmbedding: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("indexed %d entries, want 3", len(hits))
	}

	count, _ := store.CountMessages(ctx, "cli")
	if count != 20 {
		t.Errorf("count after lifecycle = %d, want 20", count)
	}
	if _, err := store.LatestSummary(ctx, "cli"); err != nil {
		t.Errorf("expected summary after lifecycle: %v", err)
	}
}

func TestProcessExchangeWithoutEmbedderSkipsIndexing(t *testing.T) {
	store := newTestStore(t)
	completer := &scriptedCompleter{replies: []string{`{}`}}
	m := NewManager(ManagerConfig{
		Store:               store,
		Completer:           completer,
		CompactionThreshold: 30,
		KeepRecent:          20,
		QueueCapacity:       8,
	})

	m.ProcessExchange("cli", 1, "hello", "hi")
	m.Close()

	hits, err := store.SearchEmbedding(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("SearchEmbedding: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("indexed %d entries with no embedder", len(hits))
	}
}

func TestSearchToolFindsIndexedExchange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	embedder := &unitEmbedder{}

	content := "user: remind me about the dentist\nassistant: Will do."
	vec, _ := embedder.Embed(ctx, content)
	if err := store.IndexEmbedding(ctx, "cli", content, vec); err != nil {
		t.Fatalf("IndexEmbedding: %v", err)
	}

	tool := NewSearchTool(store, embedder, 3)
	result, err := tool.Execute(ctx, json.RawMessage(`{"query":"dentist appointment"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("search failed: %s", result.Error)
	}
	if result.Text == "" {
		t.Error("search returned no text")
	}
}

func TestSearchToolWithoutEmbedder(t *testing.T) {
	tool := NewSearchTool(nil, nil, 3)
	result, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"anything"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatal("unavailable index should not fail the call")
	}
}

func TestSearchToolRequiresQuery(t *testing.T) {
	tool := NewSearchTool(nil, nil, 3)
	result, _ := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if result.Success {
		t.Fatal("empty query should fail")
	}
}

func TestManagerCloseReturnsUnderLoad(t *testing.T) {
	store := newTestStore(t)
	completer := &scriptedCompleter{replies: []string{`{}`, `{}`, `{}`}}
	m := NewManager(ManagerConfig{
		Store:               store,
		Completer:           completer,
		CompactionThreshold: 30,
		KeepRecent:          20,
		QueueCapacity:       8,
	})

	for i := 0; i < 3; i++ {
		m.ProcessExchange("cli", int64(i+1), "ping", "pong")
	}

	done := make(chan struct{})
	go func() {
		m.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

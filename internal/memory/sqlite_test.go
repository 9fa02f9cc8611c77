package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/steward-ai/steward/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedMessages(t *testing.T, store *SQLiteStore, channel string, n int) []*models.Message {
	t.Helper()
	ctx := context.Background()
	out := make([]*models.Message, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		msg := &models.Message{Channel: channel, Role: role, Content: fmt.Sprintf("message %d", i)}
		if err := store.SaveMessage(ctx, msg); err != nil {
			t.Fatalf("SaveMessage: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func TestSaveMessageAssignsIncreasingIDs(t *testing.T) {
	store := newTestStore(t)
	msgs := seedMessages(t, store, "cli", 3)

	for i := 1; i < len(msgs); i++ {
		if msgs[i].ID <= msgs[i-1].ID {
			t.Fatalf("IDs not increasing: %d then %d", msgs[i-1].ID, msgs[i].ID)
		}
	}
}

func TestRecentMessagesChronologicalWindow(t *testing.T) {
	store := newTestStore(t)
	seedMessages(t, store, "cli", 10)
	seedMessages(t, store, "other", 4)

	recent, err := store.RecentMessages(context.Background(), "cli", 3)
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("got %d messages, want 3", len(recent))
	}
	if recent[0].Content != "message 7" || recent[2].Content != "message 9" {
		t.Errorf("window = [%s .. %s], want [message 7 .. message 9]",
			recent[0].Content, recent[2].Content)
	}
	for _, msg := range recent {
		if msg.Channel != "cli" {
			t.Errorf("leaked message from channel %q", msg.Channel)
		}
	}
}

func TestCountAndOldestAreChannelScoped(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedMessages(t, store, "cli", 5)
	seedMessages(t, store, "other", 2)

	count, err := store.CountMessages(ctx, "cli")
	if err != nil {
		t.Fatalf("CountMessages: %v", err)
	}
	if count != 5 {
		t.Errorf("count = %d, want 5", count)
	}

	oldest, err := store.OldestMessages(ctx, "cli", 2)
	if err != nil {
		t.Fatalf("OldestMessages: %v", err)
	}
	if len(oldest) != 2 || oldest[0].Content != "message 0" {
		t.Errorf("oldest = %+v", oldest)
	}
}

func TestCountMessagesUpTo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	msgs := seedMessages(t, store, "cli", 6)

	count, err := store.CountMessagesUpTo(ctx, "cli", msgs[3].ID)
	if err != nil {
		t.Fatalf("CountMessagesUpTo: %v", err)
	}
	if count != 4 {
		t.Errorf("count = %d, want 4", count)
	}
}

func TestDeleteMessagesUpTo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	msgs := seedMessages(t, store, "cli", 6)
	seedMessages(t, store, "other", 2)

	if err := store.DeleteMessagesUpTo(ctx, "cli", msgs[2].ID); err != nil {
		t.Fatalf("DeleteMessagesUpTo: %v", err)
	}

	count, _ := store.CountMessages(ctx, "cli")
	if count != 3 {
		t.Errorf("cli count = %d, want 3", count)
	}
	otherCount, _ := store.CountMessages(ctx, "other")
	if otherCount != 2 {
		t.Errorf("other channel count = %d, want 2", otherCount)
	}
}

func TestSummaryRoundTripAndReplace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.LatestSummary(ctx, "cli"); !errors.Is(err, ErrNoSummary) {
		t.Fatalf("expected ErrNoSummary, got %v", err)
	}

	first := &models.Summary{Channel: "cli", Text: "early days", CoversUpToID: 10}
	if err := store.SaveSummary(ctx, first); err != nil {
		t.Fatalf("SaveSummary: %v", err)
	}
	second := &models.Summary{Channel: "cli", Text: "later on", CoversUpToID: 25}
	if err := store.SaveSummary(ctx, second); err != nil {
		t.Fatalf("SaveSummary replace: %v", err)
	}

	got, err := store.LatestSummary(ctx, "cli")
	if err != nil {
		t.Fatalf("LatestSummary: %v", err)
	}
	if got.Text != "later on" || got.CoversUpToID != 25 {
		t.Errorf("summary = %+v, want the replacement", got)
	}
}

func TestFactsLastWriteWins(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SetFact(ctx, "favorite_color", "blue"); err != nil {
		t.Fatalf("SetFact: %v", err)
	}
	if err := store.SetFact(ctx, "favorite_color", "green"); err != nil {
		t.Fatalf("SetFact overwrite: %v", err)
	}
	if err := store.SetFact(ctx, "home_city", "Lisbon"); err != nil {
		t.Fatalf("SetFact: %v", err)
	}

	facts, err := store.Facts(ctx)
	if err != nil {
		t.Fatalf("Facts: %v", err)
	}
	if facts["favorite_color"] != "green" {
		t.Errorf("favorite_color = %q, want green", facts["favorite_color"])
	}
	if len(facts) != 2 {
		t.Errorf("fact count = %d, want 2", len(facts))
	}
}

func TestEmbeddingSearchRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entries := map[string][]float32{
		"about cats": {1, 0, 0},
		"about dogs": {0.9, 0.1, 0},
		"about tax":  {0, 0, 1},
	}
	for content, vec := range entries {
		if err := store.IndexEmbedding(ctx, "cli", content, vec); err != nil {
			t.Fatalf("IndexEmbedding: %v", err)
		}
	}

	hits, err := store.SearchEmbedding(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SearchEmbedding: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(hits))
	}
	if hits[0].Content != "about cats" {
		t.Errorf("best hit = %q, want about cats", hits[0].Content)
	}
	if hits[0].Score < hits[1].Score {
		t.Error("hits not sorted by descending score")
	}
}

func TestEmbeddingCodec(t *testing.T) {
	in := []float32{0.25, -1.5, 3.75}
	out := decodeEmbedding(encodeEmbedding(in))
	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}

package memory

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/steward-ai/steward/pkg/models"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// SQLiteStore implements Store and VectorStore on a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and prepares the
// schema. Use ":memory:" for tests.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// table-lock errors under concurrent lifecycle tasks.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, id)`,
		`CREATE TABLE IF NOT EXISTS summaries (
			channel TEXT PRIMARY KEY,
			summary TEXT NOT NULL,
			covers_up_to_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS facts (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS embeddings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			channel TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *models.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (channel, role, content, created_at) VALUES (?, ?, ?, ?)`,
		msg.Channel, string(msg.Role), msg.Content, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read message id: %w", err)
	}
	msg.ID = id
	return nil
}

func (s *SQLiteStore) RecentMessages(ctx context.Context, channel string, limit int) ([]*models.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, channel, role, content, created_at FROM (
			SELECT id, channel, role, content, created_at
			FROM messages WHERE channel = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`,
		channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) CountMessages(ctx context.Context, channel string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE channel = ?`, channel).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) CountMessagesUpTo(ctx context.Context, channel string, id int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE channel = ? AND id <= ?`, channel, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) OldestMessages(ctx context.Context, channel string, n int) ([]*models.Message, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, channel, role, content, created_at
		 FROM messages WHERE channel = ? ORDER BY id ASC LIMIT ?`,
		channel, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query oldest messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *SQLiteStore) DeleteMessagesUpTo(ctx context.Context, channel string, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM messages WHERE channel = ? AND id <= ?`, channel, id)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveSummary(ctx context.Context, summary *models.Summary) error {
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (channel, summary, covers_up_to_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(channel) DO UPDATE SET
			summary = excluded.summary,
			covers_up_to_id = excluded.covers_up_to_id,
			created_at = excluded.created_at`,
		summary.Channel, summary.Text, summary.CoversUpToID, summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LatestSummary(ctx context.Context, channel string) (*models.Summary, error) {
	var out models.Summary
	err := s.db.QueryRowContext(ctx,
		`SELECT channel, summary, covers_up_to_id, created_at
		 FROM summaries WHERE channel = ?`, channel).
		Scan(&out.Channel, &out.Text, &out.CoversUpToID, &out.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoSummary
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}
	return &out, nil
}

func (s *SQLiteStore) SetFact(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO facts (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set fact: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Facts(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM facts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query facts: %w", err)
	}
	defer rows.Close()

	facts := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan fact: %w", err)
		}
		facts[k] = v
	}
	return facts, rows.Err()
}

func (s *SQLiteStore) IndexEmbedding(ctx context.Context, channel, content string, vector []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (channel, content, embedding) VALUES (?, ?, ?)`,
		channel, content, encodeEmbedding(vector))
	if err != nil {
		return fmt.Errorf("failed to index embedding: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SearchEmbedding(ctx context.Context, vector []float32, limit int) ([]ScoredEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `SELECT channel, content, embedding FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var entries []ScoredEntry
	for rows.Next() {
		var entry ScoredEntry
		var blob []byte
		if err := rows.Scan(&entry.Channel, &entry.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		entry.Score = cosineSimilarity(vector, decodeEmbedding(blob))
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func scanMessages(rows *sql.Rows) ([]*models.Message, error) {
	var out []*models.Message
	for rows.Next() {
		var msg models.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.Channel, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = models.Role(role)
		out = append(out, &msg)
	}
	return out, rows.Err()
}

// encodeEmbedding packs a vector as little-endian IEEE 754 bits.
func encodeEmbedding(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(data []byte) []float32 {
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

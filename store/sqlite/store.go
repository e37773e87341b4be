package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/w-h-a/gateway/store"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	options store.Options
	conn    *sql.DB
}

func (s *sqliteStore) Insert(ctx context.Context, content string, metadata map[string]any, embedding []float32) (string, error) {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}

	id := uuid.New().String()

	if _, err := s.conn.ExecContext(
		ctx,
		"INSERT INTO documents (id, content, metadata, embedding) VALUES (?, ?, ?, ?)",
		id,
		content,
		string(metaJSON),
		encodeVector(embedding),
	); err != nil {
		return "", err
	}

	return id, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*store.Document, error) {
	query := `
		SELECT id, content, metadata, embedding, created_at, updated_at
		FROM documents
		WHERE id = ?
	`

	var doc store.Document
	var metaRaw string
	var blob []byte
	var createdRaw, updatedRaw string

	err := s.conn.QueryRowContext(ctx, query, id).Scan(
		&doc.Id,
		&doc.Content,
		&metaRaw,
		&blob,
		&createdRaw,
		&updatedRaw,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metaRaw), &doc.Metadata); err != nil {
		doc.Metadata = map[string]any{}
	}

	doc.Embedding = decodeVector(blob)
	doc.CreatedAt = parseTimestamp(createdRaw)
	doc.UpdatedAt = parseTimestamp(updatedRaw)

	return &doc, nil
}

func (s *sqliteStore) Update(ctx context.Context, id string, patch store.Patch) (bool, error) {
	if patch.Empty() {
		return false, nil
	}

	var sets []string
	var args []any

	if patch.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *patch.Content)
	}

	if patch.Metadata != nil {
		metaJSON, err := json.Marshal(patch.Metadata)
		if err != nil {
			return false, fmt.Errorf("marshal metadata: %w", err)
		}
		sets = append(sets, "metadata = ?")
		args = append(args, string(metaJSON))
	}

	if patch.Embedding != nil {
		sets = append(sets, "embedding = ?")
		args = append(args, encodeVector(patch.Embedding))
	}

	args = append(args, id)

	query := fmt.Sprintf("UPDATE documents SET %s WHERE id = ?", strings.Join(sets, ", "))

	result, err := s.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}

	changed, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return changed > 0, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.conn.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return false, err
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return removed > 0, nil
}

// SearchSimilar is a placeholder, not real vector math: it returns the
// most recently created documents with a fabricated decreasing score of
// max(0.5, 1 - 0.1*rank). The threshold is accepted but not enforced.
// Deployments that need genuine similarity must run the postgres backend.
func (s *sqliteStore) SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]store.Result, error) {
	if limit < 1 {
		return nil, nil
	}

	query := `
		SELECT id, content, metadata
		FROM documents
		WHERE embedding IS NOT NULL
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := s.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []store.Result

	for rows.Next() {
		var res store.Result
		var metaRaw string

		if err := rows.Scan(&res.DocumentId, &res.Content, &metaRaw); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(metaRaw), &res.Metadata); err != nil {
			res.Metadata = map[string]any{}
		}

		res.Score = math.Max(0.5, 1-0.1*float64(len(results)))

		results = append(results, res)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *sqliteStore) Check(ctx context.Context) bool {
	var one int
	if err := s.conn.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		slog.WarnContext(ctx, "document store health check failed", "error", err)
		return false
	}
	return true
}

func (s *sqliteStore) Close() error {
	return s.conn.Close()
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata TEXT DEFAULT '{}',
			embedding BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at);

		CREATE TRIGGER IF NOT EXISTS update_documents_updated_at
			AFTER UPDATE ON documents FOR EACH ROW
		BEGIN
			UPDATE documents SET updated_at = CURRENT_TIMESTAMP WHERE id = NEW.id;
		END;
	`

	_, err := s.conn.ExecContext(ctx, schema)
	return err
}

// CURRENT_TIMESTAMP comes back as text; sqlite has no native time type.
func parseTimestamp(raw string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

func encodeVector(vector []float32) []byte {
	if vector == nil {
		return nil
	}
	blob := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[4*i:], math.Float32bits(v))
	}
	return blob
}

func decodeVector(blob []byte) []float32 {
	if len(blob) == 0 {
		return nil
	}
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[4*i:]))
	}
	return vector
}

func NewStore(opts ...store.Option) store.Store {
	options := store.NewOptions(opts...)

	s := &sqliteStore{
		options: options,
	}

	// sqlite:///path/to/gateway.db
	location := strings.TrimPrefix(options.Location, "sqlite://")

	conn, err := sql.Open("sqlite", location)
	if err != nil {
		detail := "failed to open sqlite document store"
		slog.ErrorContext(options.Context, detail, "error", err)
		panic(detail)
	}

	if err := conn.Ping(); err != nil {
		detail := "failed to ping sqlite document store"
		slog.ErrorContext(options.Context, detail, "error", err)
		panic(detail)
	}

	s.conn = conn

	if err := s.migrate(options.Context); err != nil {
		detail := "failed to migrate sqlite document store"
		slog.ErrorContext(options.Context, detail, "error", err)
		panic(detail)
	}

	return s
}

package store

import (
	"context"
	"time"
)

// Store persists documents and their embeddings. Two backends implement
// it: postgres with the vector extension, and a degraded sqlite fallback.
// The backend is chosen once at startup by configuration.
type Store interface {
	Insert(ctx context.Context, content string, metadata map[string]any, embedding []float32) (string, error)
	Get(ctx context.Context, id string) (*Document, error)
	Update(ctx context.Context, id string, patch Patch) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]Result, error)
	Check(ctx context.Context) bool
	Close() error
}

type Document struct {
	Id        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch carries the fields to change on update; nil fields are left
// untouched.
type Patch struct {
	Content   *string
	Metadata  map[string]any
	Embedding []float32
}

func (p Patch) Empty() bool {
	return p.Content == nil && p.Metadata == nil && p.Embedding == nil
}

// Result is one similarity hit. Score is in [0,1], higher is more
// relevant to the query embedding.
type Result struct {
	DocumentId string
	Content    string
	Metadata   map[string]any
	Score      float64
}

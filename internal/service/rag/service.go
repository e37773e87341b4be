package rag

import (
	"context"
	"maps"
	"strings"

	"github.com/w-h-a/gateway/internal/service"
	"github.com/w-h-a/gateway/store"
	"github.com/w-h-a/gateway/upstream"
)

const (
	maxQueryLength   = 1000
	maxContentLength = 50000
	maxLimit         = 20

	defaultLimit     = 5
	defaultThreshold = 0.7
)

// QueryRequest uses pointers where an explicit zero must be told apart
// from an omitted field: limit 0 is rejected while a missing limit
// defaults, and threshold 0 is a legal boundary value.
type QueryRequest struct {
	Query               string   `json:"query"`
	Limit               *int     `json:"limit,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	IncludeMetadata     *bool    `json:"include_metadata,omitempty"`
}

type QueryResult struct {
	Content         string         `json:"content"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	SimilarityScore float64        `json:"similarity_score"`
	DocumentId      string         `json:"document_id,omitempty"`
}

type IngestRequest struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type IngestReceipt struct {
	DocumentId          string
	ContentLength       int
	EmbeddingDimensions int
}

type Service struct {
	upstream upstream.Upstream
	store    store.Store
}

// Query embeds the query text and delegates to the store's similarity
// search. When the caller opts out of metadata the results are stripped
// down to content, score, and id.
func (s *Service) Query(ctx context.Context, req QueryRequest) ([]QueryResult, error) {
	limit := defaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}

	threshold := defaultThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}

	includeMetadata := true
	if req.IncludeMetadata != nil {
		includeMetadata = *req.IncludeMetadata
	}

	if len(strings.TrimSpace(req.Query)) == 0 {
		return nil, service.Invalid("query is required and must be a non-empty string")
	}

	if len(req.Query) > maxQueryLength {
		return nil, service.Invalid("query too long (max 1,000 characters)")
	}

	if limit < 1 || limit > maxLimit {
		return nil, service.Invalid("limit must be between 1 and 20")
	}

	if threshold < 0 || threshold > 1 {
		return nil, service.Invalid("similarity threshold must be between 0 and 1")
	}

	embedding, err := s.upstream.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hits, err := s.store.SearchSimilar(ctx, embedding.Embedding, limit, threshold)
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0, len(hits))
	for _, hit := range hits {
		result := QueryResult{
			Content:         hit.Content,
			SimilarityScore: hit.Score,
			DocumentId:      hit.DocumentId,
		}
		if includeMetadata {
			result.Metadata = hit.Metadata
		}
		results = append(results, result)
	}

	return results, nil
}

// Ingest embeds the content and stores it with the caller's metadata
// merged with derived fields: who submitted it, how long it is, and
// which model embedded it.
func (s *Service) Ingest(ctx context.Context, userId string, req IngestRequest) (*IngestReceipt, error) {
	if len(strings.TrimSpace(req.Content)) == 0 {
		return nil, service.Invalid("content is required and must be a non-empty string")
	}

	if len(req.Content) > maxContentLength {
		return nil, service.Invalid("content too long (max 50,000 characters)")
	}

	embedding, err := s.upstream.Embed(ctx, req.Content)
	if err != nil {
		return nil, err
	}

	metadata := make(map[string]any, len(req.Metadata)+3)
	maps.Copy(metadata, req.Metadata)
	metadata["added_by"] = userId
	metadata["content_length"] = len(req.Content)
	metadata["embedding_model"] = embedding.Model

	id, err := s.store.Insert(ctx, req.Content, metadata, embedding.Embedding)
	if err != nil {
		return nil, err
	}

	return &IngestReceipt{
		DocumentId:          id,
		ContentLength:       len(req.Content),
		EmbeddingDimensions: len(embedding.Embedding),
	}, nil
}

// Get returns the stored document with its raw embedding withheld, or
// nil when the id is unknown.
func (s *Service) Get(ctx context.Context, id string) (*store.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil || doc == nil {
		return nil, err
	}

	doc.Embedding = nil

	return doc, nil
}

func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	return s.store.Delete(ctx, id)
}

func New(u upstream.Upstream, st store.Store) *Service {
	if u == nil {
		panic("upstream is required")
	}

	if st == nil {
		panic("store is required")
	}

	return &Service{
		upstream: u,
		store:    st,
	}
}

package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/w-h-a/gateway/internal/service/rag"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	user := UserFrom(ctx)

	var req rag.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(
		ctx,
		"rag query received",
		"user", user,
		"query_length", len(req.Query),
	)

	results, err := s.rag.Query(ctx, req)
	if err != nil {
		slog.ErrorContext(
			ctx,
			"rag query failed",
			"user", user,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		s.writeError(w, statusFor(err), err.Error(), time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(
		ctx,
		"rag query completed",
		"user", user,
		"total_results", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"results":            results,
		"query":              req.Query,
		"total_results":      len(results),
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	user := UserFrom(ctx)

	var req rag.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(
		ctx,
		"adding document",
		"user", user,
		"content_length", len(req.Content),
	)

	receipt, err := s.rag.Ingest(ctx, user, req)
	if err != nil {
		slog.ErrorContext(
			ctx,
			"failed to add document",
			"user", user,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		s.writeError(w, statusFor(err), err.Error(), time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(
		ctx,
		"document added",
		"user", user,
		"document_id", receipt.DocumentId,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusCreated, map[string]any{
		"document_id":          receipt.DocumentId,
		"content_length":       receipt.ContentLength,
		"embedding_dimensions": receipt.EmbeddingDimensions,
		"processing_time_ms":   time.Since(start).Milliseconds(),
		"timestamp":            time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	doc, err := s.rag.Get(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to retrieve document", "document_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve document", -1)
		return
	}

	if doc == nil {
		s.writeError(w, http.StatusNotFound, "Document not found", -1)
		return
	}

	// the raw embedding stays internal
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         doc.Id,
		"content":    doc.Content,
		"metadata":   doc.Metadata,
		"created_at": doc.CreatedAt,
		"updated_at": doc.UpdatedAt,
	})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := UserFrom(ctx)
	id := mux.Vars(r)["id"]

	slog.InfoContext(ctx, "deleting document", "user", user, "document_id", id)

	removed, err := s.rag.Delete(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete document", "document_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to delete document", -1)
		return
	}

	if !removed {
		s.writeError(w, http.StatusNotFound, "Document not found", -1)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Document deleted successfully",
		"document_id": id,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/w-h-a/gateway/internal/service/chat"
	"github.com/w-h-a/gateway/upstream"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	user := UserFrom(ctx)

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body", time.Since(start).Milliseconds())
		return
	}

	if err := s.chat.Validate(req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error(), time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(
		ctx,
		"chat request received",
		"user", user,
		"message_length", len(req.Message),
		"stream", req.Stream,
	)

	if req.Stream {
		s.streamChat(w, r, req, start, user)
		return
	}

	rsp, err := s.chat.Respond(ctx, req)
	if err != nil {
		slog.ErrorContext(
			ctx,
			"chat request failed",
			"user", user,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		s.writeError(w, statusFor(err), err.Error(), time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(
		ctx,
		"chat completed",
		"user", user,
		"response_length", len(rsp.Message),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, struct {
		*upstream.ChatResponse
		ProcessingTimeMs int64 `json:"processing_time_ms"`
	}{rsp, time.Since(start).Milliseconds()})
}

// streamChat re-frames the upstream byte stream as typed SSE events:
// one connection event up front, a chunk event per content fragment,
// then a completion event with the accumulated text followed by the
// [DONE] terminator. Errors after the headers are committed become one
// final error event rather than a status change.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request, req chat.Request, start time.Time, user string) {
	ctx := r.Context()

	stream, err := s.chat.Stream(ctx, req)
	if err != nil {
		// nothing written yet, a normal error response is still possible
		slog.ErrorContext(ctx, "chat request failed", "user", user, "error", err)
		s.writeError(w, statusFor(err), err.Error(), time.Since(start).Milliseconds())
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	writeEvent(w, flusher, map[string]any{
		"type":   "connection",
		"status": "connected",
	})

	var total strings.Builder

	for {
		chunk, err := stream.Recv()
		if err != nil {
			slog.ErrorContext(ctx, "streaming error", "user", user, "error", err)
			writeEvent(w, flusher, map[string]any{
				"type":  "error",
				"error": err.Error(),
			})
			return
		}

		if chunk.Done {
			writeEvent(w, flusher, map[string]any{
				"type":               "completion",
				"content":            total.String(),
				"processing_time_ms": time.Since(start).Milliseconds(),
				"model":              s.chat.Model(),
				"timestamp":          time.Now().UTC().Format(time.RFC3339),
			})

			fmt.Fprint(w, "data: [DONE]\n\n")
			if flusher != nil {
				flusher.Flush()
			}

			slog.InfoContext(
				ctx,
				"streaming chat completed",
				"user", user,
				"response_length", total.Len(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return
		}

		if len(chunk.Content) == 0 {
			continue
		}

		total.WriteString(chunk.Content)

		writeEvent(w, flusher, map[string]any{
			"type":    "chunk",
			"content": chunk.Content,
		})
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event map[string]any) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	if flusher != nil {
		flusher.Flush()
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.chat.Models(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to fetch models", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch available models", -1)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"models":        models,
		"current_model": s.chat.Model(),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

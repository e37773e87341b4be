package server

import (
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	storeHealthy := make(chan bool, 1)
	upstreamHealthy := make(chan bool, 1)

	go func() { storeHealthy <- s.store.Check(ctx) }()
	go func() { upstreamHealthy <- s.up.Check(ctx) }()

	storeOK := <-storeHealthy
	upstreamOK := <-upstreamHealthy

	overall := storeOK && upstreamOK

	status := http.StatusOK
	if !overall {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":         healthWord(overall),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"services": map[string]any{
			"database": map[string]any{
				"status": healthWord(storeOK),
			},
			"upstream": map[string]any{
				"status": healthWord(upstreamOK),
				"url":    s.config.UpstreamLocation,
				"model":  s.config.Model,
			},
		},
		"processing_time_ms": time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.store.Check(r.Context()) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "not ready",
			"reason":    "Database not available",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "alive",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	})
}

func healthWord(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

type userKey struct{}

// UserFrom reports the authenticated caller's identity, or "anonymous"
// when the request carried none.
func UserFrom(ctx context.Context) string {
	if id, ok := ctx.Value(userKey{}).(string); ok && len(id) > 0 {
		return id
	}
	return "anonymous"
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			slog.WarnContext(r.Context(), "missing or invalid authorization header")
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":   "Unauthorized",
				"message": "Bearer token required",
			})
			return
		}

		if len(s.config.Secret) == 0 {
			slog.ErrorContext(r.Context(), "JWT secret is not configured")
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   "Internal Server Error",
				"message": "Authentication not properly configured",
			})
			return
		}

		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(s.config.Secret), nil
		})
		if err != nil || !token.Valid {
			slog.WarnContext(r.Context(), "invalid bearer token", "error", err)
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":   "Unauthorized",
				"message": "Invalid or expired token",
			})
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, subjectOf(token))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func subjectOf(token *jwt.Token) string {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	for _, key := range []string{"sub", "id", "userId"} {
		if id, ok := claims[key].(string); ok && len(id) > 0 {
			return id
		}
	}
	return ""
}

func (s *Server) secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Cache-Control")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		slog.InfoContext(
			r.Context(),
			"request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"user", UserFrom(r.Context()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush keeps the wrapped writer usable for event streams.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

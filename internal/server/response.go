package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/w-h-a/gateway/internal/service"
	"github.com/w-h-a/gateway/upstream"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError shapes the error body the way clients expect: a coarse
// error label for the status plus a message. In hardened mode 5xx
// messages are masked; the original stays in the logs.
func (s *Server) writeError(w http.ResponseWriter, status int, message string, elapsedMs int64) {
	if status >= http.StatusInternalServerError && s.config.Hardened {
		message = "Internal server error"
	}

	body := map[string]any{
		"error":   errorLabel(status),
		"message": message,
	}
	if elapsedMs >= 0 {
		body["processing_time_ms"] = elapsedMs
	}

	writeJSON(w, status, body)
}

// statusFor maps the error taxonomy to transport status codes. Upstream
// kinds are matched on the tag, never on embedded status integers.
func statusFor(err error) int {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	var upstreamErr *upstream.Error
	if errors.As(err, &upstreamErr) {
		switch upstreamErr.Kind {
		case upstream.BadRequest:
			return http.StatusBadRequest
		case upstream.NotFound:
			return http.StatusNotFound
		case upstream.Unavailable:
			return http.StatusServiceUnavailable
		case upstream.ServerError:
			return http.StatusBadGateway
		case upstream.Connection:
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}

	return http.StatusInternalServerError
}

func errorLabel(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusUnauthorized:
		return "Unauthorized"
	case http.StatusForbidden:
		return "Forbidden"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusBadGateway:
		return "Bad Gateway"
	case http.StatusServiceUnavailable:
		return "Service Unavailable"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	default:
		return "Error"
	}
}

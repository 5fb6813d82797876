package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	goWA "github.com/MrEthical07/goWA"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeEngineError renders err with the status from statusFor. Internal
// errors are logged and answered with a generic message.
func (s *Server) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"path", r.URL.Path,
			"request_id", goWA.RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// statusFor maps engine errors to HTTP statuses. Order matters: a send that
// timed out matches both ErrClientTimeout and ErrExternalClient.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, goWA.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, goWA.ErrSessionNotFound), errors.Is(err, goWA.ErrChallengeUnavailable):
		return http.StatusNotFound
	case errors.Is(err, goWA.ErrDuplicateSession):
		return http.StatusConflict
	case errors.Is(err, goWA.ErrClientTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, goWA.ErrClientUnavailable), errors.Is(err, goWA.ErrEngineClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, goWA.ErrExternalClient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logLevel(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/cohort/internal/domain"
	"github.com/yourorg/cohort/internal/observability/metrics"
)

// ErrorResponse is the JSON body for every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, msg string) {
	writeJSON(w, log, status, ErrorResponse{Error: msg})
}

// writeServiceError maps domain errors onto HTTP statuses. Unrecognized
// errors become opaque 500s so internal details never leak to clients.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, log, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrTokenExpired):
		writeError(w, log, http.StatusUnauthorized, "token expired")
	case errors.Is(err, domain.ErrTokenSignatureInvalid),
		errors.Is(err, domain.ErrTokenIssuerMismatch),
		errors.Is(err, domain.ErrTokenMalformed):
		writeError(w, log, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, domain.ErrUnauthorized):
		metrics.ObserveDenial()
		writeError(w, log, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, log, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrDuplicate):
		writeError(w, log, http.StatusConflict, "already exists")
	default:
		log.Error("request failed", slog.String("error", err.Error()))
		writeError(w, log, http.StatusInternalServerError, "internal error")
	}
}

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/citywalk/internal/citywalk"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeCodedError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeServiceError maps domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var conflict *citywalk.ConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ConflictResponse{
			Error:          "another path is already in progress",
			Code:           "conflict",
			ActiveProgress: conflict.Active,
		})
	case errors.Is(err, citywalk.ErrAlreadyCompleted):
		writeCodedError(w, http.StatusConflict, "already_completed", "path already completed")
	case errors.Is(err, citywalk.ErrConflict):
		writeCodedError(w, http.StatusConflict, "conflict", "conflict")
	case errors.Is(err, citywalk.ErrNotFound):
		writeCodedError(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, citywalk.ErrPointNotInPath):
		writeCodedError(w, http.StatusUnprocessableEntity, "point_not_in_path", "point does not belong to path")
	case errors.Is(err, citywalk.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

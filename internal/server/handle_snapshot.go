package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func handleActiveSnapshot(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.ActiveSnapshot(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleSnapshot(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Snapshot(r.Context(), userIDFromContext(r.Context()), chi.URLParam(r, "progressID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleHistory(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := svc.History(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

func handleRewards(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		grants, err := svc.Rewards(r.Context(), userIDFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, grants)
	}
}

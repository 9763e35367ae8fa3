package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func handleListPaths(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		paths, err := svc.Paths(r.Context())
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, paths)
	}
}

func handleGetPath(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := svc.Path(r.Context(), chi.URLParam(r, "pathID"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, path)
	}
}

package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/playperu/citywalk/internal/citywalk"
)

type StartRequest struct {
	PathID string `json:"pathId"`
}

type StartResponse struct {
	ProgressID        string                  `json:"progressId"`
	Status            citywalk.ProgressStatus `json:"status"`
	VisitedStopsCount int                     `json:"visitedStopsCount"`
	StartedAt         time.Time               `json:"startedAt"`
}

type PauseRequest struct {
	PathID string `json:"pathId"`
}

type PauseResponse struct {
	ProgressID string                  `json:"progressId"`
	Status     citywalk.ProgressStatus `json:"status"`
}

type VisitRequest struct {
	PointID        string `json:"pointId"`
	PathProgressID string `json:"pathProgressId"`
}

func handleStart(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PathID = strings.TrimSpace(req.PathID)
		if req.PathID == "" {
			writeError(w, http.StatusBadRequest, "pathId is required")
			return
		}

		p, err := svc.Start(r.Context(), userIDFromContext(r.Context()), req.PathID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, StartResponse{
			ProgressID:        p.ID,
			Status:            p.Status,
			VisitedStopsCount: p.VisitedStopsCount,
			StartedAt:         p.StartedAt,
		})
	}
}

func handlePause(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PauseRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PathID = strings.TrimSpace(req.PathID)
		if req.PathID == "" {
			writeError(w, http.StatusBadRequest, "pathId is required")
			return
		}

		p, err := svc.Pause(r.Context(), userIDFromContext(r.Context()), req.PathID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, PauseResponse{ProgressID: p.ID, Status: p.Status})
	}
}

func handleVisit(logger *slog.Logger, svc ProgressService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VisitRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.PointID = strings.TrimSpace(req.PointID)
		req.PathProgressID = strings.TrimSpace(req.PathProgressID)
		if req.PointID == "" || req.PathProgressID == "" {
			writeError(w, http.StatusBadRequest, "pointId and pathProgressId are required")
			return
		}

		res, err := svc.Visit(r.Context(), userIDFromContext(r.Context()), req.PointID, req.PathProgressID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/citywalk/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	svc := deps.Progress

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CityWalk API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, deps.Checks).Routes())

	r.Route("/api", func(r chi.Router) {
		// Catalogue is public.
		r.Get("/paths", handleListPaths(logger, svc))
		r.Get("/paths/{pathID}", handleGetPath(logger, svc))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(deps.Auth))

			r.Post("/progress/start", handleStart(logger, svc))
			r.Post("/progress/pause", handlePause(logger, svc))
			r.Post("/progress/visit", handleVisit(logger, svc))
			r.Get("/progress/active", handleActiveSnapshot(logger, svc))
			r.Get("/progress/events", handleEvents(deps.Broker))
			r.Get("/progress/stream", handleStream(logger, deps.Broker))
			r.Get("/progress/{progressID}", handleSnapshot(logger, svc))
			r.Get("/progress", handleHistory(logger, svc))
			r.Get("/rewards", handleRewards(logger, svc))
			r.Get("/route", handleRoute(logger, deps.Routes))
		})
	})
}

package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/playperu/citywalk/internal/geo"
	"github.com/playperu/citywalk/internal/routing"
)

func handleRoute(logger *slog.Logger, routes RouteFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := parsePoint(r.URL.Query().Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "from: "+err.Error())
			return
		}
		to, err := parsePoint(r.URL.Query().Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "to: "+err.Error())
			return
		}
		if routes == nil {
			writeError(w, http.StatusServiceUnavailable, "routing not configured")
			return
		}

		route, err := routes.Route(r.Context(), from, to)
		switch {
		case errors.Is(err, routing.ErrNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "routing not configured")
		case errors.Is(err, routing.ErrNoRoute):
			writeCodedError(w, http.StatusNotFound, "no_route", "no route found")
		case err != nil:
			logger.Error("route lookup failed", "error", err)
			writeError(w, http.StatusBadGateway, "routing service unavailable")
		default:
			writeJSON(w, http.StatusOK, route)
		}
	}
}

// parsePoint parses "lat,lng".
func parsePoint(s string) (geo.Point, error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, errors.New("want lat,lng")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return geo.Point{}, fmt.Errorf("invalid latitude %q", latStr)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return geo.Point{}, fmt.Errorf("invalid longitude %q", lngStr)
	}
	return geo.Point{Lat: lat, Lng: lng}, nil
}

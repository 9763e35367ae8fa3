// Package routing fetches walking route geometry from an OSRM-compatible
// service. Routes are display data only: nothing in the walker or the progress
// state machine depends on them.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/playperu/citywalk/internal/geo"
)

var (
	ErrNotConfigured = errors.New("routing service not configured")
	ErrNoRoute       = errors.New("no route found")
)

// Route is the opaque geometry handed to the map layer.
type Route struct {
	Polyline        string  `json:"polyline"`
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	Steps           []Step  `json:"steps"`
}

type Step struct {
	Instruction    string  `json:"instruction"`
	Name           string  `json:"name,omitempty"`
	DistanceMeters float64 `json:"distanceMeters"`
}

// Cache stores encoded routes. A miss is reported as (nil, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type Client struct {
	baseURL string
	http    *http.Client
	cache   Cache
	ttl     time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// NewClient returns a client for baseURL. cache may be nil.
func NewClient(baseURL string, timeout time.Duration, cache Cache, ttl time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
	}
}

// Route returns the foot route from one point to another. Concurrent requests
// for the same pair share a single upstream call.
func (c *Client) Route(ctx context.Context, from, to geo.Point) (Route, error) {
	if c.baseURL == "" {
		return Route{}, ErrNotConfigured
	}
	key := cacheKey(from, to)

	if route, ok := c.cached(ctx, key); ok {
		return route, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		route, err := c.fetch(ctx, from, to)
		if err != nil {
			return Route{}, err
		}
		c.store(ctx, key, route)
		return route, nil
	})
	if err != nil {
		return Route{}, err
	}
	return v.(Route), nil
}

func (c *Client) cached(ctx context.Context, key string) (Route, bool) {
	if c.cache == nil {
		return Route{}, false
	}
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("route cache read failed", "key", key, "error", err)
		return Route{}, false
	}
	if data == nil {
		return Route{}, false
	}
	var route Route
	if err := json.Unmarshal(data, &route); err != nil {
		c.logger.Warn("route cache entry corrupt", "key", key, "error", err)
		return Route{}, false
	}
	return route, true
}

func (c *Client) store(ctx context.Context, key string, route Route) {
	if c.cache == nil {
		return
	}
	data, err := json.Marshal(route)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("route cache write failed", "key", key, "error", err)
	}
}

type osrmResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry string  `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Legs     []struct {
			Steps []struct {
				Name     string  `json:"name"`
				Distance float64 `json:"distance"`
				Maneuver struct {
					Type     string `json:"type"`
					Modifier string `json:"modifier"`
				} `json:"maneuver"`
			} `json:"steps"`
		} `json:"legs"`
	} `json:"routes"`
}

func (c *Client) fetch(ctx context.Context, from, to geo.Point) (Route, error) {
	url := fmt.Sprintf("%s/route/v1/foot/%f,%f;%f,%f?overview=full&geometries=polyline&steps=true",
		c.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Route{}, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Route{}, fmt.Errorf("requesting route: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Route{}, fmt.Errorf("reading route: %w", err)
	}

	var out osrmResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Route{}, fmt.Errorf("decoding route (status %d): %w", resp.StatusCode, err)
	}
	if out.Code == "NoRoute" || out.Code == "NoSegment" || (out.Code == "Ok" && len(out.Routes) == 0) {
		return Route{}, ErrNoRoute
	}
	if resp.StatusCode != http.StatusOK || out.Code != "Ok" {
		return Route{}, fmt.Errorf("routing service: status %d: %s %s", resp.StatusCode, out.Code, out.Message)
	}

	r := out.Routes[0]
	route := Route{
		Polyline:        r.Geometry,
		DistanceMeters:  r.Distance,
		DurationSeconds: r.Duration,
		Steps:           []Step{},
	}
	for _, leg := range r.Legs {
		for _, s := range leg.Steps {
			route.Steps = append(route.Steps, Step{
				Instruction:    strings.TrimSpace(s.Maneuver.Type + " " + s.Maneuver.Modifier),
				Name:           s.Name,
				DistanceMeters: s.Distance,
			})
		}
	}
	return route, nil
}

// cacheKey rounds to five decimals (about a metre) so jittery fixes share entries.
func cacheKey(from, to geo.Point) string {
	return fmt.Sprintf("citywalk:route:%.5f,%.5f;%.5f,%.5f", from.Lat, from.Lng, to.Lat, to.Lng)
}

// Package client is a Go client for the CityWalk progress API. Error responses
// unwrap to the citywalk sentinel errors, so callers can use errors.Is.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/geo"
	"github.com/playperu/citywalk/internal/routing"
)

// Client is a minimal CityWalk HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	// UserID is sent as X-User-Id when no bearer token is set. Development servers only.
	UserID string
	// HTTPClient overrides the default client built from Timeout. Never
	// written by the Client.
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type StartResult struct {
	ProgressID        string                  `json:"progressId"`
	Status            citywalk.ProgressStatus `json:"status"`
	VisitedStopsCount int                     `json:"visitedStopsCount"`
	StartedAt         time.Time               `json:"startedAt"`
}

type PauseResult struct {
	ProgressID string                  `json:"progressId"`
	Status     citywalk.ProgressStatus `json:"status"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
	// Active is set on 409 responses to start, naming the in-progress attempt.
	Active *citywalk.PathProgress
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return citywalk.ErrUnauthorized
	case http.StatusNotFound:
		return citywalk.ErrNotFound
	case http.StatusUnprocessableEntity:
		return citywalk.ErrPointNotInPath
	case http.StatusConflict:
		if e.Code == "already_completed" {
			return citywalk.ErrAlreadyCompleted
		}
		if e.Active != nil {
			return &citywalk.ConflictError{Active: *e.Active}
		}
		return citywalk.ErrConflict
	}
	return nil
}

// Paths lists the catalogue.
func (c *Client) Paths(ctx context.Context) ([]citywalk.PathSummary, error) {
	var resp []citywalk.PathSummary
	err := c.do(ctx, http.MethodGet, "api/paths", nil, &resp)
	return resp, err
}

// Path returns one path with its stops.
func (c *Client) Path(ctx context.Context, pathID string) (citywalk.Path, error) {
	var resp citywalk.Path
	err := c.do(ctx, http.MethodGet, "api/paths/"+url.PathEscape(pathID), nil, &resp)
	return resp, err
}

// Start begins an attempt at pathID.
func (c *Client) Start(ctx context.Context, pathID string) (StartResult, error) {
	var resp StartResult
	err := c.do(ctx, http.MethodPost, "api/progress/start", map[string]string{"pathId": pathID}, &resp)
	return resp, err
}

// Pause parks the in-progress attempt at pathID.
func (c *Client) Pause(ctx context.Context, pathID string) (PauseResult, error) {
	var resp PauseResult
	err := c.do(ctx, http.MethodPost, "api/progress/pause", map[string]string{"pathId": pathID}, &resp)
	return resp, err
}

// Visit records a stop visit.
func (c *Client) Visit(ctx context.Context, pointID, progressID string) (citywalk.VisitResult, error) {
	body := map[string]string{
		"pointId":        pointID,
		"pathProgressId": progressID,
	}
	var resp citywalk.VisitResult
	err := c.do(ctx, http.MethodPost, "api/progress/visit", body, &resp)
	return resp, err
}

// ActiveSnapshot returns the in-progress attempt, or an error wrapping
// citywalk.ErrNotFound when there is none.
func (c *Client) ActiveSnapshot(ctx context.Context) (citywalk.Snapshot, error) {
	var resp citywalk.Snapshot
	err := c.do(ctx, http.MethodGet, "api/progress/active", nil, &resp)
	return resp, err
}

// Snapshot returns one attempt with visited flags.
func (c *Client) Snapshot(ctx context.Context, progressID string) (citywalk.Snapshot, error) {
	var resp citywalk.Snapshot
	err := c.do(ctx, http.MethodGet, "api/progress/"+url.PathEscape(progressID), nil, &resp)
	return resp, err
}

// History lists every attempt, newest first.
func (c *Client) History(ctx context.Context) ([]citywalk.PathProgress, error) {
	var resp []citywalk.PathProgress
	err := c.do(ctx, http.MethodGet, "api/progress", nil, &resp)
	return resp, err
}

// Rewards lists collected rewards.
func (c *Client) Rewards(ctx context.Context) ([]citywalk.RewardGrant, error) {
	var resp []citywalk.RewardGrant
	err := c.do(ctx, http.MethodGet, "api/rewards", nil, &resp)
	return resp, err
}

// Route fetches walking geometry between two points.
func (c *Client) Route(ctx context.Context, from, to geo.Point) (routing.Route, error) {
	q := url.Values{}
	q.Set("from", fmt.Sprintf("%f,%f", from.Lat, from.Lng))
	q.Set("to", fmt.Sprintf("%f,%f", to.Lat, to.Lng))
	var resp routing.Route
	err := c.do(ctx, http.MethodGet, "api/route?"+q.Encode(), nil, &resp)
	return resp, err
}

type errorBody struct {
	Error          string                 `json:"error"`
	Code           string                 `json:"code"`
	ActiveProgress *citywalk.PathProgress `json:"activeProgress"`
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.UserID != "":
		req.Header.Set("X-User-Id", c.UserID)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var eb errorBody
		if json.Unmarshal(b, &eb) == nil {
			apiErr.Code = eb.Code
			apiErr.Message = eb.Error
			apiErr.Active = eb.ActiveProgress
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}

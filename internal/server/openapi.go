package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/routing"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ConflictResponse is returned when another path is already in progress.
type ConflictResponse struct {
	Error          string                `json:"error"`
	Code           string                `json:"code"`
	ActiveProgress citywalk.PathProgress `json:"activeProgress"`
}

type HealthStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latencyMs"`
}

type HealthResponse struct {
	SQLite HealthStatus  `json:"sqlite"`
	Redis  *HealthStatus `json:"redis,omitempty"`
}

type pathParams struct {
	PathID string `path:"pathID"`
}

type progressParams struct {
	ProgressID string `path:"progressID"`
}

type streamParams struct {
	Token string `query:"token" description:"JWT, for clients that cannot set headers."`
}

type routeParams struct {
	From string `query:"from" required:"true" description:"lat,lng"`
	To   string `query:"to" required:"true" description:"lat,lng"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "CityWalk API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Progress API for geofenced city walking paths.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/paths
	listPaths, _ := r.NewOperationContext(http.MethodGet, "/api/paths")
	listPaths.SetSummary("List paths")
	listPaths.SetDescription("Returns the path catalogue with stop counts.")
	listPaths.AddRespStructure([]citywalk.PathSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listPaths)

	// GET /api/paths/{pathID}
	getPath, _ := r.NewOperationContext(http.MethodGet, "/api/paths/{pathID}")
	getPath.SetSummary("Get path")
	getPath.SetDescription("Returns a path with its stops in walking order.")
	getPath.AddReqStructure(pathParams{})
	getPath.AddRespStructure(citywalk.Path{}, openapi.WithHTTPStatus(http.StatusOK))
	getPath.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getPath)

	// POST /api/progress/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/progress/start")
	postStart.SetSummary("Start path")
	postStart.SetDescription("Starts a new attempt at a path. Fails while another path is in progress. Requires Bearer token.")
	postStart.AddReqStructure(StartRequest{})
	postStart.AddRespStructure(StartResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postStart.AddRespStructure(ConflictResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postStart)

	// POST /api/progress/pause
	postPause, _ := r.NewOperationContext(http.MethodPost, "/api/progress/pause")
	postPause.SetSummary("Pause path")
	postPause.SetDescription("Pauses the caller's in-progress attempt at a path. Requires Bearer token.")
	postPause.AddReqStructure(PauseRequest{})
	postPause.AddRespStructure(PauseResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postPause.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postPause.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postPause)

	// POST /api/progress/visit
	postVisit, _ := r.NewOperationContext(http.MethodPost, "/api/progress/visit")
	postVisit.SetSummary("Record visit")
	postVisit.SetDescription("Records that the caller reached a stop. Idempotent per attempt and stop. Requires Bearer token.")
	postVisit.AddReqStructure(VisitRequest{})
	postVisit.AddRespStructure(citywalk.VisitResult{}, openapi.WithHTTPStatus(http.StatusOK))
	postVisit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postVisit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postVisit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postVisit.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(postVisit)

	// GET /api/progress/active
	getActive, _ := r.NewOperationContext(http.MethodGet, "/api/progress/active")
	getActive.SetSummary("Active progress")
	getActive.SetDescription("Returns the snapshot of the caller's in-progress attempt. Requires Bearer token.")
	getActive.AddRespStructure(citywalk.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getActive.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getActive)

	// GET /api/progress/{progressID}
	getProgress, _ := r.NewOperationContext(http.MethodGet, "/api/progress/{progressID}")
	getProgress.SetSummary("Progress snapshot")
	getProgress.SetDescription("Returns an attempt with every stop flagged visited or not. Requires Bearer token.")
	getProgress.AddReqStructure(progressParams{})
	getProgress.AddRespStructure(citywalk.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getProgress.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getProgress)

	// GET /api/progress
	listProgress, _ := r.NewOperationContext(http.MethodGet, "/api/progress")
	listProgress.SetSummary("Progress history")
	listProgress.SetDescription("Returns every attempt of the caller, newest first. Requires Bearer token.")
	listProgress.AddRespStructure([]citywalk.PathProgress{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listProgress)

	// GET /api/rewards
	listRewards, _ := r.NewOperationContext(http.MethodGet, "/api/rewards")
	listRewards.SetSummary("Collected rewards")
	listRewards.SetDescription("Returns the rewards the caller has collected. Requires Bearer token.")
	listRewards.AddRespStructure([]citywalk.RewardGrant{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listRewards)

	// GET /api/progress/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/progress/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of the caller's progress events.")
	getEvents.AddReqStructure(streamParams{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/progress/stream
	getStream, _ := r.NewOperationContext(http.MethodGet, "/api/progress/stream")
	getStream.SetSummary("WebSocket event stream")
	getStream.SetDescription("Upgrades to a WebSocket that pushes the caller's progress events.")
	getStream.AddReqStructure(streamParams{})
	getStream.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getStream)

	// GET /api/route
	getRoute, _ := r.NewOperationContext(http.MethodGet, "/api/route")
	getRoute.SetSummary("Walking route")
	getRoute.SetDescription("Returns display geometry for walking between two points. Requires Bearer token.")
	getRoute.AddReqStructure(routeParams{})
	getRoute.AddRespStructure(routing.Route{}, openapi.WithHTTPStatus(http.StatusOK))
	getRoute.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	getRoute.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getRoute.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(getRoute)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

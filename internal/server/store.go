package server

import (
	"context"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/geo"
	"github.com/playperu/citywalk/internal/routing"
)

// ProgressService is the state machine and catalogue behind the API.
// *progress.Service implements it.
type ProgressService interface {
	Paths(ctx context.Context) ([]citywalk.PathSummary, error)
	Path(ctx context.Context, pathID string) (citywalk.Path, error)

	Start(ctx context.Context, userID, pathID string) (citywalk.PathProgress, error)
	Pause(ctx context.Context, userID, pathID string) (citywalk.PathProgress, error)
	Visit(ctx context.Context, userID, pointID, progressID string) (citywalk.VisitResult, error)

	ActiveSnapshot(ctx context.Context, userID string) (citywalk.Snapshot, error)
	Snapshot(ctx context.Context, userID, progressID string) (citywalk.Snapshot, error)
	History(ctx context.Context, userID string) ([]citywalk.PathProgress, error)
	Rewards(ctx context.Context, userID string) ([]citywalk.RewardGrant, error)
}

// RouteFinder returns walking geometry between two points.
type RouteFinder interface {
	Route(ctx context.Context, from, to geo.Point) (routing.Route, error)
}

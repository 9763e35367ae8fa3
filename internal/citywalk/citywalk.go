// Package citywalk defines the core domain types and error taxonomy shared by
// the progress server and the walking client. It has no external dependencies.
package citywalk

import "time"

// DefaultRadiusMeters applies to stops authored without a geofence radius.
const DefaultRadiusMeters = 50.0

type Path struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	City        string    `json:"city"`
	Description string    `json:"description"`
	Stops       []Stop    `json:"stops"`
	TotalStops  int       `json:"totalStops"`
	CreatedAt   time.Time `json:"createdAt"`
}

// PathSummary is a Path without its stops.
type PathSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	City        string `json:"city"`
	Description string `json:"description"`
	TotalStops  int    `json:"totalStops"`
}

// Stop is the path-scoped view of a point of interest.
type Stop struct {
	PointID      string  `json:"pointId"`
	OrderIndex   int     `json:"orderIndex"`
	Title        string  `json:"title"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radiusMeters"`
	Narration    string  `json:"narration"`
	AudioRef     string  `json:"audioRef,omitempty"`
	CharacterRef string  `json:"characterRef,omitempty"`
	Reward       *Reward `json:"reward,omitempty"`
	Visited      bool    `json:"visited"`
}

// Radius returns the geofence radius, falling back to DefaultRadiusMeters.
func (s Stop) Radius() float64 {
	if s.RadiusMeters <= 0 {
		return DefaultRadiusMeters
	}
	return s.RadiusMeters
}

type Reward struct {
	Label   string `json:"label"`
	IconRef string `json:"iconRef,omitempty"`
}

type ProgressStatus string

const (
	StatusInProgress ProgressStatus = "in_progress"
	StatusPaused     ProgressStatus = "paused"
	StatusCompleted  ProgressStatus = "completed"
)

type PathProgress struct {
	ID                   string         `json:"id"`
	UserID               string         `json:"userId"`
	PathID               string         `json:"pathId"`
	Status               ProgressStatus `json:"status"`
	VisitedStopsCount    int            `json:"visitedStopsCount"`
	LastVisitedStopOrder *int           `json:"lastVisitedStopOrder"`
	StartedAt            time.Time      `json:"startedAt"`
	CompletedAt          *time.Time     `json:"completedAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

type PointVisit struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	PointID        string    `json:"pointId"`
	PathProgressID string    `json:"pathProgressId"`
	FirstEnteredAt time.Time `json:"firstEnteredAt"`
	LastEnteredAt  time.Time `json:"lastEnteredAt"`
}

type RewardGrant struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	PointID       string    `json:"pointId"`
	PathID        string    `json:"pathId"`
	RewardLabel   string    `json:"rewardLabel"`
	RewardIconRef string    `json:"rewardIconRef,omitempty"`
	CollectedAt   time.Time `json:"collectedAt"`
}

// Snapshot is the authoritative view of one progress row: its fields plus
// every stop of the path annotated with its visited flag.
type Snapshot struct {
	Progress   PathProgress `json:"progress"`
	PathName   string       `json:"pathName"`
	TotalStops int          `json:"totalStops"`
	Stops      []Stop       `json:"stops"`
}

// Active reports whether the walker should keep evaluating geofences for it.
func (s *Snapshot) Active() bool {
	return s != nil && s.Progress.Status == StatusInProgress
}

// VisitResult is the outcome of recording a stop visit.
type VisitResult struct {
	Success        bool         `json:"success"`
	AlreadyVisited bool         `json:"alreadyVisited"`
	IsCompleted    bool         `json:"isCompleted"`
	Progress       PathProgress `json:"progress"`
	Reward         *RewardGrant `json:"reward,omitempty"`
}

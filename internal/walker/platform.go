// Package walker is the platform-independent walking engine. It watches the
// user's position, surfaces the next stop of the active path when its geofence
// is entered, plays the stop's narration, and submits confirmed visits to the
// progress server.
//
// Everything device specific sits behind Platform; everything server specific
// sits behind ProgressAPI.
package walker

import (
	"context"
	"time"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/geo"
)

// Position is one sample of the position feed.
type Position struct {
	Lat       float64
	Lng       float64
	Timestamp time.Time
}

func (p Position) Point() geo.Point {
	return geo.Point{Lat: p.Lat, Lng: p.Lng}
}

// AudioHandle is one playing audio stream.
type AudioHandle interface {
	// Done yields once when playback ends: nil on natural completion,
	// the playback error otherwise. It may also just be closed.
	Done() <-chan error
	// Stop halts playback and releases the stream. It must be safe to call
	// more than once.
	Stop() error
}

// Platform is the device capability surface the engine needs.
type Platform interface {
	Position(ctx context.Context) (Position, error)
	PlayAudio(ctx context.Context, ref string) (AudioHandle, error)
	ShowDialog(stop citywalk.Stop)
}

// ProgressAPI is the server surface the engine needs. *client.Client
// implements it.
type ProgressAPI interface {
	Visit(ctx context.Context, pointID, progressID string) (citywalk.VisitResult, error)
	ActiveSnapshot(ctx context.Context) (citywalk.Snapshot, error)
	Snapshot(ctx context.Context, progressID string) (citywalk.Snapshot, error)
}

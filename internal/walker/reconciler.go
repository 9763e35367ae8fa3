package walker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/playperu/citywalk/internal/citywalk"
)

// Reconciler keeps the last server snapshot of the active path. The engine
// evaluates geofences against it and nothing else, so local state never
// drifts from the server for longer than one round trip.
type Reconciler struct {
	api ProgressAPI

	mu   sync.RWMutex
	snap *citywalk.Snapshot
}

func NewReconciler(api ProgressAPI) *Reconciler {
	return &Reconciler{api: api}
}

// Refresh loads the user's active path, if any. Run at session start.
func (r *Reconciler) Refresh(ctx context.Context) error {
	snap, err := r.api.ActiveSnapshot(ctx)
	return r.apply(snap, err)
}

// RefreshProgress reloads one progress row, typically right after a visit.
func (r *Reconciler) RefreshProgress(ctx context.Context, progressID string) error {
	snap, err := r.api.Snapshot(ctx, progressID)
	return r.apply(snap, err)
}

func (r *Reconciler) apply(snap citywalk.Snapshot, err error) error {
	switch {
	case errors.Is(err, citywalk.ErrNotFound):
		r.Clear()
		return nil
	case err != nil:
		return fmt.Errorf("fetching snapshot: %w", err)
	}
	if !snap.Active() {
		r.Clear()
		return nil
	}
	r.Set(snap)
	return nil
}

// Current returns a copy of the active snapshot, or nil when no path is being
// walked.
func (r *Reconciler) Current() *citywalk.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return nil
	}
	snap := *r.snap
	snap.Stops = append([]citywalk.Stop(nil), r.snap.Stops...)
	return &snap
}

func (r *Reconciler) Set(snap citywalk.Snapshot) {
	r.mu.Lock()
	r.snap = &snap
	r.mu.Unlock()
}

func (r *Reconciler) Clear() {
	r.mu.Lock()
	r.snap = nil
	r.mu.Unlock()
}

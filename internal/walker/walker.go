package walker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/playperu/citywalk/internal/citywalk"
)

var (
	ErrNoDialog     = errors.New("no stop dialog is open")
	ErrNoActivePath = errors.New("no path in progress")
)

type Options struct {
	// Interval is the fallback evaluation tick, for when the feed goes quiet.
	Interval time.Duration
	// Cooldown suppresses a stop after its visit is recorded.
	Cooldown time.Duration
	// DefaultRadius applies to stops that carry no radius of their own.
	DefaultRadius float64
	Now           func() time.Time
	Logger        *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 5 * time.Second
	}
	if o.DefaultRadius <= 0 {
		o.DefaultRadius = citywalk.DefaultRadiusMeters
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Walker is the engine: it turns positions into stop dialogs and confirmed
// dialogs into server visits.
type Walker struct {
	platform   Platform
	opts       Options
	logger     *slog.Logger
	gate       *TriggerGate
	narration  *NarrationCoordinator
	submitter  *VisitSubmitter
	reconciler *Reconciler

	evaluating atomic.Bool
}

func New(platform Platform, api ProgressAPI, opts Options) *Walker {
	opts.setDefaults()
	return &Walker{
		platform:   platform,
		opts:       opts,
		logger:     opts.Logger,
		gate:       NewTriggerGate(opts.Cooldown, opts.Now),
		narration:  NewNarrationCoordinator(platform.PlayAudio, opts.Logger),
		submitter:  NewVisitSubmitter(api),
		reconciler: NewReconciler(api),
	}
}

// Sync reloads the active path from the server. Call it at session start and
// after starting or pausing a path.
func (w *Walker) Sync(ctx context.Context) error {
	return w.reconciler.Refresh(ctx)
}

// Snapshot returns the active path as last seen on the server, or nil.
func (w *Walker) Snapshot() *citywalk.Snapshot {
	return w.reconciler.Current()
}

// DialogOpen reports the stop whose dialog is showing, if any.
func (w *Walker) DialogOpen() (string, bool) {
	return w.gate.DialogOpen()
}

// Run syncs with the server, then evaluates on every position from feed and on
// every tick. It returns nil when ctx is done or feed is closed.
func (w *Walker) Run(ctx context.Context, feed <-chan Position) error {
	if err := w.Sync(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case pos, ok := <-feed:
			if !ok {
				return nil
			}
			w.evaluate(ctx, &pos)
		case <-ticker.C:
			w.evaluate(ctx, nil)
		}
	}
}

// Evaluate runs one evaluation against the platform's current position. It
// reports the stop whose dialog it opened. Calls overlapping a running
// evaluation return immediately.
func (w *Walker) Evaluate(ctx context.Context) (citywalk.Stop, bool) {
	return w.evaluate(ctx, nil)
}

func (w *Walker) evaluate(ctx context.Context, pos *Position) (citywalk.Stop, bool) {
	if !w.evaluating.CompareAndSwap(false, true) {
		return citywalk.Stop{}, false
	}
	defer w.evaluating.Store(false)

	snap := w.reconciler.Current()
	if !snap.Active() {
		return citywalk.Stop{}, false
	}
	if _, open := w.gate.DialogOpen(); open {
		return citywalk.Stop{}, false
	}

	if pos == nil {
		p, err := w.platform.Position(ctx)
		if err != nil {
			w.logger.Debug("position unavailable", "error", err)
			return citywalk.Stop{}, false
		}
		pos = &p
	}

	stops := snap.Stops
	for i := range stops {
		if stops[i].RadiusMeters <= 0 {
			stops[i].RadiusMeters = w.opts.DefaultRadius
		}
	}

	stop, ok := Evaluate(pos.Point(), stops, w.gate.Suppressed)
	if !ok {
		return citywalk.Stop{}, false
	}
	if !w.gate.TryOpen(stop.PointID) {
		return citywalk.Stop{}, false
	}

	w.logger.Info("stop reached", "point_id", stop.PointID, "title", stop.Title)
	w.narration.Trigger(ctx, stop)
	w.platform.ShowDialog(stop)
	return stop, true
}

// ConfirmVisit submits the visit for the stop whose dialog is open.
//
// A recorded or already recorded visit closes the dialog and starts the stop's
// cool-down. An already completed path clears local state and is not an
// error. Stale references trigger a refetch of the active path. Transport
// failures keep the dialog open so the user can retry. Only the confirmed
// stop's dialog is closed; one opened while the request was in flight stays.
func (w *Walker) ConfirmVisit(ctx context.Context) (citywalk.VisitResult, error) {
	pointID, open := w.gate.DialogOpen()
	if !open {
		return citywalk.VisitResult{}, ErrNoDialog
	}
	snap := w.reconciler.Current()
	if snap == nil {
		w.gate.CloseDialogFor(pointID)
		return citywalk.VisitResult{}, ErrNoActivePath
	}
	progressID := snap.Progress.ID

	res, err := w.submitter.Submit(ctx, pointID, progressID)
	switch {
	case err == nil:
		w.gate.MarkVisited(pointID)
		w.gate.CloseDialogFor(pointID)
		if res.IsCompleted {
			w.reconciler.Clear()
			w.logger.Info("path completed", "progress_id", progressID)
			return res, nil
		}
		if rerr := w.reconciler.RefreshProgress(ctx, progressID); rerr != nil {
			w.logger.Warn("reconciling after visit", "progress_id", progressID, "error", rerr)
		}
		return res, nil

	case errors.Is(err, ErrSubmissionInFlight):
		return citywalk.VisitResult{}, err

	case errors.Is(err, citywalk.ErrAlreadyCompleted):
		w.gate.CloseDialogFor(pointID)
		w.reconciler.Clear()
		return citywalk.VisitResult{IsCompleted: true}, nil

	case errors.Is(err, citywalk.ErrNotFound), errors.Is(err, citywalk.ErrPointNotInPath):
		w.gate.CloseDialogFor(pointID)
		// progressID is the stale reference; the active path may have moved on.
		if rerr := w.reconciler.Refresh(ctx); rerr != nil {
			w.logger.Warn("reconciling stale path", "progress_id", progressID, "error", rerr)
		} else {
			w.logger.Info("stale path reconciled", "progress_id", progressID)
		}
		return citywalk.VisitResult{}, err

	case errors.Is(err, citywalk.ErrConflict):
		w.gate.CloseDialogFor(pointID)
		return citywalk.VisitResult{}, err

	default:
		// Unauthorized and transport failures leave the dialog open.
		return citywalk.VisitResult{}, fmt.Errorf("submitting visit: %w", err)
	}
}

// DismissDialog closes the stop dialog without recording a visit. The stop
// may trigger again on the next evaluation.
func (w *Walker) DismissDialog() {
	w.gate.CloseDialog()
}

// Close stops narration and releases the audio output.
func (w *Walker) Close() {
	w.narration.Close()
}

package walker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/database"
	"github.com/playperu/citywalk/internal/events"
	"github.com/playperu/citywalk/internal/geo"
	"github.com/playperu/citywalk/internal/migrations"
	"github.com/playperu/citywalk/internal/progress"
	"github.com/playperu/citywalk/internal/walker"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newWalker(t *testing.T, p walker.Platform, api walker.ProgressAPI, clk *manualClock) *walker.Walker {
	t.Helper()
	opts := walker.Options{Interval: 10 * time.Millisecond, Logger: discard}
	if clk != nil {
		opts.Now = clk.now
	}
	w := walker.New(p, api, opts)
	t.Cleanup(w.Close)
	return w
}

// serviceAPI adapts the progress service to walker.ProgressAPI for one user,
// standing in for the HTTP client.
type serviceAPI struct {
	svc    *progress.Service
	userID string
}

func (a serviceAPI) Visit(ctx context.Context, pointID, progressID string) (citywalk.VisitResult, error) {
	return a.svc.Visit(ctx, a.userID, pointID, progressID)
}

func (a serviceAPI) ActiveSnapshot(ctx context.Context) (citywalk.Snapshot, error) {
	return a.svc.ActiveSnapshot(ctx, a.userID)
}

func (a serviceAPI) Snapshot(ctx context.Context, progressID string) (citywalk.Snapshot, error) {
	return a.svc.Snapshot(ctx, a.userID, progressID)
}

func newService(t *testing.T) (*progress.Service, citywalk.Path) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migrations.Run(ctx, db))

	svc := progress.New(db, events.NewBroker(), discard)
	stops := twoStops()
	stops[0].Reward = &citywalk.Reward{Label: "Sol de Oro"}
	path, err := svc.CreatePath(ctx, citywalk.Path{Name: "Plaza", City: "Lima", Stops: stops})
	require.NoError(t, err)
	return svc, path
}

func TestWalkTwoAdjacentStops(t *testing.T) {
	svc, path := newService(t)
	api := serviceAPI{svc: svc, userID: "u1"}
	p := newFakePlatform()
	w := newWalker(t, p, api, nil)
	ctx := context.Background()

	started, err := svc.Start(ctx, "u1", path.ID)
	require.NoError(t, err)
	require.NoError(t, w.Sync(ctx))
	require.True(t, w.Snapshot().Active())

	s1, s2 := path.Stops[0], path.Stops[1]

	// Standing where both geofences overlap surfaces S1 first.
	p.moveTo(geo.Offset(plazaMayor, 0, 30))
	got, ok := w.Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, s1.PointID, got.PointID)

	// The open dialog holds back S2.
	_, ok = w.Evaluate(ctx)
	assert.False(t, ok)
	assert.Equal(t, 1, p.dialogCount())

	res, err := w.ConfirmVisit(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.AlreadyVisited)
	assert.Equal(t, 1, res.Progress.VisitedStopsCount)
	require.NotNil(t, res.Reward)
	assert.Equal(t, "Sol de Oro", res.Reward.RewardLabel)

	snap := w.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.Stops[0].Visited)
	assert.False(t, snap.Stops[1].Visited)

	// Back inside S1 only: visited and cooling down, nothing triggers.
	p.moveTo(geo.Offset(plazaMayor, 0, -30))
	_, ok = w.Evaluate(ctx)
	assert.False(t, ok)

	// A duplicate that slipped past the client is benign on the server.
	dup, err := api.Visit(ctx, s1.PointID, started.ID)
	require.NoError(t, err)
	assert.True(t, dup.AlreadyVisited)
	assert.Equal(t, 1, dup.Progress.VisitedStopsCount)

	p.moveTo(geo.Point{Lat: s2.Lat, Lng: s2.Lng})
	got, ok = w.Evaluate(ctx)
	require.True(t, ok)
	assert.Equal(t, s2.PointID, got.PointID)

	res, err = w.ConfirmVisit(ctx)
	require.NoError(t, err)
	assert.True(t, res.IsCompleted)
	assert.Equal(t, citywalk.StatusCompleted, res.Progress.Status)
	assert.Nil(t, w.Snapshot())

	_, ok = w.Evaluate(ctx)
	assert.False(t, ok)

	// S1's narration was stopped before S2's began.
	assert.Equal(t, []string{"play:s1.mp3", "stop:s1.mp3", "play:s2.mp3"}, p.audioLog())
	assert.EqualValues(t, 1, p.maxActive.Load())

	rewards, err := svc.Rewards(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, rewards, 1)
}

func TestCooldownSuppressesBeforeReconcile(t *testing.T) {
	// The fake server never marks stops visited, so only the cool-down holds
	// S1 back.
	api := &fakeAPI{snap: activeSnapshot(twoStops())}
	clk := &manualClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	p := newFakePlatform()
	w := newWalker(t, p, api, clk)
	ctx := context.Background()
	require.NoError(t, w.Sync(ctx))

	p.moveTo(plazaMayor)
	_, ok := w.Evaluate(ctx)
	require.True(t, ok)
	_, err := w.ConfirmVisit(ctx)
	require.NoError(t, err)

	clk.advance(4 * time.Second)
	_, ok = w.Evaluate(ctx)
	assert.False(t, ok)

	clk.advance(time.Second)
	got, ok := w.Evaluate(ctx)
	assert.True(t, ok)
	assert.Equal(t, "s1", got.PointID)
}

func TestConfirmVisitOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		visitErr   error
		snapErr    error
		wantErr    error
		dialogOpen bool
		active     bool
		completed  bool
	}{
		{name: "transport failure keeps dialog", visitErr: errors.New("connection reset"), dialogOpen: true, active: true},
		{name: "unauthorized keeps dialog", visitErr: citywalk.ErrUnauthorized, wantErr: citywalk.ErrUnauthorized, dialogOpen: true, active: true},
		{name: "already completed clears state", visitErr: citywalk.ErrAlreadyCompleted, completed: true},
		{name: "stale progress refetches", visitErr: citywalk.ErrNotFound, snapErr: citywalk.ErrNotFound, wantErr: citywalk.ErrNotFound},
		{name: "stale point refetches", visitErr: citywalk.ErrPointNotInPath, wantErr: citywalk.ErrPointNotInPath, active: true},
		{name: "conflict surfaced", visitErr: &citywalk.ConflictError{}, wantErr: citywalk.ErrConflict, active: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{snap: activeSnapshot(twoStops())}
			p := newFakePlatform()
			w := newWalker(t, p, api, nil)
			ctx := context.Background()
			require.NoError(t, w.Sync(ctx))

			p.moveTo(plazaMayor)
			_, ok := w.Evaluate(ctx)
			require.True(t, ok)

			api.set(func(a *fakeAPI) {
				a.visitErr = tt.visitErr
				a.snapErr = tt.snapErr
			})
			res, err := w.ConfirmVisit(ctx)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.completed:
				require.NoError(t, err)
				assert.True(t, res.IsCompleted)
			default:
				assert.Error(t, err)
			}

			_, open := w.DialogOpen()
			assert.Equal(t, tt.dialogOpen, open)
			assert.Equal(t, tt.active, w.Snapshot().Active())
		})
	}
}

func TestConfirmVisitKeepsDialogOpenedMeanwhile(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops()), gate: make(chan struct{})}
	p := newFakePlatform()
	w := newWalker(t, p, api, nil)
	ctx := context.Background()
	require.NoError(t, w.Sync(ctx))

	p.moveTo(plazaMayor)
	_, ok := w.Evaluate(ctx)
	require.True(t, ok)

	confirmed := make(chan error, 1)
	go func() {
		_, err := w.ConfirmVisit(ctx)
		confirmed <- err
	}()
	require.Eventually(t, func() bool { return api.visitCount() == 1 }, time.Second, 5*time.Millisecond)

	// The user dismisses S1 and walks on to S2 before the visit lands.
	w.DismissDialog()
	p.moveTo(geo.Offset(plazaMayor, 0, 60))
	got, ok := w.Evaluate(ctx)
	require.True(t, ok)
	require.Equal(t, "s2", got.PointID)

	close(api.gate)
	require.NoError(t, <-confirmed)

	id, open := w.DialogOpen()
	assert.True(t, open)
	assert.Equal(t, "s2", id)
}

func TestConfirmVisitStaleProgressAdoptsActivePath(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops())}
	p := newFakePlatform()
	w := newWalker(t, p, api, nil)
	ctx := context.Background()
	require.NoError(t, w.Sync(ctx))

	p.moveTo(plazaMayor)
	_, ok := w.Evaluate(ctx)
	require.True(t, ok)

	// p1 was replaced by a new attempt on the server.
	api.set(func(a *fakeAPI) {
		a.visitErr = citywalk.ErrNotFound
		a.snap.Progress.ID = "p2"
	})
	_, err := w.ConfirmVisit(ctx)
	require.ErrorIs(t, err, citywalk.ErrNotFound)

	snap := w.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "p2", snap.Progress.ID)
	_, open := w.DialogOpen()
	assert.False(t, open)
}

func TestConfirmVisitRetryAfterFailure(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops()), visitErr: errors.New("timeout")}
	p := newFakePlatform()
	w := newWalker(t, p, api, nil)
	ctx := context.Background()
	require.NoError(t, w.Sync(ctx))

	p.moveTo(plazaMayor)
	_, ok := w.Evaluate(ctx)
	require.True(t, ok)

	_, err := w.ConfirmVisit(ctx)
	require.Error(t, err)

	api.set(func(a *fakeAPI) { a.visitErr = nil })
	res, err := w.ConfirmVisit(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, api.visitCount())
}

func TestConfirmVisitWithoutDialog(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops())}
	w := newWalker(t, newFakePlatform(), api, nil)

	_, err := w.ConfirmVisit(context.Background())
	assert.ErrorIs(t, err, walker.ErrNoDialog)
}

func TestDismissDialogAllowsRetrigger(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops())}
	p := newFakePlatform()
	w := newWalker(t, p, api, nil)
	ctx := context.Background()
	require.NoError(t, w.Sync(ctx))

	p.moveTo(plazaMayor)
	_, ok := w.Evaluate(ctx)
	require.True(t, ok)

	w.DismissDialog()
	_, ok = w.Evaluate(ctx)
	assert.True(t, ok)
	assert.Equal(t, 2, p.dialogCount())
	assert.Zero(t, api.visitCount())
}

func TestNoActivePathNeverTriggers(t *testing.T) {
	api := &fakeAPI{snapErr: citywalk.ErrNotFound}
	p := newFakePlatform()
	w := newWalker(t, p, api, nil)
	ctx := context.Background()
	require.NoError(t, w.Sync(ctx))

	p.moveTo(plazaMayor)
	_, ok := w.Evaluate(ctx)
	assert.False(t, ok)
	assert.Zero(t, p.dialogCount())
}

func TestConcurrentEvaluationsOpenOneDialog(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops())}
	p := newFakePlatform()
	w := newWalker(t, p, api, nil)
	ctx := context.Background()
	require.NoError(t, w.Sync(ctx))
	p.moveTo(geo.Offset(plazaMayor, 0, 30))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := w.Evaluate(ctx); ok {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, p.dialogCount())
}

func TestRunEvaluatesFeed(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops())}
	p := newFakePlatform()
	p.moveTo(geo.Offset(plazaMayor, 1000, 0))
	w := newWalker(t, p, api, nil)

	feed := make(chan walker.Position)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), feed) }()

	feed <- walker.Position{Lat: plazaMayor.Lat, Lng: plazaMayor.Lng, Timestamp: time.Now()}
	require.Eventually(t, func() bool { return p.dialogCount() == 1 }, time.Second, 5*time.Millisecond)

	id, open := w.DialogOpen()
	assert.True(t, open)
	assert.Equal(t, "s1", id)

	close(feed)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after feed closed")
	}
}

func TestRunTickerUsesPlatformPosition(t *testing.T) {
	api := &fakeAPI{snap: activeSnapshot(twoStops())}
	p := newFakePlatform()
	p.moveTo(plazaMayor)
	w := newWalker(t, p, api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, nil) }()

	require.Eventually(t, func() bool { return p.dialogCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsWhenSyncFails(t *testing.T) {
	api := &fakeAPI{snapErr: citywalk.ErrUnauthorized}
	w := newWalker(t, newFakePlatform(), api, nil)

	err := w.Run(context.Background(), nil)
	assert.ErrorIs(t, err, citywalk.ErrUnauthorized)
}

package walker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/geo"
	"github.com/playperu/citywalk/internal/walker"
)

type fakeHandle struct {
	ref     string
	done    chan error
	stopped atomic.Bool
	p       *fakePlatform
}

func (h *fakeHandle) Done() <-chan error { return h.done }

func (h *fakeHandle) Stop() error {
	if h.stopped.CompareAndSwap(false, true) {
		h.p.record("stop:" + h.ref)
		h.p.active.Add(-1)
	}
	return nil
}

// fakePlatform records audio and dialog activity and tracks how many audio
// handles are live at once.
type fakePlatform struct {
	mu      sync.Mutex
	pos     geo.Point
	log     []string
	dialogs []citywalk.Stop
	handles map[string]*fakeHandle
	playErr error

	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{handles: make(map[string]*fakeHandle)}
}

func (p *fakePlatform) moveTo(pt geo.Point) {
	p.mu.Lock()
	p.pos = pt
	p.mu.Unlock()
}

func (p *fakePlatform) Position(context.Context) (walker.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return walker.Position{Lat: p.pos.Lat, Lng: p.pos.Lng, Timestamp: time.Now()}, nil
}

func (p *fakePlatform) PlayAudio(_ context.Context, ref string) (walker.AudioHandle, error) {
	p.mu.Lock()
	err := p.playErr
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	n := p.active.Add(1)
	for {
		cur := p.maxActive.Load()
		if n <= cur || p.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	h := &fakeHandle{ref: ref, done: make(chan error, 1), p: p}
	p.record("play:" + ref)
	p.mu.Lock()
	p.handles[ref] = h
	p.mu.Unlock()
	return h, nil
}

func (p *fakePlatform) ShowDialog(stop citywalk.Stop) {
	p.mu.Lock()
	p.dialogs = append(p.dialogs, stop)
	p.mu.Unlock()
}

func (p *fakePlatform) record(entry string) {
	p.mu.Lock()
	p.log = append(p.log, entry)
	p.mu.Unlock()
}

func (p *fakePlatform) audioLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.log...)
}

func (p *fakePlatform) dialogCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dialogs)
}

func (p *fakePlatform) handle(ref string) *fakeHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handles[ref]
}

// fakeAPI serves a fixed snapshot, looked up by its progress ID or as the
// active one. Visits succeed unless visitErr is set, and
// block on gate when it is non-nil.
type fakeAPI struct {
	mu       sync.Mutex
	snap     citywalk.Snapshot
	snapErr  error
	visitErr error
	gate     chan struct{}
	visits   int
}

func (a *fakeAPI) Visit(ctx context.Context, pointID, progressID string) (citywalk.VisitResult, error) {
	a.mu.Lock()
	a.visits++
	gate := a.gate
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return citywalk.VisitResult{}, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.visitErr != nil {
		return citywalk.VisitResult{}, a.visitErr
	}
	return citywalk.VisitResult{Success: true, Progress: a.snap.Progress}, nil
}

func (a *fakeAPI) ActiveSnapshot(context.Context) (citywalk.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap, a.snapErr
}

func (a *fakeAPI) Snapshot(_ context.Context, progressID string) (citywalk.Snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.snapErr == nil && progressID != a.snap.Progress.ID {
		return citywalk.Snapshot{}, citywalk.ErrNotFound
	}
	return a.snap, a.snapErr
}

func (a *fakeAPI) set(fn func(a *fakeAPI)) {
	a.mu.Lock()
	fn(a)
	a.mu.Unlock()
}

func (a *fakeAPI) visitCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.visits
}

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var plazaMayor = geo.Point{Lat: -12.0464, Lng: -77.0428}

// twoStops returns stops S1 and S2 sixty meters apart with 50 m geofences, so
// the point halfway between them lies inside both.
func twoStops() []citywalk.Stop {
	s2 := geo.Offset(plazaMayor, 0, 60)
	return []citywalk.Stop{
		{PointID: "s1", OrderIndex: 0, Title: "S1", Lat: plazaMayor.Lat, Lng: plazaMayor.Lng, RadiusMeters: 50, AudioRef: "s1.mp3"},
		{PointID: "s2", OrderIndex: 1, Title: "S2", Lat: s2.Lat, Lng: s2.Lng, RadiusMeters: 50, AudioRef: "s2.mp3"},
	}
}

func activeSnapshot(stops []citywalk.Stop) citywalk.Snapshot {
	return citywalk.Snapshot{
		Progress:   citywalk.PathProgress{ID: "p1", PathID: "path", Status: citywalk.StatusInProgress},
		TotalStops: len(stops),
		Stops:      stops,
	}
}

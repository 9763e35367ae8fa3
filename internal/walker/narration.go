package walker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/playperu/citywalk/internal/citywalk"
)

type playFunc func(ctx context.Context, ref string) (AudioHandle, error)

type playback struct {
	pointID string
	ref     string
	handle  AudioHandle
	gen     uint64
	quit    chan struct{}
}

// NarrationCoordinator owns the single audio output. At most one handle is
// live at any time, and every handle is stopped exactly on its way out:
// natural completion, playback error, preemption or Close.
type NarrationCoordinator struct {
	play   playFunc
	logger *slog.Logger

	mu      sync.Mutex
	current *playback
	gen     uint64
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewNarrationCoordinator(play playFunc, logger *slog.Logger) *NarrationCoordinator {
	return &NarrationCoordinator{
		play:   play,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Trigger starts stop's narration, preempting whatever else is playing.
// Re-triggering the stop already playing is a no-op, and a stop without
// audio leaves the current playback alone.
func (n *NarrationCoordinator) Trigger(ctx context.Context, stop citywalk.Stop) {
	if stop.AudioRef == "" {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	if n.current != nil && n.current.pointID == stop.PointID && n.current.ref == stop.AudioRef {
		return
	}
	n.releaseLocked()

	handle, err := n.play(ctx, stop.AudioRef)
	if err != nil {
		// Narration text still shows; only the audio is lost.
		n.logger.Warn("audio unavailable", "point_id", stop.PointID, "ref", stop.AudioRef, "error", err)
		return
	}

	n.gen++
	p := &playback{pointID: stop.PointID, ref: stop.AudioRef, handle: handle, gen: n.gen, quit: make(chan struct{})}
	n.current = p

	n.wg.Add(1)
	go n.watch(p)
}

// watch releases p when it finishes on its own. It exits as soon as p is
// released some other way.
func (n *NarrationCoordinator) watch(p *playback) {
	defer n.wg.Done()

	var err error
	select {
	case err = <-p.handle.Done():
	case <-p.quit:
		return
	case <-n.done:
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil || n.current.gen != p.gen {
		// Preempted; already released.
		return
	}
	if err != nil {
		n.logger.Warn("audio playback failed", "point_id", p.pointID, "error", err)
	}
	n.releaseLocked()
}

func (n *NarrationCoordinator) releaseLocked() {
	if n.current == nil {
		return
	}
	if err := n.current.handle.Stop(); err != nil {
		n.logger.Debug("stopping audio", "point_id", n.current.pointID, "error", err)
	}
	close(n.current.quit)
	n.current = nil
}

// Playing reports the stop whose narration is playing, if any.
func (n *NarrationCoordinator) Playing() (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return "", false
	}
	return n.current.pointID, true
}

// Stop halts the current narration, if any.
func (n *NarrationCoordinator) Stop() {
	n.mu.Lock()
	n.releaseLocked()
	n.mu.Unlock()
}

// Close stops playback and waits for watchers to exit. Later triggers are ignored.
func (n *NarrationCoordinator) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	n.releaseLocked()
	close(n.done)
	n.mu.Unlock()

	n.wg.Wait()
}

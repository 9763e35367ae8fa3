package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/client"
	"github.com/playperu/citywalk/internal/walker"
)

// Track is a recorded walk. Path, when set, is started before the replay.
type Track struct {
	Path   string        `yaml:"path"`
	Points []TrackPoint  `yaml:"points"`
	Wait   time.Duration `yaml:"wait"`
}

// TrackPoint is one position sample. Wait overrides the track default for
// how long the walker lingers there.
type TrackPoint struct {
	Lat  float64       `yaml:"lat"`
	Lng  float64       `yaml:"lng"`
	Wait time.Duration `yaml:"wait"`
}

func loadTrack(path string) (Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return Track{}, fmt.Errorf("opening track: %w", err)
	}
	defer f.Close()
	return parseTrack(f)
}

func parseTrack(r io.Reader) (Track, error) {
	var tr Track
	if err := yaml.NewDecoder(r).Decode(&tr); err != nil {
		return Track{}, fmt.Errorf("decoding track: %w", err)
	}
	if len(tr.Points) == 0 {
		return Track{}, errors.New("track has no points")
	}
	for i, p := range tr.Points {
		if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
			return Track{}, fmt.Errorf("point %d: coordinates out of range", i)
		}
	}
	return tr, nil
}

type replayOptions struct {
	Speed        float64
	ConfirmDelay time.Duration
	// Interval is the walker's fallback tick; zero keeps the engine default.
	Interval time.Duration
	Logger   *slog.Logger
}

// replay feeds tr through a walker backed by c, confirming every stop dialog
// the walker raises as a user would.
func replay(ctx context.Context, c *client.Client, tr Track, out io.Writer, opts replayOptions) error {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if tr.Path != "" {
		if err := ensureStarted(ctx, c, tr.Path, out); err != nil {
			return err
		}
	}

	sim := newSimPlatform(out)
	w := walker.New(sim, c, walker.Options{Interval: opts.Interval, Logger: opts.Logger})
	defer w.Close()

	feed := make(chan walker.Position)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(sim.dialogs)
		return w.Run(gctx, feed)
	})

	g.Go(func() error {
		defer close(feed)
		for _, p := range tr.Points {
			pos := walker.Position{Lat: p.Lat, Lng: p.Lng, Timestamp: time.Now()}
			sim.moveTo(pos)
			if err := dwell(gctx, w, feed, pos); err != nil {
				return err
			}
			wait := p.Wait
			if wait == 0 {
				wait = tr.Wait
			}
			if err := sleep(gctx, time.Duration(float64(wait)/opts.Speed)); err != nil {
				return err
			}
		}
		return nil
	})

	visits := 0
	g.Go(func() error {
		for stop := range sim.dialogs {
			if err := sleep(gctx, opts.ConfirmDelay); err != nil {
				return err
			}
			res, err := w.ConfirmVisit(gctx)
			if err != nil {
				sim.print("  visit to %s failed: %v\n", stop.Title, err)
				if errors.Is(err, citywalk.ErrUnauthorized) {
					return err
				}
				w.DismissDialog()
				continue
			}
			visits++
			sim.printVisit(stop, res)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintf(out, "replay finished: %d visits recorded\n", visits)
	return nil
}

func ensureStarted(ctx context.Context, c *client.Client, pathID string, out io.Writer) error {
	res, err := c.Start(ctx, pathID)
	var conflict *citywalk.ConflictError
	switch {
	case errors.As(err, &conflict) && conflict.Active.PathID == pathID:
		fmt.Fprintf(out, "continuing %s (progress %s)\n", pathID, conflict.Active.ID)
		return nil
	case err != nil:
		return fmt.Errorf("starting %s: %w", pathID, err)
	}
	fmt.Fprintf(out, "started %s (progress %s)\n", pathID, res.ProgressID)
	return nil
}

// dwell keeps the walker at pos until it has evaluated the position and any
// dialog raised there has been handled. The feed is unbuffered, so a second
// send only completes once the first sample has been evaluated.
func dwell(ctx context.Context, w *walker.Walker, feed chan<- walker.Position, pos walker.Position) error {
	for {
		for range 2 {
			select {
			case feed <- pos:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if _, open := w.DialogOpen(); !open {
			return nil
		}
		for {
			if _, open := w.DialogOpen(); !open {
				break
			}
			if err := sleep(ctx, 10*time.Millisecond); err != nil {
				return err
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// simPlatform stands in for a device: it reports the last replayed position,
// prints audio activity and hands dialogs to the replay's confirm loop.
type simPlatform struct {
	mu      sync.Mutex
	pos     *walker.Position
	out     io.Writer
	dialogs chan citywalk.Stop
}

func newSimPlatform(out io.Writer) *simPlatform {
	return &simPlatform{out: out, dialogs: make(chan citywalk.Stop, 4)}
}

func (p *simPlatform) moveTo(pos walker.Position) {
	p.mu.Lock()
	p.pos = &pos
	p.mu.Unlock()
}

func (p *simPlatform) Position(context.Context) (walker.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos == nil {
		return walker.Position{}, errors.New("no position fix yet")
	}
	return *p.pos, nil
}

func (p *simPlatform) PlayAudio(_ context.Context, ref string) (walker.AudioHandle, error) {
	p.print("  ♪ playing %s\n", ref)
	return &simAudio{p: p, ref: ref, done: make(chan error)}, nil
}

func (p *simPlatform) ShowDialog(stop citywalk.Stop) {
	p.print("reached %s\n", stop.Title)
	if stop.Narration != "" {
		p.print("  %s\n", stop.Narration)
	}
	p.dialogs <- stop
}

func (p *simPlatform) printVisit(stop citywalk.Stop, res citywalk.VisitResult) {
	switch {
	case res.AlreadyVisited:
		p.print("  %s already visited\n", stop.Title)
	case res.Success:
		p.print("  visited %s (%d stops)\n", stop.Title, res.Progress.VisitedStopsCount)
	}
	if res.Reward != nil {
		p.print("  reward: %s\n", res.Reward.RewardLabel)
	}
	if res.IsCompleted {
		p.print("  path completed\n")
	}
}

func (p *simPlatform) print(format string, args ...any) {
	p.mu.Lock()
	fmt.Fprintf(p.out, format, args...)
	p.mu.Unlock()
}

// simAudio plays until stopped.
type simAudio struct {
	p    *simPlatform
	ref  string
	done chan error
	once sync.Once
}

func (a *simAudio) Done() <-chan error { return a.done }

func (a *simAudio) Stop() error {
	a.once.Do(func() { a.p.print("  ■ stopped %s\n", a.ref) })
	return nil
}

// Package progress is the server-authoritative state machine for walking
// progress. It alone mutates progress rows, point visits and reward grants,
// and runs every transition inside a single SQL transaction.
package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/citywalk/internal/citywalk"
	"github.com/playperu/citywalk/internal/events"
)

type Service struct {
	db     *sql.DB
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(db *sql.DB, publisher events.Publisher, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		db:     db,
		events: publisher,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a new attempt at pathID. It fails with a *citywalk.ConflictError
// while the user has any path in progress.
func (s *Service) Start(ctx context.Context, userID, pathID string) (citywalk.PathProgress, error) {
	now := s.now().UTC()
	var p citywalk.PathProgress

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := totalStops(ctx, tx, pathID); err != nil {
			return err
		}

		active, err := activeProgress(ctx, tx, userID)
		switch {
		case err == nil:
			return &citywalk.ConflictError{Active: active}
		case !errors.Is(err, citywalk.ErrNotFound):
			return err
		}

		p = citywalk.PathProgress{
			ID:        uuid.NewString(),
			UserID:    userID,
			PathID:    pathID,
			Status:    citywalk.StatusInProgress,
			StartedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO path_progress (id, user_id, path_id, status, visited_stops_count, started_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)
		`, p.ID, p.UserID, p.PathID, p.Status, formatTime(now), formatTime(now))
		if isUniqueViolation(err) {
			// Lost a race against another start; report the winner.
			active, aerr := activeProgress(ctx, tx, userID)
			if aerr != nil {
				return citywalk.ErrConflict
			}
			return &citywalk.ConflictError{Active: active}
		}
		if err != nil {
			return fmt.Errorf("inserting progress: %w", err)
		}
		return nil
	})
	if err != nil {
		return citywalk.PathProgress{}, err
	}

	s.publish(ctx, events.Event{
		Type:       events.ProgressStarted,
		UserID:     userID,
		ProgressID: p.ID,
		PathID:     pathID,
		At:         now,
	})
	return p, nil
}

// Pause parks the user's in-progress attempt at pathID.
func (s *Service) Pause(ctx context.Context, userID, pathID string) (citywalk.PathProgress, error) {
	now := s.now().UTC()
	var p citywalk.PathProgress

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			UPDATE path_progress SET status = 'paused', updated_at = ?
			WHERE user_id = ? AND path_id = ? AND status = 'in_progress'
			RETURNING `+progressColumns,
			formatTime(now), userID, pathID)
		var err error
		p, err = scanProgress(row)
		return err
	})
	if err != nil {
		return citywalk.PathProgress{}, err
	}

	s.publish(ctx, events.Event{
		Type:              events.ProgressPaused,
		UserID:            userID,
		ProgressID:        p.ID,
		PathID:            pathID,
		VisitedStopsCount: p.VisitedStopsCount,
		At:                now,
	})
	return p, nil
}

// Visit records that the user entered pointID while walking progressID.
//
// Repeated visits of the same point only touch last_entered_at and report
// AlreadyVisited, even once the path is completed. A paused attempt is resumed.
func (s *Service) Visit(ctx context.Context, userID, pointID, progressID string) (citywalk.VisitResult, error) {
	now := s.now().UTC()
	var (
		res     citywalk.VisitResult
		stop    citywalk.Stop
		resumed bool
	)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := progressByID(ctx, tx, progressID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return fmt.Errorf("progress %s: %w", progressID, citywalk.ErrNotFound)
		}

		stop, err = pathStop(ctx, tx, p.PathID, pointID)
		if err != nil {
			return err
		}

		visited, err := hasVisit(ctx, tx, progressID, pointID)
		if err != nil {
			return err
		}

		switch p.Status {
		case citywalk.StatusCompleted:
			if !visited {
				return citywalk.ErrAlreadyCompleted
			}
		case citywalk.StatusPaused:
			active, err := activeProgress(ctx, tx, userID)
			if err == nil {
				return &citywalk.ConflictError{Active: active}
			}
			if !errors.Is(err, citywalk.ErrNotFound) {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE path_progress SET status = 'in_progress', updated_at = ? WHERE id = ?
			`, formatTime(now), progressID); err != nil {
				return fmt.Errorf("resuming progress: %w", err)
			}
			resumed = true
		}

		if visited {
			if _, err := tx.ExecContext(ctx, `
				UPDATE point_visits SET last_entered_at = ?
				WHERE path_progress_id = ? AND point_id = ?
			`, formatTime(now), progressID, pointID); err != nil {
				return fmt.Errorf("touching visit: %w", err)
			}
			p, err = progressByID(ctx, tx, progressID)
			if err != nil {
				return err
			}
			res = citywalk.VisitResult{
				Success:        true,
				AlreadyVisited: true,
				IsCompleted:    p.Status == citywalk.StatusCompleted,
				Progress:       p,
			}
			return nil
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO point_visits (id, user_id, point_id, path_progress_id, first_entered_at, last_entered_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (path_progress_id, point_id) DO NOTHING
		`, uuid.NewString(), userID, pointID, progressID, formatTime(now), formatTime(now))
		if err != nil {
			return fmt.Errorf("inserting visit: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("visit %s/%s: %w", progressID, pointID, errDuplicateVisit)
		}

		if stop.Reward != nil {
			grant, err := grantReward(ctx, tx, userID, p.PathID, stop, now)
			if err != nil {
				return err
			}
			res.Reward = grant
		}

		total, err := totalStops(ctx, tx, p.PathID)
		if err != nil {
			return err
		}

		count := p.VisitedStopsCount + 1
		status := citywalk.StatusInProgress
		var completedAt any
		if count >= total {
			status = citywalk.StatusCompleted
			completedAt = formatTime(now)
		}

		row := tx.QueryRowContext(ctx, `
			UPDATE path_progress
			SET visited_stops_count = ?,
				last_visited_stop_order = ?,
				status = ?,
				completed_at = COALESCE(completed_at, ?),
				updated_at = ?
			WHERE id = ?
			RETURNING `+progressColumns,
			count, stop.OrderIndex, status, completedAt, formatTime(now), progressID)
		p, err = scanProgress(row)
		if err != nil {
			return fmt.Errorf("advancing progress: %w", err)
		}

		res.Success = true
		res.IsCompleted = p.Status == citywalk.StatusCompleted
		res.Progress = p
		return nil
	})
	if errors.Is(err, errDuplicateVisit) {
		// The unique constraint caught a duplicate the existence check missed.
		return s.Visit(ctx, userID, pointID, progressID)
	}
	if err != nil {
		return citywalk.VisitResult{}, err
	}

	s.publishVisit(ctx, res, stop, resumed, now)
	return res, nil
}

var errDuplicateVisit = errors.New("duplicate visit")

func grantReward(ctx context.Context, tx *sql.Tx, userID, pathID string, stop citywalk.Stop, now time.Time) (*citywalk.RewardGrant, error) {
	g := citywalk.RewardGrant{
		ID:            uuid.NewString(),
		UserID:        userID,
		PointID:       stop.PointID,
		PathID:        pathID,
		RewardLabel:   stop.Reward.Label,
		RewardIconRef: stop.Reward.IconRef,
		CollectedAt:   now,
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO reward_grants (id, user_id, point_id, path_id, reward_label, reward_icon_ref, collected_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), ?)
		ON CONFLICT (user_id, point_id) DO NOTHING
	`, g.ID, g.UserID, g.PointID, g.PathID, g.RewardLabel, g.RewardIconRef, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("granting reward: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		// Collected on an earlier attempt at this path.
		return nil, nil
	}
	return &g, nil
}

func (s *Service) publishVisit(ctx context.Context, res citywalk.VisitResult, stop citywalk.Stop, resumed bool, now time.Time) {
	p := res.Progress
	base := events.Event{
		UserID:            p.UserID,
		ProgressID:        p.ID,
		PathID:            p.PathID,
		VisitedStopsCount: p.VisitedStopsCount,
		At:                now,
	}

	if resumed {
		ev := base
		ev.Type = events.ProgressResumed
		s.publish(ctx, ev)
	}
	if res.AlreadyVisited {
		return
	}

	ev := base
	ev.Type = events.StopVisited
	ev.PointID = stop.PointID
	ev.StopOrder = stop.OrderIndex
	s.publish(ctx, ev)

	if res.Reward != nil {
		ev := base
		ev.Type = events.RewardGranted
		ev.PointID = stop.PointID
		ev.RewardLabel = res.Reward.RewardLabel
		s.publish(ctx, ev)
	}
	if res.IsCompleted {
		ev := base
		ev.Type = events.PathCompleted
		s.publish(ctx, ev)
	}
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("publishing progress event", "type", ev.Type, "user_id", ev.UserID, "error", err)
	}
}

// withTx runs fn in a transaction and commits if it returns nil.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/citywalk/internal/citywalk"
)

// Active returns the user's in-progress attempt, or citywalk.ErrNotFound.
func (s *Service) Active(ctx context.Context, userID string) (citywalk.PathProgress, error) {
	return activeProgress(ctx, s.db, userID)
}

// Snapshot returns progressID with its path's stops marked visited.
func (s *Service) Snapshot(ctx context.Context, userID, progressID string) (citywalk.Snapshot, error) {
	var snap citywalk.Snapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := progressByID(ctx, tx, progressID)
		if err != nil {
			return err
		}
		if p.UserID != userID {
			return fmt.Errorf("progress %s: %w", progressID, citywalk.ErrNotFound)
		}
		snap, err = snapshot(ctx, tx, p)
		return err
	})
	return snap, err
}

// ActiveSnapshot is Snapshot for the user's in-progress attempt.
func (s *Service) ActiveSnapshot(ctx context.Context, userID string) (citywalk.Snapshot, error) {
	var snap citywalk.Snapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		p, err := activeProgress(ctx, tx, userID)
		if err != nil {
			return err
		}
		snap, err = snapshot(ctx, tx, p)
		return err
	})
	return snap, err
}

func snapshot(ctx context.Context, q querier, p citywalk.PathProgress) (citywalk.Snapshot, error) {
	snap := citywalk.Snapshot{Progress: p}
	if err := q.QueryRowContext(ctx, `SELECT name FROM paths WHERE id = ?`, p.PathID).Scan(&snap.PathName); err != nil {
		return snap, fmt.Errorf("loading path name: %w", err)
	}

	stops, err := pathStops(ctx, q, p.PathID)
	if err != nil {
		return snap, err
	}
	visited, err := visitedPoints(ctx, q, p.ID)
	if err != nil {
		return snap, err
	}
	for i := range stops {
		stops[i].Visited = visited[stops[i].PointID]
	}
	snap.Stops = stops
	snap.TotalStops = len(stops)
	return snap, nil
}

// History lists every attempt of the user, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]citywalk.PathProgress, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+progressColumns+` FROM path_progress
		WHERE user_id = ?
		ORDER BY started_at DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []citywalk.PathProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, p)
	}
	return history, rows.Err()
}

// Rewards lists the rewards the user has collected, oldest first.
func (s *Service) Rewards(ctx context.Context, userID string) ([]citywalk.RewardGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, point_id, path_id, reward_label, reward_icon_ref, collected_at
		FROM reward_grants
		WHERE user_id = ?
		ORDER BY collected_at, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grants := []citywalk.RewardGrant{}
	for rows.Next() {
		var (
			g         citywalk.RewardGrant
			iconRef   sql.NullString
			collected string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.PointID, &g.PathID, &g.RewardLabel, &iconRef, &collected); err != nil {
			return nil, err
		}
		g.RewardIconRef = iconRef.String
		if g.CollectedAt, err = parseTime(collected); err != nil {
			return nil, fmt.Errorf("parsing collected_at: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// Paths lists the catalogue.
func (s *Service) Paths(ctx context.Context) ([]citywalk.PathSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.city, p.description,
			(SELECT COUNT(*) FROM points WHERE path_id = p.id)
		FROM paths p
		ORDER BY p.name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	paths := []citywalk.PathSummary{}
	for rows.Next() {
		var p citywalk.PathSummary
		if err := rows.Scan(&p.ID, &p.Name, &p.City, &p.Description, &p.TotalStops); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Path returns one path with its ordered stops.
func (s *Service) Path(ctx context.Context, pathID string) (citywalk.Path, error) {
	var (
		p       citywalk.Path
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, city, description, created_at FROM paths WHERE id = ?
	`, pathID).Scan(&p.ID, &p.Name, &p.City, &p.Description, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return p, fmt.Errorf("path %s: %w", pathID, citywalk.ErrNotFound)
	}
	if err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return p, fmt.Errorf("parsing created_at: %w", err)
	}

	if p.Stops, err = pathStops(ctx, s.db, pathID); err != nil {
		return p, err
	}
	p.TotalStops = len(p.Stops)
	return p, nil
}

// CreatePath stores a path and its stops. Stop order follows the slice;
// empty IDs are generated.
func (s *Service) CreatePath(ctx context.Context, p citywalk.Path) (citywalk.Path, error) {
	if p.Name == "" {
		return p, errors.New("path name is required")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p.Stops = append([]citywalk.Stop(nil), p.Stops...)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO paths (id, name, city, description, created_at) VALUES (?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.City, p.Description, formatTime(p.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("path %q: %w", p.Name, citywalk.ErrConflict)
			}
			return fmt.Errorf("inserting path: %w", err)
		}

		for i := range p.Stops {
			st := &p.Stops[i]
			if st.PointID == "" {
				st.PointID = uuid.NewString()
			}
			st.OrderIndex = i
			st.RadiusMeters = st.Radius()
			var label, iconRef any
			if st.Reward != nil {
				label, iconRef = st.Reward.Label, nullIfEmpty(st.Reward.IconRef)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO points (id, path_id, order_index, title, lat, lng, radius_meters,
					narration, audio_ref, character_ref, reward_label, reward_icon_ref)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, st.PointID, p.ID, st.OrderIndex, st.Title, st.Lat, st.Lng, st.RadiusMeters,
				st.Narration, nullIfEmpty(st.AudioRef), nullIfEmpty(st.CharacterRef), label, iconRef); err != nil {
				return fmt.Errorf("inserting stop %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return citywalk.Path{}, err
	}
	p.TotalStops = len(p.Stops)
	p.CreatedAt = p.CreatedAt.UTC().Truncate(time.Microsecond)
	return p, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

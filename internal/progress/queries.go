package progress

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/playperu/citywalk/internal/citywalk"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const progressColumns = `id, user_id, path_id, status, visited_stops_count,
	last_visited_stop_order, started_at, completed_at, updated_at`

func scanProgress(row scanner) (citywalk.PathProgress, error) {
	var (
		p                    citywalk.PathProgress
		lastOrder            sql.NullInt64
		startedAt, updatedAt string
		completedAt          sql.NullString
	)
	err := row.Scan(&p.ID, &p.UserID, &p.PathID, &p.Status, &p.VisitedStopsCount,
		&lastOrder, &startedAt, &completedAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return p, citywalk.ErrNotFound
	}
	if err != nil {
		return p, err
	}

	if lastOrder.Valid {
		n := int(lastOrder.Int64)
		p.LastVisitedStopOrder = &n
	}
	if p.StartedAt, err = parseTime(startedAt); err != nil {
		return p, fmt.Errorf("parsing started_at: %w", err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return p, fmt.Errorf("parsing updated_at: %w", err)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return p, fmt.Errorf("parsing completed_at: %w", err)
		}
		p.CompletedAt = &t
	}
	return p, nil
}

func progressByID(ctx context.Context, q querier, id string) (citywalk.PathProgress, error) {
	row := q.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM path_progress WHERE id = ?`, id)
	p, err := scanProgress(row)
	if errors.Is(err, citywalk.ErrNotFound) {
		return p, fmt.Errorf("progress %s: %w", id, citywalk.ErrNotFound)
	}
	return p, err
}

func activeProgress(ctx context.Context, q querier, userID string) (citywalk.PathProgress, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+progressColumns+` FROM path_progress
		WHERE user_id = ? AND status = 'in_progress'
	`, userID)
	return scanProgress(row)
}

func totalStops(ctx context.Context, q querier, pathID string) (int, error) {
	var exists, total int
	err := q.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM paths WHERE id = ?),
			(SELECT COUNT(*) FROM points WHERE path_id = ?)
	`, pathID, pathID).Scan(&exists, &total)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, fmt.Errorf("path %s: %w", pathID, citywalk.ErrNotFound)
	}
	return total, nil
}

const stopColumns = `id, order_index, title, lat, lng, radius_meters, narration,
	audio_ref, character_ref, reward_label, reward_icon_ref`

// scanStop scans stopColumns, preceded by any extra leading columns.
func scanStop(row scanner, extra ...any) (citywalk.Stop, error) {
	var (
		s                                citywalk.Stop
		radius                           sql.NullFloat64
		audio, character, label, iconRef sql.NullString
	)
	dest := append(extra, &s.PointID, &s.OrderIndex, &s.Title, &s.Lat, &s.Lng, &radius,
		&s.Narration, &audio, &character, &label, &iconRef)
	if err := row.Scan(dest...); err != nil {
		return s, err
	}
	s.RadiusMeters = citywalk.DefaultRadiusMeters
	if radius.Valid && radius.Float64 > 0 {
		s.RadiusMeters = radius.Float64
	}
	s.AudioRef = audio.String
	s.CharacterRef = character.String
	if label.Valid && label.String != "" {
		s.Reward = &citywalk.Reward{Label: label.String, IconRef: iconRef.String}
	}
	return s, nil
}

// pathStop loads pointID, requiring it to belong to pathID.
func pathStop(ctx context.Context, q querier, pathID, pointID string) (citywalk.Stop, error) {
	var owner string
	row := q.QueryRowContext(ctx, `SELECT path_id, `+stopColumns+` FROM points WHERE id = ?`, pointID)
	s, err := scanStop(row, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return s, fmt.Errorf("point %s: %w", pointID, citywalk.ErrNotFound)
	}
	if err != nil {
		return s, err
	}
	if owner != pathID {
		return citywalk.Stop{}, fmt.Errorf("point %s: %w", pointID, citywalk.ErrPointNotInPath)
	}
	return s, nil
}

func pathStops(ctx context.Context, q querier, pathID string) ([]citywalk.Stop, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+stopColumns+` FROM points WHERE path_id = ? ORDER BY order_index
	`, pathID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stops := []citywalk.Stop{}
	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

func hasVisit(ctx context.Context, q querier, progressID, pointID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM point_visits WHERE path_progress_id = ? AND point_id = ?
	`, progressID, pointID).Scan(&n)
	return n > 0, err
}

func visitedPoints(ctx context.Context, q querier, progressID string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT point_id FROM point_visits WHERE path_progress_id = ?
	`, progressID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visited := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		visited[id] = true
	}
	return visited, rows.Err()
}

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/model"
)

// LatestWindowEnd returns the to_ts of the latest windows row for a system,
// or the zero time if none exist yet (§4.G).
func (s *Store) LatestWindowEnd(ctx context.Context, systemID string) (time.Time, error) {
	var to stdNullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT max(to_ts) FROM windows WHERE system_id = $1`, systemID).Scan(&to)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: latest window end: %w", err)
	}
	if !to.Valid {
		return time.Time{}, nil
	}
	return to.Time, nil
}

// IntervalFullyScored reports whether every event in [from, to) already has
// an event_scores row (§4.G: a window only advances once scoring caught up).
func (s *Store) IntervalFullyScored(ctx context.Context, systemID string, from, to time.Time) (bool, error) {
	var unscored int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM events e
		WHERE e.system_id = $1 AND e.timestamp >= $2 AND e.timestamp < $3
		  AND NOT EXISTS (SELECT 1 FROM event_scores es WHERE es.event_id = e.id)`,
		systemID, from, to).Scan(&unscored)
	if err != nil {
		return false, fmt.Errorf("store: interval fully scored: %w", err)
	}
	return unscored == 0, nil
}

// InsertWindow persists a new windows row.
func (s *Store) InsertWindow(ctx context.Context, w model.Window) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO windows (window_id, system_id, from_ts, to_ts, trigger)
		VALUES ($1,$2,$3,$4,$5)`,
		w.ID, w.SystemID, w.FromTS, w.ToTS, string(w.Trigger))
	if err != nil {
		return fmt.Errorf("store: insert window: %w", err)
	}
	return nil
}

package database

import (
	"context"
	"fmt"
	"time"
)

// ZeroMatchingEventScores implements the "on template create" retroactive
// pass (§4.E): zero event_scores.score for every event in [from, now)
// whose message matches messageRegex, scoped to systemID (empty = global),
// and return the distinct window ids whose effective_scores need
// recomputation as a result.
func (s *Store) ZeroMatchingEventScores(ctx context.Context, systemID, messageRegex string, from time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT w.window_id
		FROM events e
		JOIN windows w ON w.system_id = e.system_id AND e.timestamp >= w.from_ts AND e.timestamp < w.to_ts
		WHERE e.timestamp >= $1 AND e.message ~* $2 AND ($3 = '' OR e.system_id = $3)
		  AND EXISTS (SELECT 1 FROM event_scores es WHERE es.event_id = e.id)`,
		from, messageRegex, systemID)
	if err != nil {
		return nil, fmt.Errorf("store: find windows for retroactive template: %w", err)
	}
	var windowIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan affected window: %w", err)
		}
		windowIDs = append(windowIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE event_scores SET score = 0
		FROM events e
		WHERE event_scores.event_id = e.id
		  AND e.timestamp >= $1 AND e.message ~* $2 AND ($3 = '' OR e.system_id = $3)`,
		from, messageRegex, systemID)
	if err != nil {
		return nil, fmt.Errorf("store: zero matching event scores: %w", err)
	}
	return windowIDs, nil
}

// RecomputeEffectiveScoresForWindows recomputes max_event_score (and, when
// it drops to zero, meta_score_effective/effective_value per the zeroing
// blend, §3) for the given window ids, per criterion.
func (s *Store) RecomputeEffectiveScoresForWindows(ctx context.Context, windowIDs []string) error {
	if len(windowIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		WITH window_max AS (
			SELECT w.window_id, w.system_id, es.criterion_id, max(es.score) AS max_event_score
			FROM windows w
			JOIN events e ON e.system_id = w.system_id AND e.timestamp >= w.from_ts AND e.timestamp < w.to_ts
			JOIN event_scores es ON es.event_id = e.id
			WHERE w.window_id = ANY($1)
			GROUP BY w.window_id, w.system_id, es.criterion_id
		)
		UPDATE effective_scores es
		SET max_event_score = wm.max_event_score,
		    effective_value = CASE WHEN wm.max_event_score = 0 THEN 0 ELSE 0.7 * es.meta_score + 0.3 * wm.max_event_score END,
		    meta_score = CASE WHEN wm.max_event_score = 0 THEN 0 ELSE es.meta_score END,
		    updated_at = now()
		FROM window_max wm
		WHERE es.window_id = wm.window_id AND es.system_id = wm.system_id AND es.criterion_id = wm.criterion_id`,
		pqStringArray(windowIDs))
	if err != nil {
		return fmt.Errorf("store: recompute effective scores: %w", err)
	}
	return nil
}

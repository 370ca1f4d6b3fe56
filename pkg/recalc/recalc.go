// Package recalc implements the effective-score recalculation engine
// (§4.K): it recomputes max_event_score for already-analyzed windows
// without waiting for the next meta-analysis run. It runs only when
// POST /api/v1/systems/:id/recalculate-scores is called; acknowledging or
// unacknowledging events and editing normal-behavior templates do not
// trigger it.
package recalc

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Engine recomputes effective_scores rows against the live event/event_scores
// state, honoring acknowledged-event and normal-behavior-template exclusions.
type Engine struct {
	db *sql.DB
}

// New builds an Engine over the shared database connection (raw SQL, not
// ent, since this is a handful of set-based UPDATE/INSERT statements rather
// than entity CRUD).
func New(db *sql.DB) *Engine {
	return &Engine{db: db}
}

// Result summarizes one recalculation call.
type Result struct {
	RowsUpdated int
	Seeded      bool
}

// Recalculate implements §4.K for one system within the given display
// window. displaySince bounds both the window lookup and the live-event
// scan; it's the dashboard's configured display window, not the scoring
// window size.
func (e *Engine) Recalculate(ctx context.Context, systemID string, displaySince time.Time) (Result, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("recalc: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := e.updateExisting(ctx, tx, systemID, displaySince)
	if err != nil {
		return Result{}, err
	}

	result := Result{RowsUpdated: rows}
	if rows == 0 {
		seeded, err := e.seed(ctx, tx, systemID, displaySince)
		if err != nil {
			return Result{}, err
		}
		result.Seeded = seeded
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("recalc: commit: %w", err)
	}
	return result, nil
}

// updateExisting recomputes max_event_score for every effective_scores row
// already on the books for this system within the display window, over the
// events inside that row's window, excluding acknowledged events and any
// event matching an enabled normal-behavior template (§4.K: normal_ids /
// window_max CTEs).
func (e *Engine) updateExisting(ctx context.Context, tx *sql.Tx, systemID string, displaySince time.Time) (int, error) {
	const query = `
WITH normal_ids AS (
	SELECT e.id FROM events e
	JOIN normal_behavior_templates t ON t.system_id = e.system_id AND t.enabled
	WHERE e.system_id = $1
	  AND e.timestamp >= $2
	  AND e.message ~ t.pattern
	  AND (t.host_pattern = '' OR e.host ~ t.host_pattern)
	  AND (t.program_pattern = '' OR e.program ~ t.program_pattern)
),
window_max AS (
	SELECT es.window_id, es.system_id, es.criterion_id, MAX(sc.score) AS new_max
	FROM effective_scores es
	JOIN windows w ON w.id = es.window_id
	JOIN events e ON e.system_id = es.system_id
	  AND e.timestamp >= $2
	  AND e.timestamp >= w.from_ts AND e.timestamp < w.to_ts
	JOIN event_scores sc ON sc.event_id = e.id
	  AND sc.criterion_id = es.criterion_id
	  AND sc.score_type = 'event'
	WHERE es.system_id = $1
	  AND e.acknowledged_at IS NULL
	  AND e.id NOT IN (SELECT id FROM normal_ids)
	GROUP BY es.window_id, es.system_id, es.criterion_id
)
UPDATE effective_scores es
SET max_event_score = wm.new_max,
    effective_value = 0.7 * es.meta_score + 0.3 * wm.new_max,
    updated_at = now()
FROM window_max wm
WHERE es.window_id = wm.window_id
  AND es.system_id = wm.system_id
  AND es.criterion_id = wm.criterion_id`

	res, err := tx.ExecContext(ctx, query, systemID, displaySince)
	if err != nil {
		return 0, fmt.Errorf("recalc: update effective_scores: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recalc: rows affected: %w", err)
	}
	return int(n), nil
}

// seed implements §4.K's seed path: when no rows were updated (e.g. no
// meta-analysis has run yet for this system), find the latest window and
// insert a placeholder effective_scores row per criterion with meta_score=0
// so the dashboard has something non-empty until the next real run.
func (e *Engine) seed(ctx context.Context, tx *sql.Tx, systemID string, displaySince time.Time) (bool, error) {
	var windowID string
	err := tx.QueryRowContext(ctx, `
SELECT id FROM windows
WHERE system_id = $1 AND from_ts >= $2
ORDER BY to_ts DESC
LIMIT 1`, systemID, displaySince).Scan(&windowID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("recalc: find latest window: %w", err)
	}

	const query = `
WITH normal_ids AS (
	SELECT e.id FROM events e
	JOIN normal_behavior_templates t ON t.system_id = e.system_id AND t.enabled
	WHERE e.system_id = $1
	  AND e.timestamp >= $3
	  AND e.message ~ t.pattern
	  AND (t.host_pattern = '' OR e.host ~ t.host_pattern)
	  AND (t.program_pattern = '' OR e.program ~ t.program_pattern)
),
live_max AS (
	SELECT sc.criterion_id, MAX(sc.score) AS new_max
	FROM events e
	JOIN event_scores sc ON sc.event_id = e.id AND sc.score_type = 'event'
	WHERE e.system_id = $1
	  AND e.timestamp >= $3
	  AND e.acknowledged_at IS NULL
	  AND e.id NOT IN (SELECT id FROM normal_ids)
	GROUP BY sc.criterion_id
)
INSERT INTO effective_scores (window_id, system_id, criterion_id, meta_score, max_event_score, effective_value, updated_at)
SELECT $2, $1, lm.criterion_id, 0, lm.new_max, 0.3 * lm.new_max, now()
FROM live_max lm
ON CONFLICT (window_id, criterion_id) DO UPDATE
SET max_event_score = EXCLUDED.max_event_score,
    effective_value = EXCLUDED.effective_value,
    updated_at = now()`

	if _, err := tx.ExecContext(ctx, query, systemID, windowID, displaySince); err != nil {
		return false, fmt.Errorf("recalc: seed effective_scores: %w", err)
	}
	return true, nil
}

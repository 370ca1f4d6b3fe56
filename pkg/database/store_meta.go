package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/api"
	"github.com/logpulse/logpulse/pkg/model"
)

// ExistingMetaResult reports whether a window already has a meta_results
// row, making meta-analysis idempotent on retry (§4.H step 1).
func (s *Store) ExistingMetaResult(ctx context.Context, windowID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM meta_results WHERE window_id = $1)`, windowID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: existing meta result: %w", err)
	}
	return exists, nil
}

// LoadWindow loads a window alongside its owning system and that system's
// log sources, needed to assemble meta-analysis context (§4.H step 2).
func (s *Store) LoadWindow(ctx context.Context, windowID string) (model.Window, model.MonitoredSystem, []model.LogSource, error) {
	var w model.Window
	var trigger string
	err := s.db.QueryRowContext(ctx, `
		SELECT window_id, system_id, from_ts, to_ts, trigger FROM windows WHERE window_id = $1`, windowID).
		Scan(&w.ID, &w.SystemID, &w.FromTS, &w.ToTS, &trigger)
	if err != nil {
		return model.Window{}, model.MonitoredSystem{}, nil, fmt.Errorf("store: load window: %w", err)
	}
	w.Trigger = model.WindowTrigger(trigger)

	sys, err := s.System(ctx, w.SystemID)
	if err != nil {
		return model.Window{}, model.MonitoredSystem{}, nil, err
	}
	sources, err := s.LogSources(ctx, w.SystemID)
	if err != nil {
		return model.Window{}, model.MonitoredSystem{}, nil, err
	}
	return w, sys, sources, nil
}

// PreviousSummaries returns the most recent prior meta_results.summary
// values for a system before a window's start, newest first (§4.H step 5).
func (s *Store) PreviousSummaries(ctx context.Context, systemID string, beforeWindow time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT mr.summary
		FROM meta_results mr
		JOIN windows w ON w.window_id = mr.window_id
		WHERE w.system_id = $1 AND w.to_ts < $2
		ORDER BY w.to_ts DESC
		LIMIT $3`, systemID, beforeWindow, limit)
	if err != nil {
		return nil, fmt.Errorf("store: previous summaries: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var summary string
		if err := rows.Scan(&summary); err != nil {
			return nil, fmt.Errorf("store: scan previous summary: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// OpenAndAcknowledgedFindings returns open+acknowledged findings newest
// first; limit <= 0 means unlimited (§4.H step 6).
func (s *Store) OpenAndAcknowledgedFindings(ctx context.Context, systemID string, limit int) ([]model.Finding, error) {
	query := `
		SELECT finding_id, system_id, criterion_slug, text, severity, status, fingerprint,
		       occurrence_count, consecutive_misses, reopen_count, created_at, last_seen_at,
		       resolved_at, resolution_evidence, key_event_ids, meta_result_id
		FROM findings
		WHERE system_id = $1 AND status IN ('open', 'acknowledged')
		ORDER BY last_seen_at DESC`
	args := []interface{}{systemID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	return s.queryFindings(ctx, query, args...)
}

// RecentlyResolvedFindings returns findings resolved at or after since, used
// to avoid re-raising a just-resolved issue (§4.H step 7, §4.I).
func (s *Store) RecentlyResolvedFindings(ctx context.Context, systemID string, since time.Time) ([]model.Finding, error) {
	return s.queryFindings(ctx, `
		SELECT finding_id, system_id, criterion_slug, text, severity, status, fingerprint,
		       occurrence_count, consecutive_misses, reopen_count, created_at, last_seen_at,
		       resolved_at, resolution_evidence, key_event_ids, meta_result_id
		FROM findings
		WHERE system_id = $1 AND status = 'resolved' AND resolved_at >= $2
		ORDER BY resolved_at DESC`, systemID, since)
}

// Findings returns one page of a system's findings, most recently seen
// first (§6).
func (s *Store) Findings(ctx context.Context, systemID string, p api.Pagination) ([]model.Finding, int, error) {
	limit, offset := pageBounds(p)
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM findings WHERE system_id = $1`, systemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count findings: %w", err)
	}
	findings, err := s.queryFindings(ctx, `
		SELECT finding_id, system_id, criterion_slug, text, severity, status, fingerprint,
		       occurrence_count, consecutive_misses, reopen_count, created_at, last_seen_at,
		       resolved_at, resolution_evidence, key_event_ids, meta_result_id
		FROM findings WHERE system_id = $1
		ORDER BY last_seen_at DESC LIMIT $2 OFFSET $3`, systemID, limit, offset)
	return findings, total, err
}

// Finding loads a single finding by id.
func (s *Store) Finding(ctx context.Context, findingID string) (model.Finding, error) {
	findings, err := s.queryFindings(ctx, `
		SELECT finding_id, system_id, criterion_slug, text, severity, status, fingerprint,
		       occurrence_count, consecutive_misses, reopen_count, created_at, last_seen_at,
		       resolved_at, resolution_evidence, key_event_ids, meta_result_id
		FROM findings WHERE finding_id = $1`, findingID)
	if err != nil {
		return model.Finding{}, err
	}
	if len(findings) == 0 {
		return model.Finding{}, fmt.Errorf("store: finding %s not found", findingID)
	}
	return findings[0], nil
}

// AcknowledgeFinding transitions a finding from open to acknowledged (§4.I).
func (s *Store) AcknowledgeFinding(ctx context.Context, findingID string) (model.Finding, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE findings SET status = 'acknowledged' WHERE finding_id = $1 AND status = 'open'`, findingID)
	if err != nil {
		return model.Finding{}, fmt.Errorf("store: acknowledge finding: %w", err)
	}
	return s.Finding(ctx, findingID)
}

// ReopenFinding transitions an acknowledged finding back to open (§4.I). A
// finding in any other status is left unchanged and model.ErrConflict is
// returned; the legacy reopen_count is not touched.
func (s *Store) ReopenFinding(ctx context.Context, findingID string) (model.Finding, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE findings SET status = 'open'
		WHERE finding_id = $1 AND status = 'acknowledged'`, findingID)
	if err != nil {
		return model.Finding{}, fmt.Errorf("store: reopen finding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.Finding(ctx, findingID); err != nil {
			return model.Finding{}, err
		}
		return model.Finding{}, fmt.Errorf("store: reopen finding %s: only acknowledged findings can be reopened: %w", findingID, model.ErrConflict)
	}
	return s.Finding(ctx, findingID)
}

func (s *Store) queryFindings(ctx context.Context, query string, args ...interface{}) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query findings: %w", err)
	}
	defer rows.Close()

	var out []model.Finding
	for rows.Next() {
		var f model.Finding
		var criterionSlug stdNullString
		var resolvedAt stdNullTime
		var evidence, keyEventIDs []byte
		var metaResultID stdNullString
		if err := rows.Scan(&f.ID, &f.SystemID, &criterionSlug, &f.Text, &f.Severity, &f.Status, &f.Fingerprint,
			&f.OccurrenceCount, &f.ConsecutiveMisses, &f.ReopenCount, &f.CreatedAt, &f.LastSeenAt,
			&resolvedAt, &evidence, &keyEventIDs, &metaResultID); err != nil {
			return nil, fmt.Errorf("store: scan finding: %w", err)
		}
		f.CriterionSlug = criterionSlug.String
		f.ResolvedByMetaID = metaResultID.String
		if resolvedAt.Valid {
			t := resolvedAt.Time
			f.ResolvedAt = &t
		}
		if len(evidence) > 0 {
			var ev model.ResolutionEvidence
			if json.Unmarshal(evidence, &ev) == nil {
				f.ResolutionEvidence = &ev
			}
		}
		if len(keyEventIDs) > 0 {
			json.Unmarshal(keyEventIDs, &f.KeyEventIDs)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// InsertMetaResult persists one window's meta-analysis output (§4.H step 20).
func (s *Store) InsertMetaResult(ctx context.Context, mr model.MetaResult) error {
	if mr.ID == "" {
		mr.ID = uuid.NewString()
	}
	metaScores, err := jsonText(mr.MetaScores)
	if err != nil {
		return fmt.Errorf("store: marshal meta scores: %w", err)
	}
	findings, err := jsonText(mr.Findings)
	if err != nil {
		return fmt.Errorf("store: marshal legacy findings: %w", err)
	}
	keyEventIDs, err := jsonText(mr.KeyEventIDs)
	if err != nil {
		return fmt.Errorf("store: marshal key event ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO meta_results (meta_result_id, window_id, meta_scores, summary, findings,
			recommended_action, key_event_ids, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())`,
		mr.ID, mr.WindowID, metaScores, mr.Summary, findings, nullString(mr.RecommendedAction), keyEventIDs)
	if err != nil {
		return fmt.Errorf("store: insert meta result: %w", err)
	}
	return nil
}

// MetaResults returns one page of a system's meta_results, newest first (§6).
func (s *Store) MetaResults(ctx context.Context, systemID string, p api.Pagination) ([]model.MetaResult, int, error) {
	limit, offset := pageBounds(p)
	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM meta_results mr JOIN windows w ON w.window_id = mr.window_id WHERE w.system_id = $1`,
		systemID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count meta results: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT mr.meta_result_id, mr.window_id, mr.meta_scores, mr.summary, mr.findings,
		       mr.recommended_action, mr.key_event_ids, mr.created_at
		FROM meta_results mr JOIN windows w ON w.window_id = mr.window_id
		WHERE w.system_id = $1
		ORDER BY mr.created_at DESC LIMIT $2 OFFSET $3`, systemID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list meta results: %w", err)
	}
	defer rows.Close()

	var out []model.MetaResult
	for rows.Next() {
		var mr model.MetaResult
		var metaScores, findings, keyEventIDs []byte
		var recommendedAction stdNullString
		if err := rows.Scan(&mr.ID, &mr.WindowID, &metaScores, &mr.Summary, &findings,
			&recommendedAction, &keyEventIDs, &mr.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("store: scan meta result: %w", err)
		}
		mr.MetaScores = decodeScoreMap(metaScores)
		mr.RecommendedAction = recommendedAction.String
		if len(findings) > 0 {
			json.Unmarshal(findings, &mr.Findings)
		}
		if len(keyEventIDs) > 0 {
			json.Unmarshal(keyEventIDs, &mr.KeyEventIDs)
		}
		out = append(out, mr)
	}
	return out, total, rows.Err()
}

// InsertFinding creates a new finding row (§4.I).
func (s *Store) InsertFinding(ctx context.Context, f model.Finding) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	evidence, err := jsonText(f.ResolutionEvidence)
	if err != nil {
		return fmt.Errorf("store: marshal resolution evidence: %w", err)
	}
	keyEventIDs, err := jsonText(f.KeyEventIDs)
	if err != nil {
		return fmt.Errorf("store: marshal key event ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO findings (finding_id, system_id, criterion_slug, text, severity, status,
			fingerprint, occurrence_count, consecutive_misses, reopen_count, created_at,
			last_seen_at, resolved_at, resolution_evidence, key_event_ids, meta_result_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now(), now(), $11,$12,$13,$14)`,
		f.ID, f.SystemID, nullString(f.CriterionSlug), f.Text, string(f.Severity), string(f.Status),
		f.Fingerprint, f.OccurrenceCount, f.ConsecutiveMisses, f.ReopenCount,
		f.ResolvedAt, evidence, keyEventIDs, nullString(f.ResolvedByMetaID))
	if err != nil {
		return fmt.Errorf("store: insert finding: %w", err)
	}
	return nil
}

// UpdateFinding overwrites a finding's mutable fields: status, severity
// (escalate-only per caller), occurrence/consecutive-miss counters,
// last_seen_at, and resolution bookkeeping (§4.I).
func (s *Store) UpdateFinding(ctx context.Context, f model.Finding) error {
	evidence, err := jsonText(f.ResolutionEvidence)
	if err != nil {
		return fmt.Errorf("store: marshal resolution evidence: %w", err)
	}
	keyEventIDs, err := jsonText(f.KeyEventIDs)
	if err != nil {
		return fmt.Errorf("store: marshal key event ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE findings SET
			severity = $2, status = $3, occurrence_count = $4, consecutive_misses = $5,
			last_seen_at = $6, resolved_at = $7, resolution_evidence = $8, key_event_ids = $9,
			meta_result_id = $10
		WHERE finding_id = $1`,
		f.ID, string(f.Severity), string(f.Status), f.OccurrenceCount, f.ConsecutiveMisses,
		timeOrNow(f.LastSeenAt), f.ResolvedAt, evidence, keyEventIDs, nullString(f.ResolvedByMetaID))
	if err != nil {
		return fmt.Errorf("store: update finding: %w", err)
	}
	return nil
}

// IncrementConsecutiveMisses bumps consecutive_misses for findings that
// weren't re-surfaced by the latest meta-analysis pass (§4.I recency decay).
func (s *Store) IncrementConsecutiveMisses(ctx context.Context, findingIDs []string) error {
	if len(findingIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE findings SET consecutive_misses = consecutive_misses + 1
		WHERE finding_id = ANY($1)`, pqStringArray(findingIDs))
	if err != nil {
		return fmt.Errorf("store: increment consecutive misses: %w", err)
	}
	return nil
}

// UpsertEffectiveScore inserts or updates the one effective_scores row for
// (window, system, criterion) (§3, §4.H step 21).
func (s *Store) UpsertEffectiveScore(ctx context.Context, es model.EffectiveScore) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO effective_scores (effective_score_id, window_id, system_id, criterion_id,
			meta_score, max_event_score, effective_value, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())
		ON CONFLICT (window_id, system_id, criterion_id) DO UPDATE SET
			meta_score = EXCLUDED.meta_score,
			max_event_score = EXCLUDED.max_event_score,
			effective_value = EXCLUDED.effective_value,
			updated_at = now()`,
		uuid.NewString(), es.WindowID, es.SystemID, es.CriterionID, es.MetaScore, es.MaxEventScore, es.EffectiveValue)
	if err != nil {
		return fmt.Errorf("store: upsert effective score: %w", err)
	}
	return nil
}

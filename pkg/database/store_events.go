package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/api"
	"github.com/logpulse/logpulse/pkg/events"
	"github.com/logpulse/logpulse/pkg/model"
	"github.com/logpulse/logpulse/pkg/normalize"
)

// InsertEvents persists a batch inside one transaction (one prepared INSERT
// per event), relying on the unique index on (normalized_hash, timestamp)
// for idempotent re-ingest (§6, §4.A).
func (s *Store) InsertEvents(ctx context.Context, events []*model.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin insert events: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (id, system_id, log_source_id, connector_id, received_at, timestamp,
			message, severity, host, source_ip, service, facility, program, trace_id, span_id,
			payload, normalized_hash, external_id, template_id, acknowledged_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (normalized_hash, timestamp) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("store: prepare insert events: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		var payload interface{}
		if len(ev.Payload) > 0 {
			payload = []byte(ev.Payload)
		}
		if _, err := stmt.ExecContext(ctx, ev.ID, ev.SystemID, nullString(ev.LogSourceID), nullString(ev.ConnectorID),
			ev.ReceivedAt, ev.Timestamp, ev.Message, string(ev.Severity), nullString(ev.Host), nullString(ev.SourceIP),
			nullString(ev.Service), ev.Facility, nullString(ev.Program), nullString(ev.TraceID), nullString(ev.SpanID),
			payload, ev.NormalizedHash, nullString(ev.ExternalID), nullString(ev.TemplateID), ev.AcknowledgedAt); err != nil {
			return fmt.Errorf("store: insert event: %w", err)
		}
	}
	return tx.Commit()
}

// BufferDiscovery fire-and-forgets an unmatched entry; failures are logged
// here, never returned to the caller (§4.C/§4.D).
func (s *Store) BufferDiscovery(ctx context.Context, entry model.DiscoveryBufferEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO discovery_buffer (entry_id, host, source_ip, program, facility, severity, message_sample, received_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7, now())`,
		entry.ID, nullString(entry.Host), nullString(entry.SourceIP), nullString(entry.Program),
		entry.Facility, nullString(string(entry.Severity)), entry.MessageSample); err != nil {
		slog.Warn("store: buffer discovery entry failed", "error", err)
	}
}

// SystemTZInfo returns the timezone facts for a resolved system.
func (s *Store) SystemTZInfo(ctx context.Context, systemID string) (normalize.SystemTZInfo, error) {
	sys, err := s.System(ctx, systemID)
	if err != nil {
		return normalize.SystemTZInfo{}, err
	}
	return normalize.SystemTZInfo{TZName: sys.TimezoneName, TZOffsetMinutes: sys.TZOffsetMinutes}, nil
}

// UnscoredEventsBySystem returns up to limit events with no event_scores
// row yet, grouped by system (§4.F).
func (s *Store) UnscoredEventsBySystem(ctx context.Context, limit int) (map[string][]*model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.system_id, e.log_source_id, e.connector_id, e.received_at, e.timestamp,
		       e.message, e.severity, e.host, e.source_ip, e.service, e.facility, e.program,
		       e.trace_id, e.span_id, e.payload, e.normalized_hash, e.external_id, e.template_id, e.acknowledged_at
		FROM events e
		WHERE NOT EXISTS (SELECT 1 FROM event_scores es WHERE es.event_id = e.id)
		ORDER BY e.timestamp
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: unscored events: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]*model.Event)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out[ev.SystemID] = append(out[ev.SystemID], ev)
	}
	return out, rows.Err()
}

// EventScores loads the existing per-criterion scores for a set of events,
// keyed "<event id>:<criterion id>" (the key meta-analysis context assembly
// looks up to take each event's max, §4.H).
func (s *Store) EventScores(ctx context.Context, eventIDs []string) (map[string]model.EventScore, error) {
	if len(eventIDs) == 0 {
		return map[string]model.EventScore{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_id, criterion_id, score_type, score
		FROM event_scores WHERE event_id = ANY($1)`, pqStringArray(eventIDs))
	if err != nil {
		return nil, fmt.Errorf("store: event scores: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.EventScore)
	for rows.Next() {
		var es model.EventScore
		if err := rows.Scan(&es.EventID, &es.CriterionID, &es.ScoreType, &es.Score); err != nil {
			return nil, fmt.Errorf("store: scan event score: %w", err)
		}
		out[fmt.Sprintf("%s:%d", es.EventID, es.CriterionID)] = es
	}
	return out, rows.Err()
}

// InsertEventScores bulk-inserts per-criterion scores for newly scored
// events (§4.F).
func (s *Store) InsertEventScores(ctx context.Context, scores []model.EventScore) error {
	if len(scores) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin insert scores: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO event_scores (event_id, criterion_id, score_type, score) VALUES ($1,$2,$3,$4)`)
	if err != nil {
		return fmt.Errorf("store: prepare insert scores: %w", err)
	}
	defer stmt.Close()

	for _, sc := range scores {
		if _, err := stmt.ExecContext(ctx, sc.EventID, sc.CriterionID, sc.ScoreType, sc.Score); err != nil {
			return fmt.Errorf("store: insert event score: %w", err)
		}
	}
	return tx.Commit()
}

// SetEventTemplateIDs records which normal-behavior template (if any)
// matched each scored event (§4.E).
func (s *Store) SetEventTemplateIDs(ctx context.Context, assignments map[string]string) error {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin set template ids: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE events SET template_id = $2 WHERE id = $1`)
	if err != nil {
		return fmt.Errorf("store: prepare set template ids: %w", err)
	}
	defer stmt.Close()

	for eventID, templateID := range assignments {
		if _, err := stmt.ExecContext(ctx, eventID, nullString(templateID)); err != nil {
			return fmt.Errorf("store: set template id: %w", err)
		}
	}
	return tx.Commit()
}

// ScoringSystemPrompt reads the scoring_system_prompt app_config value.
func (s *Store) ScoringSystemPrompt(ctx context.Context, systemID string) (string, error) {
	cfg, err := s.LoadAppConfig(ctx)
	if err != nil {
		return "", err
	}
	return decodeJSONString(cfg[model.ConfigKeyScoringSystemPrompt]), nil
}

// RecordLLMUsage persists one usage-accounting row (§4.F, §4.H step 24).
func (s *Store) RecordLLMUsage(ctx context.Context, usage model.LLMUsage) error {
	if usage.ID == "" {
		usage.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO llm_usage (usage_id, task, system_id, model, input_tokens, output_tokens,
			request_count, estimated_cost_usd, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8, now())`,
		usage.ID, usage.Task, nullString(usage.SystemID), usage.Model, usage.InputTokens,
		usage.OutputTokens, usage.RequestCount, usage.EstimatedCostUSD)
	if err != nil {
		return fmt.Errorf("store: record llm usage: %w", err)
	}
	return nil
}

// Events returns one page of events for a system, newest first.
func (s *Store) Events(ctx context.Context, systemID string, p api.Pagination) ([]model.Event, int, error) {
	return s.SearchEvents(ctx, api.EventSearchQuery{SystemID: systemID, Pagination: p})
}

// SearchEvents applies the filterable GET /api/v1/events/search query (§6).
func (s *Store) SearchEvents(ctx context.Context, q api.EventSearchQuery) ([]model.Event, int, error) {
	where, args := searchWhereClause(q)

	var total int
	countQuery := "SELECT count(*) FROM events WHERE " + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count events: %w", err)
	}

	limit, offset := pageBounds(q.Pagination)
	order := "timestamp DESC, id ASC"
	if q.Pagination.Sort == "timestamp_asc" {
		order = "timestamp ASC, id ASC"
	}
	args = append(args, limit, offset)
	listQuery := fmt.Sprintf(`
		SELECT id, system_id, log_source_id, connector_id, received_at, timestamp, message, severity,
		       host, source_ip, service, facility, program, trace_id, span_id, payload,
		       normalized_hash, external_id, template_id, acknowledged_at
		FROM events WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`, where, order, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: search events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *ev)
	}
	return out, total, rows.Err()
}

// EventFacets returns distinct severity/host/program counts for the query
// scope (§6).
func (s *Store) EventFacets(ctx context.Context, q api.EventSearchQuery) (api.EventFacetsResponse, error) {
	where, args := searchWhereClause(q)
	resp := api.EventFacetsResponse{Severities: map[string]int{}, Hosts: map[string]int{}, Programs: map[string]int{}}

	facet := func(col string, dest map[string]int) error {
		rows, err := s.db.QueryContext(ctx,
			fmt.Sprintf("SELECT %s, count(*) FROM events WHERE %s AND %s <> '' GROUP BY %s", col, where, col, col), args...)
		if err != nil {
			return fmt.Errorf("store: facet %s: %w", col, err)
		}
		defer rows.Close()
		for rows.Next() {
			var val string
			var count int
			if err := rows.Scan(&val, &count); err != nil {
				return fmt.Errorf("store: scan facet %s: %w", col, err)
			}
			dest[val] = count
		}
		return rows.Err()
	}

	if err := facet("severity", resp.Severities); err != nil {
		return resp, err
	}
	if err := facet("host", resp.Hosts); err != nil {
		return resp, err
	}
	if err := facet("program", resp.Programs); err != nil {
		return resp, err
	}
	return resp, nil
}

// EventsByTraceID returns every event sharing a trace id, oldest first.
func (s *Store) EventsByTraceID(ctx context.Context, traceID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, system_id, log_source_id, connector_id, received_at, timestamp, message, severity,
		       host, source_ip, service, facility, program, trace_id, span_id, payload,
		       normalized_hash, external_id, template_id, acknowledged_at
		FROM events WHERE trace_id = $1 ORDER BY timestamp`, traceID)
	if err != nil {
		return nil, fmt.Errorf("store: events by trace id: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// AcknowledgeEventsInRange sets acknowledged_at for every event in range, in
// batches of 5000 (§6).
func (s *Store) AcknowledgeEventsInRange(ctx context.Context, systemID, from, to string) (int, error) {
	return s.ackEventsInRange(ctx, systemID, from, to, true)
}

// UnacknowledgeEventsInRange clears acknowledged_at for every event in range.
func (s *Store) UnacknowledgeEventsInRange(ctx context.Context, systemID, from, to string) (int, error) {
	return s.ackEventsInRange(ctx, systemID, from, to, false)
}

func (s *Store) ackEventsInRange(ctx context.Context, systemID, from, to string, ack bool) (int, error) {
	const batchSize = 5000
	// Each batch only selects rows not yet in the target state, so the loop
	// ends once a batch comes back short.
	value, state := "now()", "acknowledged_at IS NULL"
	if !ack {
		value, state = "NULL", "acknowledged_at IS NOT NULL"
	}
	var total int
	for {
		query := fmt.Sprintf(`
			WITH batch AS (
				SELECT id FROM events
				WHERE timestamp >= $1 AND timestamp < $2 AND ($3 = '' OR system_id = $3) AND %s
				LIMIT %d
			)
			UPDATE events SET acknowledged_at = %s WHERE id IN (SELECT id FROM batch)`, state, batchSize, value)
		res, err := s.db.ExecContext(ctx, query, from, to, systemID)
		if err != nil {
			return total, fmt.Errorf("store: ack events: %w", err)
		}
		n, _ := res.RowsAffected()
		total += int(n)
		if n < batchSize {
			break
		}
	}
	return total, nil
}

// PreviewTemplateMatches counts and samples currently-stored events a
// candidate normal-behavior pattern would match (§4.E).
func (s *Store) PreviewTemplateMatches(ctx context.Context, candidate model.NormalBehaviorTemplate) ([]model.Event, int, error) {
	where := []string{"message ~* $1"}
	args := []interface{}{candidate.Pattern}
	if candidate.SystemID != "" {
		where = append(where, fmt.Sprintf("system_id = $%d", len(args)+1))
		args = append(args, candidate.SystemID)
	}
	if candidate.HostPattern != "" {
		where = append(where, fmt.Sprintf("host ~* $%d", len(args)+1))
		args = append(args, candidate.HostPattern)
	}
	if candidate.ProgramPattern != "" {
		where = append(where, fmt.Sprintf("program ~* $%d", len(args)+1))
		args = append(args, candidate.ProgramPattern)
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM events WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: preview template count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, system_id, log_source_id, connector_id, received_at, timestamp, message, severity,
		       host, source_ip, service, facility, program, trace_id, span_id, payload,
		       normalized_hash, external_id, template_id, acknowledged_at
		FROM events WHERE %s ORDER BY timestamp DESC LIMIT 20`, whereClause), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: preview template sample: %w", err)
	}
	defer rows.Close()

	var sample []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		sample = append(sample, *ev)
	}
	return sample, total, rows.Err()
}

// WindowEvents loads events inside a window, optionally excluding
// acknowledged ones, capped at maxEvents (§4.H).
func (s *Store) WindowEvents(ctx context.Context, window model.Window, excludeAcknowledged bool, maxEvents int) ([]*model.Event, error) {
	query := `
		SELECT id, system_id, log_source_id, connector_id, received_at, timestamp, message, severity,
		       host, source_ip, service, facility, program, trace_id, span_id, payload,
		       normalized_hash, external_id, template_id, acknowledged_at
		FROM events WHERE system_id = $1 AND timestamp >= $2 AND timestamp < $3`
	if excludeAcknowledged {
		query += " AND acknowledged_at IS NULL"
	}
	query += " ORDER BY timestamp LIMIT $4"
	if maxEvents <= 0 {
		maxEvents = 500
	}

	rows, err := s.db.QueryContext(ctx, query, window.SystemID, window.FromTS, window.ToTS, maxEvents)
	if err != nil {
		return nil, fmt.Errorf("store: window events: %w", err)
	}
	defer rows.Close()

	var out []*model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func searchWhereClause(q api.EventSearchQuery) (string, []interface{}) {
	where := []string{"1=1"}
	var args []interface{}

	add := func(clause string, val interface{}) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if q.SystemID != "" {
		add("system_id = $%d", q.SystemID)
	}
	if q.Q != "" {
		if q.QMode == "contains" {
			add("message ILIKE $%d", "%"+q.Q+"%")
		} else {
			add("to_tsvector('english', message) @@ plainto_tsquery('english', $%d)", q.Q)
		}
	}
	if len(q.Severities) > 0 {
		add("severity = ANY($%d)", pqStringArray(q.Severities))
	}
	if len(q.Hosts) > 0 {
		add("host = ANY($%d)", pqStringArray(q.Hosts))
	}
	if len(q.Programs) > 0 {
		add("program = ANY($%d)", pqStringArray(q.Programs))
	}
	if len(q.Sources) > 0 {
		add("log_source_id = ANY($%d)", pqStringArray(q.Sources))
	}
	if q.From != "" {
		add("timestamp >= $%d", q.From)
	}
	if q.To != "" {
		add("timestamp < $%d", q.To)
	}
	return strings.Join(where, " AND "), args
}

func pageBounds(p api.Pagination) (int, int) {
	limit := p.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := p.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(rows rowScanner) (*model.Event, error) {
	var ev model.Event
	var severity string
	var logSourceID, connectorID, host, sourceIP, service, program, traceID, spanID, externalID, templateID stdNullString
	var facility stdNullInt
	var payload []byte
	var acknowledgedAt stdNullTime

	if err := rows.Scan(&ev.ID, &ev.SystemID, &logSourceID, &connectorID, &ev.ReceivedAt, &ev.Timestamp,
		&ev.Message, &severity, &host, &sourceIP, &service, &facility, &program, &traceID, &spanID,
		&payload, &ev.NormalizedHash, &externalID, &templateID, &acknowledgedAt); err != nil {
		return nil, fmt.Errorf("store: scan event: %w", err)
	}

	ev.Severity = model.Severity(severity)
	ev.LogSourceID = logSourceID.String
	ev.ConnectorID = connectorID.String
	ev.Host = host.String
	ev.SourceIP = sourceIP.String
	ev.Service = service.String
	ev.Program = program.String
	ev.TraceID = traceID.String
	ev.SpanID = spanID.String
	ev.ExternalID = externalID.String
	ev.TemplateID = templateID.String
	if facility.Valid {
		v := facility.Int
		ev.Facility = &v
	}
	if len(payload) > 0 {
		ev.Payload = payload
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		ev.AcknowledgedAt = &t
	}
	return &ev, nil
}

// SystemOverviews returns every system alongside its latest per-criterion
// effective scores, for GET /api/v1/dashboard/systems (§6).
func (s *Store) SystemOverviews(ctx context.Context) ([]api.SystemOverview, error) {
	systems, err := s.Systems(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]api.SystemOverview, 0, len(systems))
	for _, sys := range systems {
		scores := map[string]float64{}
		rows, err := s.db.QueryContext(ctx, `
			SELECT DISTINCT ON (es.criterion_id) es.criterion_id, es.effective_value
			FROM effective_scores es
			WHERE es.system_id = $1
			ORDER BY es.criterion_id, es.updated_at DESC`, sys.ID)
		if err != nil {
			return nil, fmt.Errorf("store: system overview scores: %w", err)
		}
		for rows.Next() {
			var critID int
			var val float64
			if err := rows.Scan(&critID, &val); err != nil {
				rows.Close()
				return nil, fmt.Errorf("store: scan overview score: %w", err)
			}
			if crit, ok := model.CriterionByID(critID); ok {
				scores[crit.Slug] = val
			}
		}
		rows.Close()
		out = append(out, api.SystemOverview{MonitoredSystem: sys, EffectiveScores: scores})
	}
	return out, nil
}

// StreamSystems lists systems for the SSE init message (§5).
func (s *Store) StreamSystems(ctx context.Context) ([]events.SystemSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT system_id, name FROM monitored_systems ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: stream systems: %w", err)
	}
	defer rows.Close()

	var out []events.SystemSummary
	for rows.Next() {
		var sum events.SystemSummary
		if err := rows.Scan(&sum.ID, &sum.Name); err != nil {
			return nil, fmt.Errorf("store: scan stream system: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// RecentMetaResults returns meta_results created at or after since, shaped
// as score updates for the dashboard SSE feed (§5).
func (s *Store) RecentMetaResults(ctx context.Context, since time.Time) ([]events.ScoreUpdate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mr.window_id, w.system_id, mr.created_at, mr.meta_scores, mr.summary
		FROM meta_results mr
		JOIN windows w ON w.window_id = mr.window_id
		WHERE mr.created_at >= $1
		ORDER BY mr.created_at`, since)
	if err != nil {
		return nil, fmt.Errorf("store: recent meta results: %w", err)
	}
	defer rows.Close()

	var out []events.ScoreUpdate
	for rows.Next() {
		var su events.ScoreUpdate
		var createdAt time.Time
		var scoresJSON []byte
		if err := rows.Scan(&su.WindowID, &su.SystemID, &createdAt, &scoresJSON, &su.Summary); err != nil {
			return nil, fmt.Errorf("store: scan recent meta result: %w", err)
		}
		su.CreatedAt = createdAt.Format(time.RFC3339)
		su.Scores = decodeScoreMap(scoresJSON)
		out = append(out, su)
	}
	return out, rows.Err()
}

package database

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/model"
)

// Store is the concrete persistence layer backing every pipeline and API
// component's Store interface (ingest, scoring, window, metaanalysis,
// aiconfig, events, cleanup, normalbehavior, api, orchestrator). It talks
// raw SQL over the shared *sql.DB rather than the ent client: events and
// event_scores are hand-written tables ent doesn't manage at all (§6), and
// using the same query style for the ent-managed tables keeps one idiom
// across the whole store instead of mixing ent builders with raw SQL
// per-table. The schema itself comes from the embedded SQL migrations that
// NewClient runs; no store query goes through the ent client.
type Store struct {
	db *stdsql.DB
}

// NewStore wraps a database connection.
func NewStore(db *stdsql.DB) *Store {
	return &Store{db: db}
}

// Systems lists every monitored system.
func (s *Store) Systems(ctx context.Context) ([]model.MonitoredSystem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT system_id, name, description, retention_days, event_source_kind,
		       timezone_name, tz_offset_minutes, created_at
		FROM monitored_systems ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list systems: %w", err)
	}
	defer rows.Close()

	var out []model.MonitoredSystem
	for rows.Next() {
		var sys model.MonitoredSystem
		if err := rows.Scan(&sys.ID, &sys.Name, &sys.Description, &sys.RetentionDays, &sys.EventSourceKind,
			&sys.TimezoneName, &sys.TZOffsetMinutes, &sys.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan system: %w", err)
		}
		out = append(out, sys)
	}
	return out, rows.Err()
}

// System loads one monitored system by id.
func (s *Store) System(ctx context.Context, systemID string) (model.MonitoredSystem, error) {
	var sys model.MonitoredSystem
	row := s.db.QueryRowContext(ctx, `
		SELECT system_id, name, description, retention_days, event_source_kind,
		       timezone_name, tz_offset_minutes, created_at
		FROM monitored_systems WHERE system_id = $1`, systemID)
	err := row.Scan(&sys.ID, &sys.Name, &sys.Description, &sys.RetentionDays, &sys.EventSourceKind,
		&sys.TimezoneName, &sys.TZOffsetMinutes, &sys.CreatedAt)
	if err != nil {
		return model.MonitoredSystem{}, fmt.Errorf("store: load system %s: %w", systemID, err)
	}
	return sys, nil
}

// LogSources lists the sources registered for one system.
func (s *Store) LogSources(ctx context.Context, systemID string) ([]model.LogSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, system_id, label, host_hint, program_hint, source_ip_hint, connector_hint
		FROM log_sources WHERE system_id = $1`, systemID)
	if err != nil {
		return nil, fmt.Errorf("store: list log sources: %w", err)
	}
	defer rows.Close()

	var out []model.LogSource
	for rows.Next() {
		var src model.LogSource
		if err := rows.Scan(&src.ID, &src.SystemID, &src.Label, &src.HostHint, &src.ProgramHint,
			&src.SourceIPHint, &src.ConnectorHint); err != nil {
			return nil, fmt.Errorf("store: scan log source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// AllLogSources lists every registered source across every system, used to
// build the process-wide source-match registry at startup and whenever
// log_sources change (§4.C).
func (s *Store) AllLogSources(ctx context.Context) ([]model.LogSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, system_id, label, host_hint, program_hint, source_ip_hint, connector_hint
		FROM log_sources`)
	if err != nil {
		return nil, fmt.Errorf("store: list all log sources: %w", err)
	}
	defer rows.Close()

	var out []model.LogSource
	for rows.Next() {
		var src model.LogSource
		if err := rows.Scan(&src.ID, &src.SystemID, &src.Label, &src.HostHint, &src.ProgramHint,
			&src.SourceIPHint, &src.ConnectorHint); err != nil {
			return nil, fmt.Errorf("store: scan log source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// NormalBehaviorTemplates lists templates visible to a system: global
// (system_id empty) plus ones scoped to systemID.
func (s *Store) NormalBehaviorTemplates(ctx context.Context, systemID string) ([]model.NormalBehaviorTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT template_id, system_id, pattern, host_pattern, program_pattern, example_message, enabled, notes
		FROM normal_behavior_templates WHERE system_id = '' OR system_id = $1`, systemID)
	if err != nil {
		return nil, fmt.Errorf("store: list templates: %w", err)
	}
	defer rows.Close()

	var out []model.NormalBehaviorTemplate
	for rows.Next() {
		var t model.NormalBehaviorTemplate
		if err := rows.Scan(&t.ID, &t.SystemID, &t.Pattern, &t.HostPattern, &t.ProgramPattern,
			&t.ExampleMessage, &t.Enabled, &t.Notes); err != nil {
			return nil, fmt.Errorf("store: scan template: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateTemplate inserts a new normal-behavior template.
func (s *Store) CreateTemplate(ctx context.Context, t model.NormalBehaviorTemplate) (model.NormalBehaviorTemplate, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO normal_behavior_templates (template_id, system_id, pattern, host_pattern, program_pattern, example_message, enabled, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.SystemID, t.Pattern, t.HostPattern, t.ProgramPattern, t.ExampleMessage, t.Enabled, t.Notes)
	if err != nil {
		return model.NormalBehaviorTemplate{}, fmt.Errorf("store: create template: %w", err)
	}
	return t, nil
}

// UpdateTemplate overwrites an existing template's fields.
func (s *Store) UpdateTemplate(ctx context.Context, t model.NormalBehaviorTemplate) (model.NormalBehaviorTemplate, error) {
	_, err := s.db.ExecContext(ctx, `
		UPDATE normal_behavior_templates
		SET system_id = $2, pattern = $3, host_pattern = $4, program_pattern = $5,
		    example_message = $6, enabled = $7, notes = $8
		WHERE template_id = $1`,
		t.ID, t.SystemID, t.Pattern, t.HostPattern, t.ProgramPattern, t.ExampleMessage, t.Enabled, t.Notes)
	if err != nil {
		return model.NormalBehaviorTemplate{}, fmt.Errorf("store: update template: %w", err)
	}
	return t, nil
}

// DeleteTemplate removes a template by id.
func (s *Store) DeleteTemplate(ctx context.Context, templateID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM normal_behavior_templates WHERE template_id = $1`, templateID)
	if err != nil {
		return fmt.Errorf("store: delete template: %w", err)
	}
	return nil
}

// jsonText marshals v to a JSON string for a jsonb column parameter.
func jsonText(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Package cleanup implements the periodic data-retention sweep (§6
// default_retention_days / maintenance_interval_hours): past each
// monitored system's retention window, its events (and their
// event_scores) are deleted, along with aged llm_usage and
// discovery_buffer rows.
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/logpulse/logpulse/pkg/model"
)

// Store is the persistence surface this package needs.
type Store interface {
	// RetentionConfig reads the current default_retention_days /
	// maintenance_interval_hours app_config values.
	RetentionConfig(ctx context.Context) (model.RetentionConfig, error)
	// Systems lists every monitored system, each carrying its own
	// nullable retention override (§3).
	Systems(ctx context.Context) ([]model.MonitoredSystem, error)
}

// Service periodically enforces retention:
//   - deletes events (and their event_scores) past a system's retention
//     window, using the system's override or the global default
//   - deletes llm_usage and discovery_buffer rows past the same default
//
// All operations are idempotent and safe to run from multiple pods.
type Service struct {
	store Store
	db    *sql.DB

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a new cleanup service over store (for config/system
// lookups) and db (for the raw-SQL deletes; events/event_scores have no
// FK between them, so this isn't expressible as ent entity deletes).
func NewService(store Store, db *sql.DB) *Service {
	return &Service{store: store, db: db}
}

// Start begins the periodic sweep in a background goroutine. The first
// sweep runs immediately; the interval is re-read from app_config after
// every run, so an operator changing maintenance_interval_hours takes
// effect on the next tick without a restart.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

// Stop cancels the sweep loop and waits for it to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	interval := s.intervalOrDefault(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
			if next := s.intervalOrDefault(ctx); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (s *Service) intervalOrDefault(ctx context.Context) time.Duration {
	cfg, err := s.store.RetentionConfig(ctx)
	if err != nil || cfg.MaintenanceIntervalHours <= 0 {
		return time.Duration(model.DefaultRetentionConfig().MaintenanceIntervalHours) * time.Hour
	}
	return time.Duration(cfg.MaintenanceIntervalHours) * time.Hour
}

func (s *Service) runAll(ctx context.Context) {
	cfg, err := s.store.RetentionConfig(ctx)
	if err != nil {
		slog.Error("cleanup: failed to load retention config", "error", err)
		return
	}
	defaultDays := cfg.DefaultRetentionDays
	if defaultDays <= 0 {
		defaultDays = model.DefaultRetentionConfig().DefaultRetentionDays
	}

	s.purgeExpiredEvents(ctx, defaultDays)

	globalCutoff := time.Now().AddDate(0, 0, -defaultDays)
	if n, err := s.purgeLLMUsage(ctx, globalCutoff); err != nil {
		slog.Error("cleanup: llm_usage purge failed", "error", err)
	} else if n > 0 {
		slog.Info("cleanup: purged expired llm_usage rows", "count", n)
	}

	if n, err := s.purgeDiscoveryBuffer(ctx, globalCutoff); err != nil {
		slog.Error("cleanup: discovery_buffer purge failed", "error", err)
	} else if n > 0 {
		slog.Info("cleanup: purged stale discovery_buffer entries", "count", n)
	}
}

func (s *Service) purgeExpiredEvents(ctx context.Context, defaultDays int) {
	systems, err := s.store.Systems(ctx)
	if err != nil {
		slog.Error("cleanup: failed to list systems", "error", err)
		return
	}

	for _, sys := range systems {
		days := defaultDays
		if sys.RetentionDays != nil {
			days = *sys.RetentionDays
		}
		cutoff := time.Now().AddDate(0, 0, -days)

		n, err := s.purgeEvents(ctx, sys.ID, cutoff)
		if err != nil {
			slog.Error("cleanup: event purge failed", "system_id", sys.ID, "error", err)
			continue
		}
		if n > 0 {
			slog.Info("cleanup: purged expired events", "system_id", sys.ID, "count", n, "retention_days", days)
		}
	}
}

// purgeEvents deletes event_scores for, then deletes, every event on
// systemID older than cutoff. event_scores carries no FK to events (§6),
// so the dependent rows must be removed first and in the same
// transaction.
func (s *Service) purgeEvents(ctx context.Context, systemID string, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("cleanup: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
DELETE FROM event_scores
WHERE event_id IN (
	SELECT id FROM events WHERE system_id = $1 AND timestamp < $2
)`, systemID, cutoff); err != nil {
		return 0, fmt.Errorf("cleanup: delete event_scores: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE system_id = $1 AND timestamp < $2`, systemID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cleanup: rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("cleanup: commit: %w", err)
	}
	return n, nil
}

func (s *Service) purgeLLMUsage(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM llm_usage WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: delete llm_usage: %w", err)
	}
	return res.RowsAffected()
}

func (s *Service) purgeDiscoveryBuffer(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM discovery_buffer WHERE received_at::timestamptz < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup: delete discovery_buffer: %w", err)
	}
	return res.RowsAffected()
}

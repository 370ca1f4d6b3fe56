// Package window implements per-system window advancement (§4.G): fixed
// scheduled intervals plus caller-triggered manual re-evaluation spans.
package window

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/model"
)

// Store is the persistence surface window advancement needs.
type Store interface {
	// LatestWindowEnd returns the to_ts of the latest windows row for a
	// system, or the zero time if none exist.
	LatestWindowEnd(ctx context.Context, systemID string) (time.Time, error)
	// IntervalFullyScored reports whether every event in [from, to) has
	// scores for all six criteria.
	IntervalFullyScored(ctx context.Context, systemID string, from, to time.Time) (bool, error)
	// InsertWindow persists a new windows row.
	InsertWindow(ctx context.Context, w model.Window) error
}

// Advancer advances scheduled windows for a system up to now minus a
// guard interval, and creates manual re-evaluation windows on demand.
type Advancer struct {
	store          Store
	intervalMinutes int
}

// New builds an Advancer with the configured window size (§6
// pipeline_config.window_minutes, default 5).
func New(store Store, intervalMinutes int) *Advancer {
	if intervalMinutes <= 0 {
		intervalMinutes = 5
	}
	return &Advancer{store: store, intervalMinutes: intervalMinutes}
}

// AdvanceScheduled inserts a `windows` row (trigger=scheduled) for every
// fully-scored interval [t, t+Δ) up to now-guard, returning the ids of any
// newly created windows. guard must be at least one interval, to ensure
// events have arrived and been scored before a window closes over them (§4.G).
func (a *Advancer) AdvanceScheduled(ctx context.Context, systemID string, now time.Time, guard time.Duration) ([]string, error) {
	interval := time.Duration(a.intervalMinutes) * time.Minute
	if guard < interval {
		guard = interval
	}

	from, err := a.store.LatestWindowEnd(ctx, systemID)
	if err != nil {
		return nil, err
	}
	if from.IsZero() {
		from = now.Add(-guard).Truncate(interval)
	}

	limit := now.Add(-guard)
	var created []string

	for {
		to := from.Add(interval)
		if to.After(limit) {
			break
		}

		fullyScored, err := a.store.IntervalFullyScored(ctx, systemID, from, to)
		if err != nil {
			return created, err
		}
		if !fullyScored {
			break
		}

		w := model.Window{
			ID:       uuid.NewString(),
			SystemID: systemID,
			FromTS:   from,
			ToTS:     to,
			Trigger:  model.TriggerScheduled,
		}
		if err := a.store.InsertWindow(ctx, w); err != nil {
			return created, err
		}
		created = append(created, w.ID)
		from = to
	}

	return created, nil
}

// CreateManual inserts a single manual re-evaluation window covering the
// last reevalWindowDays (default from dashboard_config), regardless of
// whether every event in it has been scored (§4.G).
func (a *Advancer) CreateManual(ctx context.Context, systemID string, now time.Time, reevalWindowDays int) (string, error) {
	if reevalWindowDays <= 0 {
		reevalWindowDays = 7
	}
	w := model.Window{
		ID:       uuid.NewString(),
		SystemID: systemID,
		FromTS:   now.AddDate(0, 0, -reevalWindowDays),
		ToTS:     now,
		Trigger:  model.TriggerManual,
	}
	if err := a.store.InsertWindow(ctx, w); err != nil {
		return "", err
	}
	return w.ID, nil
}

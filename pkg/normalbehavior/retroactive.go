package normalbehavior

import (
	"context"
	"time"
)

// Store is the persistence surface retroactive template application needs.
// Implemented by pkg/database against the events/event_scores/
// effective_scores tables (§4.E).
type Store interface {
	// ZeroMatchingEventScores sets event_scores.score = 0 for every event
	// in [from, now) whose message matches messageRegex, scoped to
	// systemID (empty = global), and returns the distinct window ids whose
	// effective_scores rows need recomputation.
	ZeroMatchingEventScores(ctx context.Context, systemID, messageRegex string, from time.Time) ([]string, error)

	// RecomputeEffectiveScoresForWindows recomputes max_event_score (and,
	// when it drops to zero, meta_score_effective/effective_value) for the
	// given window ids.
	RecomputeEffectiveScoresForWindows(ctx context.Context, windowIDs []string) error
}

// ApplyRetroactively implements §4.E's "on template create" behavior: over
// the configured display window, zero matching event scores and recompute
// affected effective_scores rows.
func ApplyRetroactively(ctx context.Context, store Store, systemID, messageRegex string, displayWindowDays int, now time.Time) error {
	if displayWindowDays <= 0 {
		displayWindowDays = 7
	}
	from := now.AddDate(0, 0, -displayWindowDays)

	windowIDs, err := store.ZeroMatchingEventScores(ctx, systemID, messageRegex, from)
	if err != nil {
		return err
	}
	if len(windowIDs) == 0 {
		return nil
	}
	return store.RecomputeEffectiveScoresForWindows(ctx, windowIDs)
}

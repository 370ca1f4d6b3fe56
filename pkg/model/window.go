package model

import "time"

// WindowTrigger distinguishes scheduler-created windows from user-requested ones (§3).
type WindowTrigger string

const (
	TriggerScheduled WindowTrigger = "scheduled"
	TriggerManual    WindowTrigger = "manual"
)

// Window is a closed time interval for one system (§3).
type Window struct {
	ID       string
	SystemID string
	FromTS   time.Time
	ToTS     time.Time
	Trigger  WindowTrigger
}

// MetaResult is the per-window LLM output, persisted once per window (§3).
type MetaResult struct {
	ID                string
	WindowID          string
	MetaScores        map[string]float64 // criterion slug -> score
	Summary           string
	Findings          []LegacyFinding // legacy flat-findings array, kept for compatibility
	RecommendedAction string
	KeyEventIDs       []string
	CreatedAt         time.Time
}

// LegacyFinding is the flat shape meta_results.findings stored historically;
// kept for API/back-compat even though findings now have their own table and
// lifecycle (§3, §4.H step 15).
type LegacyFinding struct {
	Text     string `json:"text"`
	Severity string `json:"severity"`
}

// EffectiveScore is the dashboard-facing per-criterion value for one window (§3).
type EffectiveScore struct {
	WindowID       string
	SystemID       string
	CriterionID    int
	MetaScore      float64
	MaxEventScore  float64
	EffectiveValue float64
	UpdatedAt      time.Time
}

// MetaWeight is the blending weight applied to the LLM meta-score in the
// effective-value formula (§3): effective_value = w*meta + (1-w)*max_event.
const MetaWeight = 0.7

// ComputeEffectiveValue applies the canonical (zeroing) blend formula: when
// maxEventScore is 0 no event contributes, so the meta-analysis conclusion is
// void and metaScore is treated as 0 too (§3, §9 Open Questions).
func ComputeEffectiveValue(metaScore, maxEventScore float64) (effectiveValue, metaScoreEffective float64) {
	if maxEventScore == 0 {
		return 0, 0
	}
	return MetaWeight*metaScore + (1-MetaWeight)*maxEventScore, metaScore
}

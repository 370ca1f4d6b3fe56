// Package llm defines the two-method contract the scoring job and
// meta-analyzer use to reach the configured model, plus its HTTP
// implementation against an OpenAI-compatible chat-completions endpoint.
package llm

import (
	"context"
	"encoding/json"
)

// EventForScoring is one template representative sent to scoreEvents.
type EventForScoring struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	Severity  string  `json:"severity"`
	Host      string  `json:"host"`
	Program   string  `json:"program"`
	Message   string  `json:"message"`
}

// CriterionScores holds the six per-criterion floats in [0,1] returned for
// one event, keyed by criterion slug.
type CriterionScores map[string]float64

// ScoreEventsResult is the parsed result of a scoreEvents call.
type ScoreEventsResult struct {
	Scores []CriterionScores
}

// ScoreEventsOptions carries the assembled system prompt for a scoring call.
type ScoreEventsOptions struct {
	SystemPrompt string
	Model        string
}

// ContextFinding is one open/acknowledged finding surfaced to the
// meta-analyzer's context, per §4.H step 10.
type ContextFinding struct {
	Index             int    `json:"index"`
	Text              string `json:"text"`
	Severity          string `json:"severity"`
	Criterion         string `json:"criterion,omitempty"`
	Status            string `json:"status"`
	CreatedAt         string `json:"created_at"`
	LastSeenAt        string `json:"last_seen_at"`
	OccurrenceCount   int    `json:"occurrence_count"`
	DBID              string `json:"_dbId"`
	Fingerprint       string `json:"_fingerprint"`
	ConsecutiveMisses int    `json:"_consecutive_misses"`
}

// MetaAnalyzeContext is the full context block assembled for one
// meta-analysis call (§4.H steps 9-11).
type MetaAnalyzeContext struct {
	PreviousSummaries []string         `json:"previous_summaries"`
	OpenFindings      []ContextFinding `json:"open_findings"`
}

// MetaAnalyzeOptions carries the assembled system prompt and model
// override for a meta-analysis call.
type MetaAnalyzeOptions struct {
	SystemPrompt string
	Model        string
}

// NewFinding is one candidate finding proposed by the meta-analyzer, before
// dedup/resolution processing (§4.H step 12).
type NewFinding struct {
	Text      string  `json:"text"`
	Severity  string  `json:"severity"`
	Criterion *string `json:"criterion"`
}

// ResolvedIndex is one resolution proposal. Index/Evidence/EventRefs is the
// modern shape; a plain integer (legacy) unmarshals with Evidence empty and
// is rejected downstream, per §4.H step 12.
type ResolvedIndex struct {
	Index     int    `json:"index"`
	Evidence  string `json:"evidence"`
	EventRefs []int  `json:"event_refs"`
}

// UnmarshalJSON accepts both the object shape and a bare legacy integer.
func (r *ResolvedIndex) UnmarshalJSON(data []byte) error {
	var idx int
	if err := json.Unmarshal(data, &idx); err == nil {
		*r = ResolvedIndex{Index: idx}
		return nil
	}
	type plain ResolvedIndex
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = ResolvedIndex(p)
	return nil
}

// MetaAnalyzeResult is the parsed result of a metaAnalyze call (§4.H step 12).
type MetaAnalyzeResult struct {
	MetaScores         map[string]float64 `json:"meta_scores"`
	Summary            string             `json:"summary"`
	NewFindings        []NewFinding       `json:"new_findings"`
	ResolvedIndices    []ResolvedIndex    `json:"resolved_indices"`
	StillActiveIndices []int              `json:"still_active_indices"`
	RecommendedAction  string             `json:"recommended_action"`
}

// Usage reports token/request counts for one LLM call, for llm_usage
// bookkeeping (§4.F, §4.H step 24).
type Usage struct {
	InputTokens  int
	OutputTokens int
	RequestCount int
}

// Client is the contract the scoring job and meta-analyzer depend on. The
// HTTP implementation lives in client.go; tests substitute a fake.
type Client interface {
	ScoreEvents(ctx context.Context, events []EventForScoring, systemDescription string, sourceLabels []string, opts ScoreEventsOptions) (ScoreEventsResult, Usage, error)
	MetaAnalyze(ctx context.Context, events []EventForScoring, systemDescription string, sourceLabels []string, metaCtx MetaAnalyzeContext, opts MetaAnalyzeOptions) (MetaAnalyzeResult, Usage, error)
}

// Package metaanalysis implements the per-window meta-analyzer (§4.H): LLM
// context assembly, finding dedup/resolution, still-active confirmation,
// recurring-issue detection, eviction, and effective-score computation.
// Each write for a window is its own store call; there is no enclosing
// transaction, so a failure part-way leaves the earlier writes in place.
package metaanalysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/finding"
	"github.com/logpulse/logpulse/pkg/llm"
	"github.com/logpulse/logpulse/pkg/model"
	"github.com/logpulse/logpulse/pkg/normalbehavior"
)

// Store is the persistence surface the meta-analyzer needs. Each method
// commits on its own; none of them joins a transaction spanning the window.
type Store interface {
	ExistingMetaResult(ctx context.Context, windowID string) (bool, error)
	LoadWindow(ctx context.Context, windowID string) (model.Window, model.MonitoredSystem, []model.LogSource, error)
	WindowEvents(ctx context.Context, window model.Window, excludeAcknowledged bool, maxEvents int) ([]*model.Event, error)
	EventScores(ctx context.Context, eventIDs []string) (map[string]model.EventScore, error)
	PreviousSummaries(ctx context.Context, systemID string, beforeWindow time.Time, limit int) ([]string, error)
	// OpenAndAcknowledgedFindings returns open+acknowledged findings newest
	// first; limit <= 0 means unlimited.
	OpenAndAcknowledgedFindings(ctx context.Context, systemID string, limit int) ([]model.Finding, error)
	NormalBehaviorTemplates(ctx context.Context, systemID string) ([]model.NormalBehaviorTemplate, error)
	RecentlyResolvedFindings(ctx context.Context, systemID string, since time.Time) ([]model.Finding, error)

	InsertMetaResult(ctx context.Context, mr model.MetaResult) error
	InsertFinding(ctx context.Context, f model.Finding) error
	UpdateFinding(ctx context.Context, f model.Finding) error
	UpsertEffectiveScore(ctx context.Context, es model.EffectiveScore) error
	IncrementConsecutiveMisses(ctx context.Context, findingIDs []string) error
	RecordLLMUsage(ctx context.Context, usage model.LLMUsage) error
}

// Config carries the tunables meta-analysis reads from app_config (§4.H, §6).
type Config struct {
	MetaAnalysis model.MetaAnalysisConfig
	AckMode      model.EventAckMode
	SystemPrompt string
	Model        string
}

// Analyzer runs one window's meta-analysis.
type Analyzer struct {
	store  Store
	client llm.Client
}

// New builds an Analyzer.
func New(store Store, client llm.Client) *Analyzer {
	return &Analyzer{store: store, client: client}
}

// Run executes §4.H steps 1-24 for one window. Returns true if analysis
// actually ran (used by the orchestrator's adaptive-cadence bookkeeping).
func (a *Analyzer) Run(ctx context.Context, windowID string, cfg Config) (bool, error) {
	exists, err := a.store.ExistingMetaResult(ctx, windowID)
	if err != nil {
		return false, fmt.Errorf("metaanalysis: idempotency check: %w", err)
	}
	if exists {
		return false, nil
	}

	window, system, sources, err := a.store.LoadWindow(ctx, windowID)
	if err != nil {
		return false, fmt.Errorf("metaanalysis: load window: %w", err)
	}

	excludeAcknowledged := cfg.AckMode == model.EventAckModeSkip
	maxEvents := cfg.MetaAnalysis.MetaMaxEvents
	if maxEvents <= 0 {
		maxEvents = 500
	}

	events, err := a.store.WindowEvents(ctx, window, excludeAcknowledged, maxEvents)
	if err != nil {
		return false, fmt.Errorf("metaanalysis: load events: %w", err)
	}

	templates, err := a.store.NormalBehaviorTemplates(ctx, system.ID)
	if err != nil {
		return false, fmt.Errorf("metaanalysis: load templates: %w", err)
	}
	registry := normalbehavior.NewRegistry(templates)
	events = registry.Filter(events, system.ID)

	if len(events) == 0 {
		return true, a.writeSyntheticResult(ctx, window, "no significant events in this window")
	}

	scores, err := a.store.EventScores(ctx, eventIDs(events))
	if err != nil {
		return false, fmt.Errorf("metaanalysis: load scores: %w", err)
	}

	if allScoresZero(events, scores) {
		if err := a.incrementAllMisses(ctx, system.ID); err != nil {
			return false, err
		}
		return true, a.writeSyntheticResult(ctx, window, "all routine activity, no escalation warranted")
	}

	lines, lineIndex := buildLines(events, scores)
	lines = dropZeroScoreLinesIfOverflow(lines)

	if cfg.MetaAnalysis.PrioritizeHighScores {
		sort.SliceStable(lines, func(i, j int) bool {
			return lines[i].maxScore > lines[j].maxScore
		})
	}

	rawOpenFindings, err := a.store.OpenAndAcknowledgedFindings(ctx, system.ID, cfg.MetaAnalysis.MaxOpenFindingsInContext)
	if err != nil {
		return false, fmt.Errorf("metaanalysis: load open findings: %w", err)
	}
	summaries, err := a.store.PreviousSummaries(ctx, system.ID, window.FromTS, cfg.MetaAnalysis.PreviousSummaryCount)
	if err != nil {
		return false, fmt.Errorf("metaanalysis: load previous summaries: %w", err)
	}

	contextFindings, contextSummaries, err := a.sanitizeContext(ctx, rawOpenFindings, summaries, templates, excludeAcknowledged, events)
	if err != nil {
		return false, err
	}

	metaCtx := llm.MetaAnalyzeContext{
		PreviousSummaries: contextSummaries,
		OpenFindings:      toContextFindings(contextFindings),
	}

	llmResult, usage, err := a.client.MetaAnalyze(ctx, toEventsForScoring(lines), system.Description, labelsOf(sources), metaCtx, llm.MetaAnalyzeOptions{
		SystemPrompt: cfg.SystemPrompt,
		Model:        cfg.Model,
	})
	if err != nil {
		return false, fmt.Errorf("metaanalysis: llm call: %w", err)
	}

	if err := a.store.RecordLLMUsage(ctx, model.LLMUsage{
		ID: uuid.NewString(), Task: "meta_analysis", SystemID: system.ID, Model: cfg.Model,
		InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens, RequestCount: usage.RequestCount,
		CreatedAt: time.Now().Format(time.RFC3339),
	}); err != nil {
		slog.Warn("metaanalysis: failed to record llm usage", "error", err)
	}

	outcome, err := a.processResult(ctx, system, lines, lineIndex, contextFindings, llmResult, cfg)
	if err != nil {
		return false, err
	}

	if err := a.writeEffectiveScores(ctx, window, events, scores, llmResult.MetaScores); err != nil {
		return false, err
	}

	mr := model.MetaResult{
		ID: uuid.NewString(), WindowID: window.ID, MetaScores: llmResult.MetaScores,
		Summary: llmResult.Summary, Findings: legacyFindings(llmResult.NewFindings),
		RecommendedAction: llmResult.RecommendedAction, KeyEventIDs: outcome.keyEventIDs,
		CreatedAt: time.Now(),
	}
	if err := a.store.InsertMetaResult(ctx, mr); err != nil {
		return false, fmt.Errorf("metaanalysis: insert meta result: %w", err)
	}

	return true, nil
}

// writeSyntheticResult implements the §4.H shortcuts that skip the LLM call
// entirely (no significant events, or every event scored zero): the
// effective score for every criterion is zeroed and a placeholder meta
// result is recorded so the window is never re-analyzed.
func (a *Analyzer) writeSyntheticResult(ctx context.Context, window model.Window, summary string) error {
	for _, c := range model.Criteria {
		es := model.EffectiveScore{
			WindowID: window.ID, SystemID: window.SystemID, CriterionID: c.ID,
			MetaScore: 0, MaxEventScore: 0, EffectiveValue: 0, UpdatedAt: time.Now(),
		}
		if err := a.store.UpsertEffectiveScore(ctx, es); err != nil {
			return fmt.Errorf("metaanalysis: zero effective score: %w", err)
		}
	}
	mr := model.MetaResult{ID: uuid.NewString(), WindowID: window.ID, Summary: summary, CreatedAt: time.Now()}
	return a.store.InsertMetaResult(ctx, mr)
}

func (a *Analyzer) incrementAllMisses(ctx context.Context, systemID string) error {
	open, err := a.store.OpenAndAcknowledgedFindings(ctx, systemID, 0)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(open))
	for _, f := range open {
		ids = append(ids, f.ID)
	}
	if len(ids) == 0 {
		return nil
	}
	return a.store.IncrementConsecutiveMisses(ctx, ids)
}

// writeEffectiveScores implements §4.H step 23: for each criterion, MAX
// across this window's non-acknowledged events blends with the LLM's
// per-criterion meta score via model.ComputeEffectiveValue, which also
// encodes the §9 zeroing decision (zero max event score voids the meta
// score too).
func (a *Analyzer) writeEffectiveScores(ctx context.Context, window model.Window, events []*model.Event, scores map[string]model.EventScore, metaScores map[string]float64) error {
	for _, c := range model.Criteria {
		maxScore := 0.0
		for _, ev := range events {
			if ev.AcknowledgedAt != nil {
				continue
			}
			if s, ok := scores[scoreKey(ev.ID, c.ID)]; ok && s.Score > maxScore {
				maxScore = s.Score
			}
		}
		effective, metaEffective := model.ComputeEffectiveValue(metaScores[c.Slug], maxScore)
		es := model.EffectiveScore{
			WindowID: window.ID, SystemID: window.SystemID, CriterionID: c.ID,
			MetaScore: metaEffective, MaxEventScore: maxScore, EffectiveValue: effective,
			UpdatedAt: time.Now(),
		}
		if err := a.store.UpsertEffectiveScore(ctx, es); err != nil {
			return fmt.Errorf("metaanalysis: upsert effective score: %w", err)
		}
	}
	return nil
}

const maxKeyEventIDsPerFinding = 20

type processOutcome struct {
	keyEventIDs []string
}

// processResult implements §4.H steps 13-22: new-finding dedup/insertion
// with recurring-issue relabeling and key-event linking, resolution of
// context findings the LLM referenced (behind the contradiction/
// self-reference/error-severity guardrails), still-active confirmations,
// the empty-classification safeguard, consecutive-misses bookkeeping, and
// eviction over budget.
func (a *Analyzer) processResult(ctx context.Context, system model.MonitoredSystem, lines []lineEntry, lineIndex map[int]string, contextFindings []model.Finding, result llm.MetaAnalyzeResult, cfg Config) (processOutcome, error) {
	var keyEventIDs []string
	seenKeyEvent := make(map[string]bool)
	addKeyEvent := func(id string) {
		if id == "" || seenKeyEvent[id] {
			return
		}
		seenKeyEvent[id] = true
		keyEventIDs = append(keyEventIDs, id)
	}

	findingByIndex := make(map[int]model.Finding, len(contextFindings))
	for i, f := range contextFindings {
		findingByIndex[i+1] = f
	}

	// handled tracks every finding ID already settled this window (resolved,
	// confirmed still-active, rejected-into-still-active, or dedup-matched),
	// so step 21's miss-increment never double-counts them.
	handled := make(map[string]bool)

	// Step 18: resolution with guardrails.
	resolvedIDs := make(map[string]bool)
	for _, r := range result.ResolvedIndices {
		f, ok := findingByIndex[r.Index]
		if !ok {
			continue
		}

		refEventIDs := make([]string, 0, len(r.EventRefs))
		refMessages := make([]string, 0, len(r.EventRefs))
		refSeverities := make([]string, 0, len(r.EventRefs))
		for _, idx := range r.EventRefs {
			id, ok := lineIndex[idx]
			if !ok {
				continue
			}
			refEventIDs = append(refEventIDs, id)
			if ln, ok := lineByIndex(lines, idx); ok {
				refMessages = append(refMessages, ln.message)
				refSeverities = append(refSeverities, ln.severity)
			}
		}

		rejected := len(refEventIDs) == 0 ||
			finding.ContradictionGuard(r.Evidence) ||
			finding.SelfReferenceGuard(f.Text, refMessages) ||
			finding.ErrorSeverityGuard(refSeverities)

		if rejected {
			f.ConsecutiveMisses = 0
			f.LastSeenAt = time.Now()
			f.OccurrenceCount++
			if err := a.store.UpdateFinding(ctx, f); err != nil {
				return processOutcome{}, fmt.Errorf("metaanalysis: reject resolution, keep active: %w", err)
			}
			handled[f.ID] = true
			continue
		}

		for _, id := range refEventIDs {
			addKeyEvent(id)
		}
		now := time.Now()
		f.Status = model.FindingStatusResolved
		f.ResolvedAt = &now
		f.ResolutionEvidence = &model.ResolutionEvidence{
			Text: r.Evidence, EventIDs: dedupStrings(append(append([]string{}, f.KeyEventIDs...), refEventIDs...)), AutoResolved: true,
		}
		if err := a.store.UpdateFinding(ctx, f); err != nil {
			return processOutcome{}, fmt.Errorf("metaanalysis: resolve finding: %w", err)
		}
		resolvedIDs[f.ID] = true
		handled[f.ID] = true
	}

	// Step 19: still-active confirmations for indices not already resolved.
	for _, idx := range result.StillActiveIndices {
		f, ok := findingByIndex[idx]
		if !ok || resolvedIDs[f.ID] {
			continue
		}
		f.ConsecutiveMisses = 0
		f.LastSeenAt = time.Now()
		if err := a.store.UpdateFinding(ctx, f); err != nil {
			return processOutcome{}, fmt.Errorf("metaanalysis: confirm finding: %w", err)
		}
		handled[f.ID] = true
	}

	// Step 13: new-finding dedup, with intra-batch collapse first and a
	// severity-highest-wins cap at max_new_findings_per_window.
	threshold := cfg.MetaAnalysis.DedupThreshold
	if threshold <= 0 {
		threshold = finding.DedupThreshold
	}

	var candidates []finding.Candidate
	for _, nf := range result.NewFindings {
		if nf.Text == "" {
			continue // empty-classification safeguard input filter
		}
		crit := ""
		if nf.Criterion != nil {
			crit = *nf.Criterion
		}
		candidates = append(candidates, finding.Candidate{Text: nf.Text, Severity: model.FindingSeverity(nf.Severity), Criterion: crit})
	}
	candidates = finding.CollapseIntraBatch(candidates, threshold)

	if max := cfg.MetaAnalysis.MaxNewFindingsPerWindow; max > 0 && len(candidates) > max {
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Severity.Rank() > candidates[j].Severity.Rank()
		})
		slog.Warn("metaanalysis: dropping new findings over per-window cap", "system_id", system.ID, "dropped", len(candidates)-max)
		candidates = candidates[:max]
	}

	lookbackDays := cfg.MetaAnalysis.RecurringLookbackDays
	if lookbackDays <= 0 {
		lookbackDays = 14
	}
	recentlyResolved, err := a.store.RecentlyResolvedFindings(ctx, system.ID, time.Now().AddDate(0, 0, -lookbackDays))
	if err != nil {
		return processOutcome{}, fmt.Errorf("metaanalysis: load recently resolved findings: %w", err)
	}

	matcher := finding.NewMatcher(contextFindings, threshold)

	for _, c := range candidates {
		m := matcher.Match(c)
		if m.Matched {
			existing := m.Existing
			existing.OccurrenceCount++
			existing.LastSeenAt = time.Now()
			existing.ConsecutiveMisses = 0
			existing.Severity = existing.Severity.Max(c.Severity)
			if err := a.store.UpdateFinding(ctx, existing); err != nil {
				return processOutcome{}, fmt.Errorf("metaanalysis: update matched finding: %w", err)
			}
			handled[existing.ID] = true
			continue
		}

		text := c.Text
		if when, ok := findRecurring(recentlyResolved, c.Text, threshold); ok {
			text = fmt.Sprintf("Recurring: %s (previously resolved %s)", c.Text, when.Format("2006-01-02"))
		}

		linkedEvents := linkKeyEvents(text, lines, 0.3, maxKeyEventIDsPerFinding)
		for _, id := range linkedEvents {
			addKeyEvent(id)
		}

		now := time.Now()
		nf := model.Finding{
			ID: uuid.NewString(), SystemID: system.ID, CriterionSlug: c.Criterion, Text: text,
			Severity: c.Severity, Status: model.FindingStatusOpen, Fingerprint: finding.Fingerprint(text),
			OccurrenceCount: 1, CreatedAt: now, LastSeenAt: now, KeyEventIDs: linkedEvents,
		}
		if err := a.store.InsertFinding(ctx, nf); err != nil {
			return processOutcome{}, fmt.Errorf("metaanalysis: insert finding: %w", err)
		}
	}

	// Step 20: empty-classification safeguard.
	hadOpenFindings := len(contextFindings) > 0
	noClassification := len(result.StillActiveIndices) == 0 && len(result.ResolvedIndices) == 0
	skipMisses := hadOpenFindings && noClassification

	// Step 21/22 operate over the full open/acknowledged set, not just the
	// (possibly capped) context window sent to the LLM.
	allOpen, err := a.store.OpenAndAcknowledgedFindings(ctx, system.ID, 0)
	if err != nil {
		return processOutcome{}, fmt.Errorf("metaanalysis: reload findings: %w", err)
	}

	if !skipMisses {
		var missedIDs []string
		for _, f := range allOpen {
			if handled[f.ID] {
				continue
			}
			missedIDs = append(missedIDs, f.ID)
		}
		if len(missedIDs) > 0 {
			if err := a.store.IncrementConsecutiveMisses(ctx, missedIDs); err != nil {
				return processOutcome{}, fmt.Errorf("metaanalysis: increment consecutive misses: %w", err)
			}
		}
	}

	if maxOpen := cfg.MetaAnalysis.MaxOpenFindingsPerSystem; maxOpen > 0 {
		current, err := a.store.OpenAndAcknowledgedFindings(ctx, system.ID, 0)
		if err != nil {
			return processOutcome{}, fmt.Errorf("metaanalysis: reload findings for eviction: %w", err)
		}
		for _, ev := range finding.EvictionCandidates(current, maxOpen) {
			now := time.Now()
			ev.Status = model.FindingStatusResolved
			ev.ResolvedAt = &now
			ev.ResolutionEvidence = &model.ResolutionEvidence{Text: "Auto-closed: evicted due to open findings cap", AutoResolved: true}
			if err := a.store.UpdateFinding(ctx, ev); err != nil {
				return processOutcome{}, fmt.Errorf("metaanalysis: evict finding: %w", err)
			}
		}
	}

	return processOutcome{keyEventIDs: keyEventIDs}, nil
}

// linkKeyEvents implements §4.H step 16: link a finding's text to window
// event ids by significant-word overlap, capped at max.
func linkKeyEvents(text string, lines []lineEntry, threshold float64, max int) []string {
	words := toWordSet(finding.NormalizeText(text))
	var ids []string
	for _, l := range lines {
		if overlapFraction(words, toWordSet(finding.NormalizeText(l.message))) >= threshold {
			ids = append(ids, l.representativeID)
			if len(ids) >= max {
				break
			}
		}
	}
	return ids
}

// findRecurring reports whether text closely matches a finding resolved
// within the lookback window, and when it resolved (§4.H step 14).
func findRecurring(recentlyResolved []model.Finding, text string, threshold float64) (time.Time, bool) {
	tokens := finding.NormalizeText(text)
	for _, f := range recentlyResolved {
		if f.ResolvedAt == nil {
			continue
		}
		if f.Fingerprint == finding.Fingerprint(text) || finding.JaccardSimilarity(tokens, finding.NormalizeText(f.Text)) >= threshold {
			return *f.ResolvedAt, true
		}
	}
	return time.Time{}, false
}

func dedupStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func scoreKey(eventID string, criterionID int) string {
	return fmt.Sprintf("%s:%d", eventID, criterionID)
}

func eventIDs(events []*model.Event) []string {
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	return ids
}

func allScoresZero(events []*model.Event, scores map[string]model.EventScore) bool {
	for _, ev := range events {
		for _, c := range model.Criteria {
			if s, ok := scores[scoreKey(ev.ID, c.ID)]; ok && s.Score > 0 {
				return false
			}
		}
	}
	return true
}

func labelsOf(sources []model.LogSource) []string {
	labels := make([]string, len(sources))
	for i, s := range sources {
		labels[i] = s.Label
	}
	return labels
}

func legacyFindings(nf []llm.NewFinding) []model.LegacyFinding {
	out := make([]model.LegacyFinding, len(nf))
	for i, f := range nf {
		out[i] = model.LegacyFinding{Text: f.Text, Severity: f.Severity}
	}
	return out
}

type lineEntry struct {
	index            int
	representativeID string
	message          string
	severity         string
	maxScore         float64
	occurrenceCount  int
}

func lineByIndex(lines []lineEntry, idx int) (lineEntry, bool) {
	for _, l := range lines {
		if l.index == idx {
			return l, true
		}
	}
	return lineEntry{}, false
}

// buildLines implements §4.H step 6: groups by template id (falling back
// to event id), keeping a representative and occurrence count per group,
// producing a 1-indexed evidence-linking table.
func buildLines(events []*model.Event, scores map[string]model.EventScore) ([]lineEntry, map[int]string) {
	type group struct {
		rep   *model.Event
		count int
		max   float64
	}
	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, ev := range events {
		key := ev.TemplateID
		if key == "" {
			key = ev.ID
		}
		g, ok := groups[key]
		if !ok {
			g = &group{rep: ev}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
		for _, c := range model.Criteria {
			if s, ok := scores[scoreKey(ev.ID, c.ID)]; ok && s.Score > g.max {
				g.max = s.Score
			}
		}
	}

	lines := make([]lineEntry, 0, len(order))
	index := make(map[int]string, len(order))
	for i, key := range order {
		g := groups[key]
		ln := i + 1
		lines = append(lines, lineEntry{
			index: ln, representativeID: g.rep.ID, message: g.rep.Message,
			severity: string(g.rep.Severity), maxScore: g.max, occurrenceCount: g.count,
		})
		index[ln] = g.rep.ID
	}
	return lines, index
}

// dropZeroScoreLinesIfOverflow implements §4.H O2: if more than 5 lines,
// drop zero-score lines while at least one line survives, then remaps
// indices so the evidence-linking table stays contiguous.
func dropZeroScoreLinesIfOverflow(lines []lineEntry) []lineEntry {
	if len(lines) <= 5 {
		return lines
	}
	nonZero := 0
	for _, l := range lines {
		if l.maxScore > 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		return remapLines(lines)
	}

	var kept []lineEntry
	for _, l := range lines {
		if l.maxScore > 0 {
			kept = append(kept, l)
		}
	}
	return remapLines(kept)
}

func remapLines(lines []lineEntry) []lineEntry {
	out := make([]lineEntry, len(lines))
	for i, l := range lines {
		l.index = i + 1
		out[i] = l
	}
	return out
}

func toEventsForScoring(lines []lineEntry) []llm.EventForScoring {
	out := make([]llm.EventForScoring, len(lines))
	for i, l := range lines {
		out[i] = llm.EventForScoring{ID: l.representativeID, Severity: l.severity, Message: l.message}
	}
	return out
}

func toContextFindings(findings []model.Finding) []llm.ContextFinding {
	out := make([]llm.ContextFinding, len(findings))
	for i, f := range findings {
		out[i] = llm.ContextFinding{
			Index: i + 1, Text: f.Text, Severity: string(f.Severity), Criterion: f.CriterionSlug,
			Status: string(f.Status), CreatedAt: f.CreatedAt.Format(time.RFC3339),
			LastSeenAt: f.LastSeenAt.Format(time.RFC3339), OccurrenceCount: f.OccurrenceCount,
			DBID: f.ID, Fingerprint: f.Fingerprint, ConsecutiveMisses: f.ConsecutiveMisses,
		}
	}
	return out
}

// sanitizeContext implements §4.H step 11: normal-behavior-aware context
// sanitation. A finding whose significant-word overlap with a template's
// pattern literal is >= 50% is auto-resolved (persisted, not just dropped
// from context) since the template now covers it; previous summaries
// overlapping normal-template words by >= 40% (or acknowledged-event
// messages by >= 30% when the ack mode excludes them) are dropped too.
func (a *Analyzer) sanitizeContext(ctx context.Context, findings []model.Finding, summaries []string, templates []model.NormalBehaviorTemplate, excludeAcknowledged bool, events []*model.Event) ([]model.Finding, []string, error) {
	templateWords := make([]map[string]bool, len(templates))
	for i, t := range templates {
		templateWords[i] = toWordSet(finding.NormalizeText(t.Pattern))
	}

	var keptFindings []model.Finding
	for _, f := range findings {
		if matchesAnyWordSet(f.Text, templateWords, 0.5) {
			now := time.Now()
			f.Status = model.FindingStatusResolved
			f.ResolvedAt = &now
			f.ResolutionEvidence = &model.ResolutionEvidence{
				Text: "Event type marked as normal behavior by operator", AutoResolved: true,
			}
			if err := a.store.UpdateFinding(ctx, f); err != nil {
				return nil, nil, fmt.Errorf("metaanalysis: auto-resolve normal-behavior finding: %w", err)
			}
			continue
		}
		keptFindings = append(keptFindings, f)
	}

	var ackWords []map[string]bool
	if excludeAcknowledged {
		for _, ev := range events {
			if ev.AcknowledgedAt != nil {
				ackWords = append(ackWords, toWordSet(finding.NormalizeText(ev.Message)))
			}
		}
	}

	var keptSummaries []string
	for _, s := range summaries {
		if matchesAnyWordSet(s, templateWords, 0.4) {
			continue
		}
		if excludeAcknowledged && matchesAnyWordSet(s, ackWords, 0.3) {
			continue
		}
		keptSummaries = append(keptSummaries, s)
	}

	return keptFindings, keptSummaries, nil
}

func toWordSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func matchesAnyWordSet(text string, sets []map[string]bool, threshold float64) bool {
	words := toWordSet(finding.NormalizeText(text))
	for _, set := range sets {
		if overlapFraction(words, set) >= threshold {
			return true
		}
	}
	return false
}

// overlapFraction returns the fraction of b's words found in a, matching
// §4.H step 11's "X% of the reference's significant words appear in text".
func overlapFraction(a, b map[string]bool) float64 {
	if len(b) == 0 {
		return 0
	}
	overlap := 0
	for w := range b {
		if a[w] {
			overlap++
		}
	}
	return float64(overlap) / float64(len(b))
}

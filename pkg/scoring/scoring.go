// Package scoring implements the per-run scoring job (§4.F): unscored-event
// selection grouped by system, normal-behavior filtering, parameterized-
// message template dedup, LLM batch scoring, and score propagation from
// template representatives to group members.
package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/logpulse/logpulse/pkg/aiconfig"
	"github.com/logpulse/logpulse/pkg/llm"
	"github.com/logpulse/logpulse/pkg/model"
	"github.com/logpulse/logpulse/pkg/normalbehavior"
)

// Store is the persistence surface the scoring job needs.
type Store interface {
	// UnscoredEventsBySystem returns up to limit unscored events, grouped by
	// system id, in no particular cross-system order.
	UnscoredEventsBySystem(ctx context.Context, limit int) (map[string][]*model.Event, error)
	System(ctx context.Context, systemID string) (model.MonitoredSystem, error)
	LogSources(ctx context.Context, systemID string) ([]model.LogSource, error)
	NormalBehaviorTemplates(ctx context.Context, systemID string) ([]model.NormalBehaviorTemplate, error)
	ScoringSystemPrompt(ctx context.Context, systemID string) (string, error)

	InsertEventScores(ctx context.Context, scores []model.EventScore) error
	SetEventTemplateIDs(ctx context.Context, assignments map[string]string) error
	RecordLLMUsage(ctx context.Context, usage model.LLMUsage) error
}

// Result summarizes one run across all systems.
type Result struct {
	Scored int
	Errors []string
}

// Job runs the scoring pipeline across all systems with unscored events.
type Job struct {
	store    Store
	client   llm.Client
	aiConfig *aiconfig.Reader
}

// New builds a Job.
func New(store Store, client llm.Client, aiConfig *aiconfig.Reader) *Job {
	return &Job{store: store, client: client, aiConfig: aiConfig}
}

// Run processes up to limit unscored events (default 500), grouped by
// system (§4.F).
func (j *Job) Run(ctx context.Context, limit int) (Result, error) {
	if limit <= 0 {
		limit = 500
	}

	bySystem, err := j.store.UnscoredEventsBySystem(ctx, limit)
	if err != nil {
		return Result{}, fmt.Errorf("scoring: load unscored events: %w", err)
	}

	var result Result
	for systemID, events := range bySystem {
		scored, err := j.runForSystem(ctx, systemID, events)
		result.Scored += scored
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			slog.Error("scoring: system run failed", "system_id", systemID, "error", err)
		}
	}
	return result, nil
}

func (j *Job) runForSystem(ctx context.Context, systemID string, events []*model.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	aiCfg, err := j.aiConfig.Resolve(ctx)
	if err != nil {
		return 0, fmt.Errorf("scoring: resolve ai config: %w", err)
	}
	if aiCfg.APIKey == "" {
		return 0, nil // no key configured: nothing to score yet
	}

	system, err := j.store.System(ctx, systemID)
	if err != nil {
		return 0, fmt.Errorf("scoring: load system: %w", err)
	}
	sources, err := j.store.LogSources(ctx, systemID)
	if err != nil {
		return 0, fmt.Errorf("scoring: load sources: %w", err)
	}
	templates, err := j.store.NormalBehaviorTemplates(ctx, systemID)
	if err != nil {
		return 0, fmt.Errorf("scoring: load templates: %w", err)
	}

	registry := normalbehavior.NewRegistry(templates)
	candidates := registry.Filter(events, systemID)
	if len(candidates) == 0 {
		return 0, nil
	}

	groups, assignments := groupByTemplate(candidates)

	representatives := make([]*model.Event, 0, len(groups))
	order := make([]string, 0, len(groups))
	for tmplKey, group := range groups {
		representatives = append(representatives, group[0])
		order = append(order, tmplKey)
	}

	systemPrompt, err := j.store.ScoringSystemPrompt(ctx, systemID)
	if err != nil {
		return 0, fmt.Errorf("scoring: load scoring system prompt: %w", err)
	}

	scoringModel := aiCfg.TaskModel.ScoringModel
	if scoringModel == "" {
		scoringModel = aiCfg.Model
	}

	llmResult, usage, err := j.client.ScoreEvents(ctx, toEventsForScoring(representatives), system.Description, labelsOf(sources), llm.ScoreEventsOptions{
		SystemPrompt: systemPrompt, Model: scoringModel,
	})
	if err != nil {
		slog.Error("scoring: llm call failed, writing all-zero scores", "system_id", systemID, "error", err)
		llmResult = llm.ScoreEventsResult{Scores: zeroScores(len(representatives))}
	}

	usageRow := model.LLMUsage{
		ID: uuid.NewString(), Task: "scoring", SystemID: systemID, Model: scoringModel,
		InputTokens: usage.InputTokens, OutputTokens: usage.OutputTokens, RequestCount: usage.RequestCount,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	if err := j.store.RecordLLMUsage(ctx, usageRow); err != nil {
		slog.Warn("scoring: failed to record llm usage", "error", err)
	}

	var rows []model.EventScore
	for i, tmplKey := range order {
		scores := llm.CriterionScores{}
		if i < len(llmResult.Scores) {
			scores = llmResult.Scores[i]
		}
		for _, ev := range groups[tmplKey] {
			for _, c := range model.Criteria {
				rows = append(rows, model.EventScore{
					EventID: ev.ID, CriterionID: c.ID, ScoreType: model.ScoreTypeEvent,
					Score: scores[c.Slug],
				})
			}
		}
	}

	if err := j.store.InsertEventScores(ctx, rows); err != nil {
		return 0, fmt.Errorf("scoring: persist event scores: %w", err)
	}
	if err := j.store.SetEventTemplateIDs(ctx, assignments); err != nil {
		return 0, fmt.Errorf("scoring: persist template assignments: %w", err)
	}

	return len(candidates), nil
}

func labelsOf(sources []model.LogSource) []string {
	labels := make([]string, len(sources))
	for i, s := range sources {
		labels[i] = s.Label
	}
	return labels
}

func toEventsForScoring(events []*model.Event) []llm.EventForScoring {
	out := make([]llm.EventForScoring, len(events))
	for i, ev := range events {
		out[i] = llm.EventForScoring{
			ID: ev.ID, Timestamp: ev.Timestamp.Format(time.RFC3339), Severity: string(ev.Severity),
			Host: ev.Host, Program: ev.Program, Message: ev.Message,
		}
	}
	return out
}

func zeroScores(n int) []llm.CriterionScores {
	out := make([]llm.CriterionScores, n)
	for i := range out {
		out[i] = llm.CriterionScores{}
	}
	return out
}

var (
	uuidPattern  = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	hexPattern   = regexp.MustCompile(`\b[0-9a-fA-F]{6,}\b`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	numberPattern = regexp.MustCompile(`\b\d+\b`)
)

// templateID computes the parameterized-message template id (§4.F):
// numbers -> <N>, hex -> <H>, UUIDs -> <ID>, IPs -> <IP>, keyed on host
// and program so two identically-shaped messages from different sources
// still score independently.
func templateID(ev *model.Event) string {
	s := ev.Message
	s = uuidPattern.ReplaceAllString(s, "<ID>")
	s = ipv4Pattern.ReplaceAllString(s, "<IP>")
	s = hexPattern.ReplaceAllString(s, "<H>")
	s = numberPattern.ReplaceAllString(s, "<N>")
	return strings.ToLower(ev.Host) + "|" + strings.ToLower(ev.Program) + "|" + s
}

// groupByTemplate implements §4.F's dedup-by-template step: events whose
// message reduces to the same parameterized shape share one representative
// sent to the LLM and, once scored, the same persisted template_id.
func groupByTemplate(events []*model.Event) (map[string][]*model.Event, map[string]string) {
	groups := make(map[string][]*model.Event)
	for _, ev := range events {
		key := templateID(ev)
		groups[key] = append(groups[key], ev)
	}

	assignments := make(map[string]string, len(events))
	for _, members := range groups {
		repTemplateID := members[0].TemplateID
		if repTemplateID == "" {
			repTemplateID = uuid.NewString()
		}
		for _, ev := range members {
			ev.TemplateID = repTemplateID
			assignments[ev.ID] = repTemplateID
		}
	}

	return groups, assignments
}

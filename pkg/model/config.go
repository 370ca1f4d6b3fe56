package model

// This file defines the Go shapes of the JSON values stored under
// app_config.key (§6). Each constant is the key used in the app_config
// table; the paired struct is the JSON-decoded value.

// App-config key names.
const (
	ConfigKeyOpenAIAPIKey        = "openai_api_key"
	ConfigKeyOpenAIModel         = "openai_model"
	ConfigKeyOpenAIBaseURL       = "openai_base_url"
	ConfigKeyTaskModelConfig     = "task_model_config"
	ConfigKeyScoringSystemPrompt = "scoring_system_prompt"
	ConfigKeyMetaSystemPrompt    = "meta_system_prompt"
	ConfigKeyRAGSystemPrompt     = "rag_system_prompt"
	ConfigKeyCriterionGuidePfx   = "criterion_guide_" // + slug
	ConfigKeyDashboardConfig     = "dashboard_config"
	ConfigKeyPipelineConfig      = "pipeline_config"
	ConfigKeyMetaAnalysisConfig  = "meta_analysis_config"
	ConfigKeyEventAckMode        = "event_ack_mode"
	ConfigKeyEventAckPrompt      = "event_ack_prompt"
	ConfigKeyDefaultRetention    = "default_retention_days"
	ConfigKeyMaintenanceHours    = "maintenance_interval_hours"
	ConfigKeyDiscoveryConfig     = "discovery_config"
	ConfigKeyPrivacyConfig       = "privacy_config"
)

// TaskModelConfig holds per-task LLM model overrides (§6).
type TaskModelConfig struct {
	ScoringModel string `json:"scoring_model,omitempty"`
	MetaModel    string `json:"meta_model,omitempty"`
	RAGModel     string `json:"rag_model,omitempty"`
}

// DashboardConfig holds dashboard-facing tunables (§6).
type DashboardConfig struct {
	ScoreDisplayWindowDays int `json:"score_display_window_days"` // 1-90, default 7
	ReevalWindowDays       int `json:"reeval_window_days"`        // 1-90, default 7
	ReevalMaxEvents        int `json:"reeval_max_events"`         // 50-10000, default 500
}

// DefaultDashboardConfig returns the spec's defaults (§6).
func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		ScoreDisplayWindowDays: 7,
		ReevalWindowDays:       7,
		ReevalMaxEvents:        500,
	}
}

// PipelineConfig holds orchestrator/windowing tunables (§6).
type PipelineConfig struct {
	PipelineMinIntervalMinutes int     `json:"pipeline_min_interval_minutes" yaml:"pipeline_min_interval_minutes"`
	PipelineMaxIntervalMinutes int     `json:"pipeline_max_interval_minutes" yaml:"pipeline_max_interval_minutes"`
	WindowMinutes              int     `json:"window_minutes" yaml:"window_minutes"`
	ScoringLimitPerRun         int     `json:"scoring_limit_per_run" yaml:"scoring_limit_per_run"`
	EffectiveScoreMetaWeight   float64 `json:"effective_score_meta_weight" yaml:"effective_score_meta_weight"`
	NormalizeSQLStatements     bool    `json:"normalize_sql_statements" yaml:"normalize_sql_statements"`
	MultilineReassembly        bool    `json:"multiline_reassembly" yaml:"multiline_reassembly"`
	MaxFutureDriftSeconds      int     `json:"max_future_drift_seconds" yaml:"max_future_drift_seconds"`
	MaxEventMessageLength      int     `json:"max_event_message_length" yaml:"max_event_message_length"`
}

// DefaultPipelineConfig returns the spec's defaults (§4.F, §4.G, §4.J, §6).
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PipelineMinIntervalMinutes: 15,
		PipelineMaxIntervalMinutes: 120,
		WindowMinutes:              5,
		ScoringLimitPerRun:         500,
		EffectiveScoreMetaWeight:   0.7,
		NormalizeSQLStatements:     false,
		MultilineReassembly:        true,
		MaxFutureDriftSeconds:      300,
		MaxEventMessageLength:      8192,
	}
}

// MetaAnalysisConfig holds meta-analysis tunables (§4.H, §6).
type MetaAnalysisConfig struct {
	PreviousSummaryCount      int     `json:"previous_summary_count"`
	MaxOpenFindingsInContext  int     `json:"max_open_findings_in_context"`
	MetaMaxEvents             int     `json:"meta_max_events"`
	PrioritizeHighScores      bool    `json:"meta_prioritize_high_scores"`
	DedupThreshold            float64 `json:"dedup_threshold"`
	MaxNewFindingsPerWindow   int     `json:"max_new_findings_per_window"`
	RecurringLookbackDays     int     `json:"recurring_lookback_days"`
	MaxOpenFindingsPerSystem  int     `json:"max_open_findings_per_system"`
}

// DefaultMetaAnalysisConfig returns the spec's defaults (§4.H, §4.I).
func DefaultMetaAnalysisConfig() MetaAnalysisConfig {
	return MetaAnalysisConfig{
		PreviousSummaryCount:     5,
		MaxOpenFindingsInContext: 30,
		MetaMaxEvents:            500,
		PrioritizeHighScores:     false,
		DedupThreshold:           0.6,
		MaxNewFindingsPerWindow:  3,
		RecurringLookbackDays:    14,
		MaxOpenFindingsPerSystem: 50,
	}
}

// RetentionConfig holds the data-retention tunables (§6): default_retention_days
// and maintenance_interval_hours, stored as separate scalar app_config keys.
type RetentionConfig struct {
	DefaultRetentionDays     int `json:"default_retention_days"`
	MaintenanceIntervalHours int `json:"maintenance_interval_hours"`
}

// DefaultRetentionConfig returns the spec's defaults (§6).
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		DefaultRetentionDays:     90,
		MaintenanceIntervalHours: 6,
	}
}

// EventAckMode controls how acknowledged events are treated by meta-analysis (§4.H).
type EventAckMode string

const (
	EventAckModeSkip        EventAckMode = "skip"
	EventAckModeContextOnly EventAckMode = "context_only"
)

// DiscoveryConfig toggles the unmatched-event discovery buffer (§6).
type DiscoveryConfig struct {
	Enabled bool `json:"enabled"`
}

// PrivacyConfig is the per-category toggle set for pkg/redact's
// PrivacyFilter (§4.B), which rewrites in-memory text only; stored data is
// never affected by it. No LLM call path applies the filter.
type PrivacyConfig struct {
	IPv4          bool     `json:"ipv4"`
	IPv6          bool     `json:"ipv6"`
	Email         bool     `json:"email"`
	Phone         bool     `json:"phone"`
	URL           bool     `json:"url"`
	UserPaths     bool     `json:"user_paths"`
	MAC           bool     `json:"mac"`
	CreditCard    bool     `json:"credit_card"`
	Passwords     bool     `json:"passwords"`
	APIKeys       bool     `json:"api_keys"`
	Usernames     bool     `json:"usernames"`
	CustomPatterns []string `json:"custom_patterns,omitempty"`
	StripHost     bool     `json:"strip_host"`
	StripProgram  bool     `json:"strip_program"`
}

// AIConfig is the resolved, cacheable AI connection configuration (§4.F, §9).
type AIConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	TaskModel TaskModelConfig
}

// LLMUsage records one LLM call for cost/throughput accounting (§4.F step,
// §4.H step 24).
type LLMUsage struct {
	ID               string
	Task             string // "scoring" | "meta_analysis"
	SystemID         string
	Model            string
	InputTokens      int
	OutputTokens     int
	RequestCount     int
	EstimatedCostUSD float64
	CreatedAt        string
}

package config

import "github.com/logpulse/logpulse/pkg/model"

// ServiceConfig is the process-level startup configuration for the
// logpulse service: everything needed before the database is reachable.
// Runtime-tunable values (pipeline cadence, dedup thresholds, criterion
// guides, ...) live in the `app_config` table instead and are read through
// pkg/aiconfig and the store, not here (§6).
type ServiceConfig struct {
	HTTP HTTPConfig    `yaml:"http"`
	Log  LogConfig     `yaml:"log"`
	Seed AppConfigSeed `yaml:"app_config_seed"`
}

// HTTPConfig holds the gin server's bind address and optional dashboard
// static-file root (§6, pkg/api.Server.SetDashboardDir).
type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	DashboardDir string `yaml:"dashboard_dir,omitempty"`
}

// LogConfig controls the slog handler's minimum level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AppConfigSeed is the subset of app_config (§6) an operator can bootstrap
// from YAML instead of typing six criterion guides and a privacy policy
// through the API on first run. cmd/logpulse's seedAppConfig applies these
// (via the store's SetAppConfig) only when the corresponding app_config row
// doesn't exist yet — a bootstrap,
// never an override of a running system's settings.
type AppConfigSeed struct {
	CriterionGuides map[string]string      `yaml:"criterion_guides,omitempty"` // slug -> guide text
	PipelineConfig  *model.PipelineConfig  `yaml:"pipeline_config,omitempty"`
	DashboardConfig *model.DashboardConfig `yaml:"dashboard_config,omitempty"`
	PrivacyConfig   *model.PrivacyConfig   `yaml:"privacy_config,omitempty"`
}

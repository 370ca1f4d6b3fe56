package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/logpulse/logpulse/pkg/metaanalysis"
	"github.com/logpulse/logpulse/pkg/model"
)

// LoadAppConfig returns every app_config row as raw JSON-encoded strings
// keyed by config key (§6); callers decode the keys they care about.
func (s *Store) LoadAppConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_key, value FROM app_config`)
	if err != nil {
		return nil, fmt.Errorf("store: load app config: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("store: scan app config: %w", err)
		}
		out[key] = string(value)
	}
	return out, rows.Err()
}

// SetAppConfig upserts one app_config key/value pair.
func (s *Store) SetAppConfig(ctx context.Context, key string, value interface{}) error {
	raw, err := jsonText(value)
	if err != nil {
		return fmt.Errorf("store: marshal app config %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_config (config_key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (config_key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, raw)
	if err != nil {
		return fmt.Errorf("store: set app config %s: %w", key, err)
	}
	return nil
}

func decodeJSONOrDefault[T any](raw string, def T) T {
	if raw == "" {
		return def
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return def
	}
	return v
}

// RetentionConfig reads the global default_retention_days /
// maintenance_interval_hours app_config values (§6).
func (s *Store) RetentionConfig(ctx context.Context) (model.RetentionConfig, error) {
	cfg, err := s.LoadAppConfig(ctx)
	if err != nil {
		return model.RetentionConfig{}, err
	}
	def := model.DefaultRetentionConfig()
	return model.RetentionConfig{
		DefaultRetentionDays:     decodeJSONOrDefault(cfg[model.ConfigKeyDefaultRetention], def.DefaultRetentionDays),
		MaintenanceIntervalHours: decodeJSONOrDefault(cfg[model.ConfigKeyMaintenanceHours], def.MaintenanceIntervalHours),
	}, nil
}

// PipelineConfig reads the pipeline_config app_config value (§6).
func (s *Store) PipelineConfig(ctx context.Context) (model.PipelineConfig, error) {
	cfg, err := s.LoadAppConfig(ctx)
	if err != nil {
		return model.PipelineConfig{}, err
	}
	return decodeJSONOrDefault(cfg[model.ConfigKeyPipelineConfig], model.DefaultPipelineConfig()), nil
}

// DashboardConfig reads the dashboard_config app_config value (§6).
func (s *Store) DashboardConfig(ctx context.Context) (model.DashboardConfig, error) {
	cfg, err := s.LoadAppConfig(ctx)
	if err != nil {
		return model.DashboardConfig{}, err
	}
	return decodeJSONOrDefault(cfg[model.ConfigKeyDashboardConfig], model.DefaultDashboardConfig()), nil
}

// MetaAnalysisConfig assembles the meta-analysis tunables for a system:
// meta_analysis_config, event_ack_mode, meta_system_prompt, and the
// meta-task model override from task_model_config (falling back to the
// global openai_model) (§4.H, §6).
func (s *Store) MetaAnalysisConfig(ctx context.Context, systemID string) (metaanalysis.Config, error) {
	cfg, err := s.LoadAppConfig(ctx)
	if err != nil {
		return metaanalysis.Config{}, err
	}

	ackMode := decodeJSONOrDefault(cfg[model.ConfigKeyEventAckMode], model.EventAckModeSkip)
	taskModel := decodeJSONOrDefault(cfg[model.ConfigKeyTaskModelConfig], model.TaskModelConfig{})
	modelName := taskModel.MetaModel
	if modelName == "" {
		modelName = decodeJSONOrDefault(cfg[model.ConfigKeyOpenAIModel], "")
	}

	return metaanalysis.Config{
		MetaAnalysis: decodeJSONOrDefault(cfg[model.ConfigKeyMetaAnalysisConfig], model.DefaultMetaAnalysisConfig()),
		AckMode:      ackMode,
		SystemPrompt: decodeJSONOrDefault(cfg[model.ConfigKeyMetaSystemPrompt], ""),
		Model:        modelName,
	}, nil
}

package aiconfig

import (
	"encoding/json"

	"github.com/logpulse/logpulse/pkg/model"
)

// decodeAIConfig extracts the api_key/model/base_url/task_model_config
// keys from a raw app_config key→JSON-value map (§6).
func decodeAIConfig(raw map[string]string) model.AIConfig {
	var cfg model.AIConfig

	if v, ok := raw[model.ConfigKeyOpenAIAPIKey]; ok {
		_ = json.Unmarshal([]byte(v), &cfg.APIKey)
	}
	if v, ok := raw[model.ConfigKeyOpenAIModel]; ok {
		_ = json.Unmarshal([]byte(v), &cfg.Model)
	}
	if v, ok := raw[model.ConfigKeyOpenAIBaseURL]; ok {
		_ = json.Unmarshal([]byte(v), &cfg.BaseURL)
	}
	if v, ok := raw[model.ConfigKeyTaskModelConfig]; ok {
		_ = json.Unmarshal([]byte(v), &cfg.TaskModel)
	}

	return cfg
}

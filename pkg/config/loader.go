package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load reads .env (best-effort, a missing file is not an error), then the
// YAML file at path if it exists, expands ${VAR}/$VAR references, and
// merges the result onto Default() so any field the file doesn't set
// keeps its built-in value. An empty path just returns the defaults.
func Load(path string) (ServiceConfig, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		return cfg, validate(cfg)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, validate(cfg)
	}
	if err != nil {
		return ServiceConfig{}, NewLoadError(path, err)
	}

	var fromFile ServiceConfig
	if err := yaml.Unmarshal(ExpandEnv(data), &fromFile); err != nil {
		return ServiceConfig{}, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
		return ServiceConfig{}, NewLoadError(path, err)
	}

	if err := validate(cfg); err != nil {
		return ServiceConfig{}, err
	}
	return cfg, nil
}

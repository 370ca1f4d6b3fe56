package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesMergeOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9090"
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("LOGPULSE_DASHBOARD_DIR", "/srv/dashboard")

	path := filepath.Join(t.TempDir(), "logpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":8080"
  dashboard_dir: ${LOGPULSE_DASHBOARD_DIR}
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/dashboard", cfg.HTTP.DashboardDir)
}

func TestLoad_SeedsAppConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_config_seed:
  criterion_guides:
    security: "flag auth failures and privilege escalation"
  pipeline_config:
    window_minutes: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Seed.PipelineConfig)
	assert.Equal(t, "flag auth failures and privilege escalation", cfg.Seed.CriterionGuides["security"])
	assert.Equal(t, 10, cfg.Seed.PipelineConfig.WindowMinutes)
}

func TestValidate_RejectsEmptyAddr(t *testing.T) {
	cfg := Default()
	cfg.HTTP.Addr = ""

	err := validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestLoad_RejectsInvalidLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: verbose
`), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [this is not valid"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err, "explicit missing config file should fail")

	// No explicit path: missing files fall back to defaults.
	restore := chdir(t, t.TempDir())
	defer restore()

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, BackendMemory, cfg.RunState.Backend)
	assert.Equal(t, "gpt-4o-mini", cfg.Runtime.Model)
	assert.True(t, cfg.Observability.Metrics.Enabled)
	assert.False(t, cfg.Observability.Tracing.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timestep-config.yaml")
	data := []byte(`
server:
  host: 0.0.0.0
  port: 9090
  stream_max_concurrent: 8
storage:
  backend: file
  data_dir: /tmp/timestep-test/threads
runtime:
  model: gpt-4o
  guarded_tools:
    - delete_file
    - send_email
observability:
  tracing:
    enabled: true
    exporter: zipkin
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, 8, cfg.Server.StreamMaxConcurrent)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, []string{"delete_file", "send_email"}, cfg.Runtime.GuardedTools)
	assert.True(t, cfg.Observability.Tracing.Enabled)
	assert.Equal(t, "zipkin", cfg.Observability.Tracing.Exporter)
	// Unset file values keep their defaults.
	assert.Equal(t, BackendMemory, cfg.RunState.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Server.WriteTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	restore := chdir(t, t.TempDir())
	defer restore()

	t.Setenv("TIMESTEP_SERVER_PORT", "7070")
	t.Setenv("TIMESTEP_RUNTIME_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "sk-test", cfg.Runtime.APIKey)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Backend = BackendPostgres
	assert.Error(t, cfg.Validate(), "postgres backend without DSN")
	cfg.Storage.PostgresDSN = "postgres://localhost/timestep"
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Backend = "redis"
	assert.Error(t, cfg.Validate(), "unknown storage backend")

	cfg = Default()
	cfg.RunState.Backend = "redis"
	assert.Error(t, cfg.Validate(), "unknown run state backend")

	cfg = Default()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate(), "out of range port")
}

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(prev) }
}

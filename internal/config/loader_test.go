package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/profplugin/internal/agentapi"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profplugin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Profiling.Interval)
	assert.Equal(t, "NodeProfPlugin", cfg.Profiling.SessionName)
	assert.Equal(t, "", cfg.Agent.URL)
	assert.Equal(t, DefaultQueueSize, cfg.Agent.QueueSize)
	assert.Equal(t, "", cfg.Properties.Get(agentapi.ProfilingProperty), "profiling defaults to absent")
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Profiling, cfg.Profiling)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  pretty: false
profiling:
  interval: 2s
  session_name: custom
agent:
  url: ws://127.0.0.1:9999/plugins
  provider_id: 12
  queue_size: 8
  dial:
    max_retries: 2
    initial_backoff: 50ms
properties:
  com.ibm.diagnostics.healthcenter.data.profiling: "on"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Pretty)
	assert.Equal(t, 2*time.Second, cfg.Profiling.Interval)
	assert.Equal(t, "custom", cfg.Profiling.SessionName)
	assert.Equal(t, "ws://127.0.0.1:9999/plugins", cfg.Agent.URL)
	assert.Equal(t, uint32(12), cfg.Agent.ProviderID)
	assert.Equal(t, 8, cfg.Agent.QueueSize)
	assert.Equal(t, 2, cfg.Agent.Dial.MaxRetries)
	assert.Equal(t, 50*time.Millisecond, cfg.Agent.Dial.InitialBackoff)
	assert.Equal(t, "on", cfg.Properties.Get(agentapi.ProfilingProperty))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
profiling:
  interval: 2s
properties:
  com.ibm.diagnostics.healthcenter.data.profiling: "on"
`)
	t.Setenv("PROFPLUGIN_PROFILING_INTERVAL", "750ms")
	t.Setenv("PROFPLUGIN_PROFILING_ENABLED", "off")
	t.Setenv("PROFPLUGIN_AGENT_URL", "wss://agent.example:443/ws")
	t.Setenv("PROFPLUGIN_PROVIDER_ID", "3")
	t.Setenv("PROFPLUGIN_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Profiling.Interval)
	assert.Equal(t, "off", cfg.Properties.Get(agentapi.ProfilingProperty))
	assert.Equal(t, "wss://agent.example:443/ws", cfg.Agent.URL)
	assert.Equal(t, uint32(3), cfg.Agent.ProviderID)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "bad yaml",
			content: "profiling: [",
			wantErr: "failed to parse config",
		},
		{
			name:    "bad duration env",
			env:     map[string]string{"PROFPLUGIN_PROFILING_INTERVAL": "soon"},
			wantErr: "PROFPLUGIN_PROFILING_INTERVAL",
		},
		{
			name:    "bad provider id env",
			env:     map[string]string{"PROFPLUGIN_PROVIDER_ID": "-1"},
			wantErr: "PROFPLUGIN_PROVIDER_ID",
		},
		{
			name:    "interval too short",
			content: "profiling:\n  interval: 1ms\n",
			wantErr: "profiling.interval",
		},
		{
			name:    "bad enabled value",
			env:     map[string]string{"PROFPLUGIN_PROFILING_ENABLED": "yes"},
			wantErr: "profiling.enabled",
		},
		{
			name:    "bad agent scheme",
			content: "agent:\n  url: http://localhost:1234\n",
			wantErr: "scheme must be ws or wss",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.content != "" {
				path = writeConfig(t, tt.content)
			}

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Profiling.Interval = 1500 * time.Millisecond
	cfg.Properties[agentapi.ProfilingProperty] = "on"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Profiling, loaded.Profiling)
	assert.Equal(t, cfg.Agent, loaded.Agent)
	assert.Equal(t, cfg.Properties, loaded.Properties)
}

func TestLoadFromEnv_UnsupportedType(t *testing.T) {
	type weird struct {
		Values []int `env:"PROFPLUGIN_TEST_WEIRD"`
	}
	t.Setenv("PROFPLUGIN_TEST_WEIRD", "1,2")

	err := LoadFromEnv(&weird{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func TestLoadFromEnv_NilPointer(t *testing.T) {
	var cfg *Config
	assert.NoError(t, LoadFromEnv(cfg))
}

// Package config loads the collector configuration: defaults, then an
// optional YAML file, then PROFPLUGIN_* environment overrides.
package config

import (
	"time"

	"github.com/coral-mesh/profplugin/internal/agentapi"
	"github.com/coral-mesh/profplugin/internal/logging"
	"github.com/coral-mesh/profplugin/internal/retry"
)

// Config is the complete collector configuration.
type Config struct {
	Log       logging.Config  `yaml:"log"`
	Profiling ProfilingConfig `yaml:"profiling"`
	Agent     AgentConfig     `yaml:"agent"`

	// Properties back the agent's GetProperty when running standalone.
	Properties agentapi.Properties `yaml:"properties"`
}

// ProfilingConfig tunes sampling.
type ProfilingConfig struct {
	// Interval is the sampling window length.
	Interval time.Duration `yaml:"interval" env:"PROFPLUGIN_PROFILING_INTERVAL"`
	// SessionName is the title sampling sessions run under.
	SessionName string `yaml:"session_name" env:"PROFPLUGIN_SESSION_NAME"`
	// Enabled, when "on" or "off", overrides the profiling property.
	Enabled string `yaml:"enabled" env:"PROFPLUGIN_PROFILING_ENABLED"`
}

// AgentConfig describes the connection to the host agent.
type AgentConfig struct {
	// URL of the agent's websocket endpoint. Empty writes blobs to stdout.
	URL string `yaml:"url" env:"PROFPLUGIN_AGENT_URL"`
	// ProviderID is stamped on every pushed blob.
	ProviderID uint32 `yaml:"provider_id" env:"PROFPLUGIN_PROVIDER_ID"`
	// QueueSize bounds outbound frames waiting for the connection.
	QueueSize int `yaml:"queue_size" env:"PROFPLUGIN_AGENT_QUEUE_SIZE"`
	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	// Dial retries the initial connection.
	Dial retry.Config `yaml:"dial"`
}

// ApplyOverrides folds Profiling.Enabled into the property set.
func (c *Config) ApplyOverrides() {
	if c.Profiling.Enabled == "" {
		return
	}
	if c.Properties == nil {
		c.Properties = agentapi.Properties{}
	}
	c.Properties[agentapi.ProfilingProperty] = c.Profiling.Enabled
}

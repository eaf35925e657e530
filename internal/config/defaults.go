package config

import (
	"time"

	"github.com/coral-mesh/profplugin/internal/agentapi"
	"github.com/coral-mesh/profplugin/internal/logging"
	"github.com/coral-mesh/profplugin/internal/prof"
	"github.com/coral-mesh/profplugin/internal/retry"
)

const (
	// DefaultQueueSize is the outbound frame queue length.
	DefaultQueueSize = 64
	// DefaultHandshakeTimeout bounds the websocket handshake.
	DefaultHandshakeTimeout = 10 * time.Second
)

// DefaultConfig returns a config with profiling disabled and blobs written to
// stdout.
func DefaultConfig() *Config {
	return &Config{
		Log: logging.DefaultConfig(),
		Profiling: ProfilingConfig{
			Interval:    prof.DefaultInterval,
			SessionName: prof.DefaultSessionName,
		},
		Agent: AgentConfig{
			QueueSize:        DefaultQueueSize,
			HandshakeTimeout: DefaultHandshakeTimeout,
			Dial: retry.Config{
				MaxRetries:     5,
				InitialBackoff: 200 * time.Millisecond,
				MaxBackoff:     5 * time.Second,
				Jitter:         0.1,
			},
		},
		Properties: agentapi.Properties{},
	}
}

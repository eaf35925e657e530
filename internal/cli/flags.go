package cli

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/coral-mesh/profplugin/internal/config"
)

// runOptions holds the run command's flags. Flags only override the loaded
// configuration when set explicitly.
type runOptions struct {
	configFile   string
	agentURL     string
	providerID   uint32
	interval     time.Duration
	enabled      bool
	logLevel     string
	duration     time.Duration
	controlStdin bool
}

func bindRunFlags(fs *pflag.FlagSet, o *runOptions) {
	fs.StringVarP(&o.configFile, "config", "c", "", "Path to YAML config file")
	fs.StringVar(&o.agentURL, "agent-url", "", "Host agent websocket URL (default: write blobs to stdout)")
	fs.Uint32Var(&o.providerID, "provider-id", 0, "Provider id stamped on pushed blobs")
	fs.DurationVar(&o.interval, "interval", 0, "Sampling window length (default 5s)")
	fs.BoolVar(&o.enabled, "enabled", false, "Start with profiling on")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	fs.DurationVar(&o.duration, "duration", 0, "Stop after this long (default: run until interrupted)")
	fs.BoolVar(&o.controlStdin, "control-stdin", false, "Read control payloads (\"on,profiling_node_subsystem\") from stdin")
}

// apply copies explicitly set flags over cfg.
func (o *runOptions) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("agent-url") {
		cfg.Agent.URL = o.agentURL
	}
	if fs.Changed("provider-id") {
		cfg.Agent.ProviderID = o.providerID
	}
	if fs.Changed("interval") {
		cfg.Profiling.Interval = o.interval
	}
	if fs.Changed("enabled") {
		cfg.Profiling.Enabled = "off"
		if o.enabled {
			cfg.Profiling.Enabled = "on"
		}
		cfg.ApplyOverrides()
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	return cfg.Validate()
}

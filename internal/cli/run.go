package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/profplugin/internal/agentapi"
	"github.com/coral-mesh/profplugin/internal/agentapi/wsagent"
	"github.com/coral-mesh/profplugin/internal/config"
	perrors "github.com/coral-mesh/profplugin/internal/errors"
	"github.com/coral-mesh/profplugin/internal/eventloop"
	"github.com/coral-mesh/profplugin/internal/logging"
	"github.com/coral-mesh/profplugin/internal/prof"
	"github.com/coral-mesh/profplugin/internal/prof/pprofrt"
)

const stopTimeout = 5 * time.Second

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Profile this process and push call trees to the agent",
		Long: `Run the profiling push source against the current process.

Configuration sources (in order of precedence):
1. Flags
2. Environment variables (PROFPLUGIN_*)
3. Config file (--config)
4. Defaults

Environment Variables:
  PROFPLUGIN_AGENT_URL           - Host agent websocket URL
  PROFPLUGIN_PROVIDER_ID         - Provider id stamped on blobs
  PROFPLUGIN_PROFILING_INTERVAL  - Sampling window length
  PROFPLUGIN_PROFILING_ENABLED   - Initial state (on, off)
  PROFPLUGIN_LOG_LEVEL           - Logging level

Examples:
  # Write blobs to stdout, profiling on, toggled from stdin
  profplugin run --enabled --control-stdin

  # Push to a host agent
  profplugin run --agent-url ws://127.0.0.1:7070/plugins`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := opts.apply(cmd.Flags(), cfg); err != nil {
				return err
			}

			logCfg := cfg.Log
			logCfg.Output = cmd.ErrOrStderr()
			logger := logging.NewWithComponent(logCfg, "profplugin")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if opts.duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, opts.duration)
				defer cancel()
			}

			var control io.Reader
			if opts.controlStdin {
				control = cmd.InOrStdin()
			}
			return runCollector(ctx, cfg, cmd.OutOrStdout(), control, logger)
		},
	}

	bindRunFlags(cmd.Flags(), opts)
	return cmd
}

// runCollector wires the plugin to its event loop, runtime and agent and runs
// it until ctx is done.
func runCollector(ctx context.Context, cfg *config.Config, stdout io.Writer, control io.Reader, logger zerolog.Logger) error {
	loop := eventloop.New(logger)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(loopCtx)
	}()
	defer func() {
		if n := loop.Pending(); n > 0 {
			logger.Debug().Int("pending", n).Msg("Dropping queued tasks")
		}
		stopLoop()
		<-loopDone
	}()

	plugin := prof.New(loop, pprofrt.New(logger), logger, prof.Options{
		Interval:    cfg.Profiling.Interval,
		SessionName: cfg.Profiling.SessionName,
	})

	var api agentapi.API
	if cfg.Agent.URL != "" {
		client, err := wsagent.Dial(ctx, wsagent.Config{
			URL:              cfg.Agent.URL,
			QueueSize:        cfg.Agent.QueueSize,
			HandshakeTimeout: cfg.Agent.HandshakeTimeout,
			Dial:             cfg.Agent.Dial,
		}, cfg.Properties, logger)
		if err != nil {
			return err
		}
		defer perrors.DeferClose(logger, client, "failed to close agent connection")

		client.OnMessage(plugin.ReceiveMessage)
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				logger.Warn().Err(err).Msg("Agent connection lost")
			}
		}()
		api = client
	} else {
		api = agentapi.NewWriterAPI(stdout, cfg.Properties, logger)
	}

	if rc := plugin.Init(""); rc != 0 {
		return fmt.Errorf("plugin init returned %d", rc)
	}
	src := plugin.Register(api, cfg.Agent.ProviderID)
	logger.Info().
		Str("source", src.Name).
		Uint32("capacity", src.Capacity).
		Str("plugin_version", plugin.Version()).
		Msg("Registered push source")

	if err := plugin.Start(ctx); err != nil {
		return fmt.Errorf("failed to start plugin: %w", err)
	}

	if control != nil {
		go readControl(control, plugin, logger)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := plugin.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop plugin: %w", err)
	}
	return nil
}

// controlReceiver is the part of the plugin that takes control messages.
type controlReceiver interface {
	ReceiveMessage(id string, data []byte)
}

// readControl feeds each non-empty line of r to the plugin as a control
// payload for its source.
func readControl(r io.Reader, plugin controlReceiver, logger zerolog.Logger) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		logger.Debug().Str("payload", line).Msg("Control message from stdin")
		plugin.ReceiveMessage(prof.SourceName, []byte(line))
	}
	if err := sc.Err(); err != nil {
		logger.Warn().Err(err).Msg("Failed to read control input")
	}
}

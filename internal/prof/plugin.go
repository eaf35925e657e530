// Package prof implements the periodic CPU-profiling plugin: it samples the
// runtime in fixed windows, serializes each window's call tree as a
// NodeProfData blob and pushes it to the host agent. Profiling can be turned
// on and off remotely through agent control messages.
//
// All profiler state lives on a single event loop goroutine. Host callbacks
// that may arrive on other goroutines only post work to that loop.
package prof

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/profplugin/internal/agentapi"
	"github.com/coral-mesh/profplugin/internal/eventloop"
	"github.com/coral-mesh/profplugin/internal/logging"
	"github.com/coral-mesh/profplugin/pkg/version"
)

const (
	// SourceName is the push source registered with the agent. Control
	// messages must be addressed to it.
	SourceName = "profiling_node"

	// ControlTopic is the topic inside a control payload that toggles
	// profiling.
	ControlTopic = SourceName + "_subsystem"

	// ConfigTopic carries the outbound on/off notifications.
	ConfigTopic = "configuration/" + SourceName

	// DefaultInterval is the length of one sampling window.
	DefaultInterval = 5000 * time.Millisecond
)

// Options tunes a Plugin. The zero value uses the defaults.
type Options struct {
	// Interval between ticks.
	Interval time.Duration
	// SessionName is the title sampling sessions are started under.
	SessionName string
	// Now stamps serialized snapshots. Defaults to time.Now.
	Now func() time.Time
}

// Status is a point-in-time view of the plugin's loop-confined state.
type Status struct {
	Enabled       bool
	TimerArmed    bool
	SessionActive bool
}

// toggleRequest is one pending enable/disable request.
type toggleRequest struct {
	id     uuid.UUID
	enable bool
}

// Plugin is the profiling push source.
type Plugin struct {
	loop   *eventloop.Loop
	logger zerolog.Logger

	interval time.Duration
	now      func() time.Time

	// Loop-confined. Register writes api, provID and enabled before the
	// first Post, which orders them before any loop access.
	api     agentapi.API
	provID  uint32
	enabled bool
	session *Session
	timer   *eventloop.Timer
}

// New creates a plugin sampling rt on loop.
func New(loop *eventloop.Loop, rt Runtime, logger zerolog.Logger, opts Options) *Plugin {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger = logging.ForSource(logger.With().Str("component", "cpu_profiler_plugin").Logger(), SourceName)

	return &Plugin{
		loop:     loop,
		logger:   logger,
		interval: opts.Interval,
		now:      opts.Now,
		session:  NewSession(rt, opts.SessionName, logger),
	}
}

// Register binds the plugin to the agent and returns its push sources.
// The initial profiling state is read from agentapi.ProfilingProperty.
// Register must be called before Start and before any control message.
func (p *Plugin) Register(api agentapi.API, provID uint32) *agentapi.PushSource {
	p.api = api
	p.provID = provID
	p.enabled = api != nil && api.GetProperty(agentapi.ProfilingProperty) == "on"

	p.logger.Debug().Uint32("prov_id", provID).Msg("Registering push sources")
	return agentapi.NewPushSource(0, SourceName)
}

// Init is called by the agent before properties are available; there is
// nothing to set up yet.
func (p *Plugin) Init(properties string) int {
	return 0
}

// Version returns the plugin version reported to the agent.
func (p *Plugin) Version() string {
	return version.PluginVersion
}

// Start publishes the initial state and, if profiling is enabled, starts a
// sampling session and arms the timer before returning.
func (p *Plugin) Start(ctx context.Context) error {
	return p.loop.Call(ctx, p.start)
}

// Stop disarms and releases the timer and discards any running session.
func (p *Plugin) Stop(ctx context.Context) error {
	return p.loop.Call(ctx, p.stop)
}

// Status reads the plugin state on the loop.
func (p *Plugin) Status(ctx context.Context) (Status, error) {
	var st Status
	err := p.loop.Call(ctx, func() {
		st = Status{
			Enabled:       p.enabled,
			TimerArmed:    p.timer != nil && p.timer.Armed(),
			SessionActive: p.session.Active(),
		}
	})
	return st, err
}

// SetEnabled requests profiling to be turned on or off. It may be called from
// any goroutine and returns without waiting; the change is applied on the
// loop. Concurrent requests are each applied once, in no particular order.
func (p *Plugin) SetEnabled(enable bool) {
	req := toggleRequest{id: uuid.New(), enable: enable}

	if enable {
		p.logger.Debug().Stringer("request_id", req.id).Msg("Enabling")
	} else {
		p.logger.Debug().Stringer("request_id", req.id).Msg("Disabling")
	}

	if !p.loop.Post(func() { p.applyToggle(req) }) {
		p.logger.Warn().Stringer("request_id", req.id).Bool("enable", enable).
			Msg("Event loop closed, dropping toggle request")
	}
}

// ReceiveMessage handles a control message from the agent. Only messages for
// SourceName are considered; the payload is "<command>,<topic>" and a topic of
// ControlTopic enables profiling when command is "on" and disables it
// otherwise.
func (p *Plugin) ReceiveMessage(id string, data []byte) {
	if id != SourceName {
		return
	}

	command, topic, found := strings.Cut(string(data), ",")
	if !found || topic != ControlTopic {
		return
	}
	p.SetEnabled(command == "on")
}

func (p *Plugin) applyToggle(req toggleRequest) {
	p.logger.Trace().Stringer("request_id", req.id).Bool("enable", req.enable).Msg("Applying toggle request")
	if req.enable {
		p.enable()
	} else {
		p.disable()
	}
}

func (p *Plugin) start() {
	if p.enabled {
		p.logger.Info().Dur("interval", p.interval).Msg("Starting enabled")
	} else {
		p.logger.Info().Msg("Starting disabled")
	}
	p.publishEnabled()

	if p.timer == nil {
		p.timer = p.loop.NewTimer()
	}
	if p.enabled {
		p.startSession()
		p.armTimer()
	}
}

func (p *Plugin) stop() {
	p.logger.Info().Msg("Stopping")

	if p.enabled {
		p.enabled = false
		if p.timer != nil {
			p.timer.Stop()
		}
		p.session.Discard()
	}
	if p.timer != nil {
		p.timer.Close()
		p.timer = nil
	}
}

func (p *Plugin) enable() {
	if p.enabled {
		return
	}
	p.enabled = true
	p.publishEnabled()

	// Before Start (or after Stop) there is no timer; Start picks the
	// state up.
	if p.timer == nil {
		return
	}
	p.startSession()
	p.armTimer()
}

func (p *Plugin) disable() {
	if !p.enabled {
		return
	}
	p.enabled = false
	p.publishEnabled()

	if p.timer == nil {
		return
	}
	p.timer.Stop()
	p.session.Discard()
}

// onTick closes the current sampling window, pushes it and opens the next.
func (p *Plugin) onTick() {
	if !p.enabled {
		return
	}

	tree, err := p.session.Stop()
	if err != nil || tree == nil {
		p.logger.Debug().Err(err).Msg("No method profile found")
		p.startSession()
		return
	}

	blob, err := Serialize(tree.Root(), p.now())
	tree.Release()
	p.startSession()

	if err != nil {
		p.logger.Debug().Err(err).Msg("Failed to serialise method profile")
		return
	}
	p.push(blob)
}

func (p *Plugin) startSession() {
	if err := p.session.Start(); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to start profiler")
	}
}

func (p *Plugin) armTimer() {
	p.logger.Debug().Dur("interval", p.interval).Msg("Starting timer")
	if err := p.timer.Start(p.interval, p.onTick); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to arm sampling timer")
	}
}

func (p *Plugin) push(blob []byte) {
	if p.api == nil {
		p.logger.Debug().Int("size", len(blob)).Msg("Not registered, dropping method profile")
		return
	}

	p.logger.Debug().
		Int("size", len(blob)).
		Uint64("checksum", xxh3.Hash(blob)).
		Msg("Pushing method profile")

	p.api.PushData(agentapi.MonitorData{
		ProvID:     p.provID,
		SourceID:   0,
		Persistent: false,
		Data:       blob,
	})
}

func (p *Plugin) publishEnabled() {
	msg := ControlTopic + "=off"
	if p.enabled {
		msg = ControlTopic + "=on"
	}

	p.logger.Debug().Str("message", msg).Msg("Sending config message")
	if p.api == nil {
		return
	}
	p.api.SendMessage(ConfigTopic, []byte(msg))
}

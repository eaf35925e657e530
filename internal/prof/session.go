package prof

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	perrors "github.com/coral-mesh/profplugin/internal/errors"
)

// DefaultSessionName is the title every sampling session is started under.
const DefaultSessionName = "NodeProfPlugin"

// errSessionActive guards against starting the sampler twice.
var errSessionActive = errors.New("profiling session already active")

// CPUProfiler is the runtime's native sampler.
type CPUProfiler interface {
	StartProfiling(title string) error
	// StopProfiling ends the session started under title. A nil tree with a
	// nil error means the runtime had no profile to return.
	StopProfiling(title string) (CallTree, error)
}

// Runtime gives access to the sampler of the current execution context.
type Runtime interface {
	// CPUProfiler returns ErrMissingExecutionContext when there is no current
	// context and ErrMissingProfilerCapability when the runtime has no sampler.
	CPUProfiler() (CPUProfiler, error)
}

// Session drives one sampling session at a time. It is confined to the
// event loop goroutine.
type Session struct {
	runtime Runtime
	title   string
	logger  zerolog.Logger

	active bool
}

// NewSession creates a session manager over rt.
func NewSession(rt Runtime, title string, logger zerolog.Logger) *Session {
	if title == "" {
		title = DefaultSessionName
	}
	return &Session{
		runtime: rt,
		title:   title,
		logger:  logger,
	}
}

// Active reports whether a sampling session is running.
func (s *Session) Active() bool {
	return s.active
}

// Start begins a sampling session.
func (s *Session) Start() error {
	if s.active {
		return errSessionActive
	}

	cpu, err := s.profiler()
	if err != nil {
		return err
	}
	if err := cpu.StartProfiling(s.title); err != nil {
		return fmt.Errorf("failed to start profiling %q: %w", s.title, err)
	}

	s.active = true
	return nil
}

// Stop ends the running session and returns its call tree. It returns
// nil, nil when no session was running or the runtime produced no tree.
func (s *Session) Stop() (CallTree, error) {
	if !s.active {
		return nil, nil
	}
	s.active = false

	cpu, err := s.profiler()
	if err != nil {
		return nil, err
	}

	tree, err := cpu.StopProfiling(s.title)
	if err != nil {
		return nil, fmt.Errorf("failed to stop profiling %q: %w", s.title, err)
	}
	return tree, nil
}

// Discard stops the running session and releases whatever it produced.
func (s *Session) Discard() {
	tree, err := s.Stop()
	if err != nil {
		s.logger.Debug().Err(err).Msg("No method profile to discard")
		return
	}
	if tree != nil {
		tree.Release()
	}
}

func (s *Session) profiler() (CPUProfiler, error) {
	if s.runtime == nil {
		return nil, perrors.ErrMissingProfilerCapability
	}

	cpu, err := s.runtime.CPUProfiler()
	if err != nil {
		return nil, err
	}
	if cpu == nil {
		return nil, perrors.ErrMissingProfilerCapability
	}
	return cpu, nil
}

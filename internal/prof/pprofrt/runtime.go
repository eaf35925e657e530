// Package pprofrt exposes the Go runtime's CPU profiler as a prof.Runtime.
//
// Each session records a pprof CPU profile into memory; stopping it parses
// the profile and folds its samples into a top-down call tree whose leaves
// carry the sample counts.
package pprofrt

import (
	"bytes"
	"fmt"
	"runtime/pprof"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"

	perrors "github.com/coral-mesh/profplugin/internal/errors"
	"github.com/coral-mesh/profplugin/internal/prof"
)

// Runtime profiles the current process. Like the rest of the plugin state it
// must only be used from the event loop goroutine.
type Runtime struct {
	logger zerolog.Logger

	// Swapped in tests.
	startCPUProfile func(w *bytes.Buffer) error
	stopCPUProfile  func()

	title  string
	active bool
	buf    bytes.Buffer
}

// New creates a Runtime.
func New(logger zerolog.Logger) *Runtime {
	return &Runtime{
		logger:          logger.With().Str("component", "pprof_runtime").Logger(),
		startCPUProfile: func(w *bytes.Buffer) error { return pprof.StartCPUProfile(w) },
		stopCPUProfile:  pprof.StopCPUProfile,
	}
}

// CPUProfiler returns the runtime itself; the Go runtime always has one.
func (r *Runtime) CPUProfiler() (prof.CPUProfiler, error) {
	if r == nil {
		return nil, perrors.ErrMissingExecutionContext
	}
	return r, nil
}

// StartProfiling starts the process-wide CPU profile. It fails if any other
// CPU profile is already running in the process.
func (r *Runtime) StartProfiling(title string) error {
	if r.active {
		return fmt.Errorf("session %q already running", r.title)
	}

	r.buf.Reset()
	if err := r.startCPUProfile(&r.buf); err != nil {
		return err
	}

	r.title = title
	r.active = true
	return nil
}

// StopProfiling stops the session started under title and returns its call
// tree. It returns nil, nil when no such session is running.
func (r *Runtime) StopProfiling(title string) (prof.CallTree, error) {
	if !r.active || r.title != title {
		return nil, nil
	}

	r.stopCPUProfile()
	r.active = false

	if r.buf.Len() == 0 {
		return nil, nil
	}

	p, err := profile.Parse(bytes.NewReader(r.buf.Bytes()))
	r.buf.Reset()
	if err != nil {
		return nil, fmt.Errorf("failed to parse cpu profile: %w", err)
	}

	tree := BuildTree(p)
	r.logger.Trace().
		Int("samples", len(p.Sample)).
		Int("functions", len(p.Function)).
		Int("frames", tree.Top.Size()).
		Msg("Parsed cpu profile")

	return tree, nil
}

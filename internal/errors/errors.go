package errors

import "errors"

// Failures raised while driving the runtime profiler. None of them are fatal:
// callers log them at debug level and carry on with the next tick.
var (
	// ErrMissingExecutionContext is returned when there is no current
	// execution context to attach the profiler to.
	ErrMissingExecutionContext = errors.New("no current execution context")

	// ErrMissingProfilerCapability is returned when the runtime exposes no
	// CPU sampler.
	ErrMissingProfilerCapability = errors.New("runtime exposes no cpu profiler")

	// ErrTextExtraction is returned when a call tree node's function or
	// script name cannot be materialized as text.
	ErrTextExtraction = errors.New("failed to extract node text")

	// ErrSerializationAborted marks a snapshot that was dropped as a whole.
	ErrSerializationAborted = errors.New("profile serialization aborted")
)

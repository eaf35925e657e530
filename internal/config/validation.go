package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// MinInterval is the shortest accepted sampling window.
const MinInterval = 10 * time.Millisecond

// Validate checks the configuration for values the collector cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Profiling.Interval < MinInterval {
		errs = append(errs, fmt.Errorf("profiling.interval %s is below the minimum %s", c.Profiling.Interval, MinInterval))
	}

	switch c.Profiling.Enabled {
	case "", "on", "off":
	default:
		errs = append(errs, fmt.Errorf("profiling.enabled must be \"on\" or \"off\", got %q", c.Profiling.Enabled))
	}

	if c.Agent.URL != "" {
		u, err := url.Parse(c.Agent.URL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("agent.url: %w", err))
		case u.Scheme != "ws" && u.Scheme != "wss":
			errs = append(errs, fmt.Errorf("agent.url scheme must be ws or wss, got %q", u.Scheme))
		}
	}

	if c.Agent.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("agent.queue_size must be positive, got %d", c.Agent.QueueSize))
	}

	if c.Agent.Dial.MaxRetries <= 0 {
		errs = append(errs, fmt.Errorf("agent.dial.max_retries must be positive, got %d", c.Agent.Dial.MaxRetries))
	}

	return errors.Join(errs...)
}

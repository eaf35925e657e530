// Package errors holds the collector's error taxonomy and cleanup helpers.
package errors

import (
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes c and logs a failure at warn level instead of dropping it.
// Meant for defer statements on connections and files.
func DeferClose(logger zerolog.Logger, c io.Closer, msg string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

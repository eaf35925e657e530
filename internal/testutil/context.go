// Package testutil provides helpers shared by profplugin tests.
package testutil

import (
	"context"
	"time"
)

// NewTestContext creates a test context with a 10-second timeout.
func NewTestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

package errors

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type mockCloser struct {
	closeErr error
	closed   bool
}

func (m *mockCloser) Close() error {
	m.closed = true
	return m.closeErr
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     *mockCloser
		wantLogged bool
	}{
		{
			name:       "nil closer",
			closer:     nil,
			wantLogged: false,
		},
		{
			name:       "successful close",
			closer:     &mockCloser{},
			wantLogged: false,
		},
		{
			name:       "close with error",
			closer:     &mockCloser{closeErr: errors.New("close failed")},
			wantLogged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := zerolog.New(&buf)

			var c io.Closer
			if tt.closer != nil {
				c = tt.closer
			}
			DeferClose(logger, c, "test close")

			if tt.closer != nil {
				assert.True(t, tt.closer.closed, "Close() was not called")
			}
			assert.Equal(t, tt.wantLogged, buf.Len() > 0)
		})
	}
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: node 3: %w", ErrSerializationAborted, ErrTextExtraction)

	assert.ErrorIs(t, wrapped, ErrSerializationAborted)
	assert.ErrorIs(t, wrapped, ErrTextExtraction)
	assert.NotErrorIs(t, wrapped, ErrMissingExecutionContext)
}

package agentapi

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// WriterAPI is an API that writes pushed blobs to an io.Writer and logs
// outbound messages. It stands in for the agent when running standalone.
type WriterAPI struct {
	props  Properties
	logger zerolog.Logger

	mu sync.Mutex
	w  io.Writer
}

// NewWriterAPI creates a WriterAPI writing to w.
func NewWriterAPI(w io.Writer, props Properties, logger zerolog.Logger) *WriterAPI {
	return &WriterAPI{
		props:  props,
		logger: logger.With().Str("component", "writer_sink").Logger(),
		w:      w,
	}
}

// PushData writes the blob as-is.
func (a *WriterAPI) PushData(data MonitorData) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.w.Write(data.Data); err != nil {
		a.logger.Warn().Err(err).Uint32("prov_id", data.ProvID).Msg("Failed to write pushed data")
	}
}

// SendMessage logs the message; there is no agent to receive it.
func (a *WriterAPI) SendMessage(topic string, body []byte) {
	a.logger.Info().Str("topic", topic).Str("body", string(body)).Msg("Agent message")
}

// GetProperty returns the configured property value.
func (a *WriterAPI) GetProperty(key string) string {
	return a.props.Get(key)
}

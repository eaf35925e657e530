// Package wsagent connects a plugin to a host agent over a websocket.
//
// Every frame is a JSON Envelope. The plugin sends "data" frames for pushed
// blobs and "message" frames for outbound agent messages; the agent sends
// "control" frames, which are handed to the registered MessageHandler.
package wsagent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/zeebo/xxh3"

	"github.com/coral-mesh/profplugin/internal/agentapi"
	perrors "github.com/coral-mesh/profplugin/internal/errors"
	"github.com/coral-mesh/profplugin/internal/retry"
)

// Frame types.
const (
	TypeData    = "data"
	TypeMessage = "message"
	TypeControl = "control"
)

// InstanceHeader carries the client instance id on the handshake.
const InstanceHeader = "X-Profplugin-Instance"

const writeTimeout = 5 * time.Second

// Envelope is the JSON frame exchanged with the agent.
type Envelope struct {
	Type       string `json:"type"`
	Topic      string `json:"topic,omitempty"`
	ProvID     uint32 `json:"provId,omitempty"`
	SourceID   uint32 `json:"sourceId,omitempty"`
	Persistent bool   `json:"persistent,omitempty"`
	// Checksum is the xxh3 hash of Payload on data frames. Payload travels
	// base64-encoded, as encoding/json does for byte slices.
	Checksum uint64 `json:"checksum,omitempty"`
	Payload  []byte `json:"payload,omitempty"`
}

// Config configures the client.
type Config struct {
	URL              string
	QueueSize        int
	HandshakeTimeout time.Duration
	Dial             retry.Config
}

// Client is an agentapi.API backed by a websocket connection.
type Client struct {
	cfg        Config
	props      agentapi.Properties
	logger     zerolog.Logger
	instanceID uuid.UUID

	conn *websocket.Conn
	out  chan Envelope

	handler agentapi.MessageHandler

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the agent, retrying per cfg.Dial.
func Dial(ctx context.Context, cfg Config, props agentapi.Properties, logger zerolog.Logger) (*Client, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}

	c := &Client{
		cfg:        cfg,
		props:      props,
		instanceID: uuid.New(),
		out:        make(chan Envelope, cfg.QueueSize),
		closed:     make(chan struct{}),
	}
	c.logger = logger.With().
		Str("component", "ws_agent").
		Stringer("instance_id", c.instanceID).
		Logger()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	header := http.Header{}
	header.Set(InstanceHeader, c.instanceID.String())

	err := retry.Do(ctx, cfg.Dial, func() error {
		conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
		if resp != nil && resp.Body != nil {
			perrors.DeferClose(c.logger, resp.Body, "failed to close handshake response body")
		}
		if err != nil {
			c.logger.Debug().Err(err).Str("url", cfg.URL).Msg("Agent dial failed")
			return err
		}
		c.conn = conn
		return nil
	}, func(err error) bool {
		return !errors.Is(err, websocket.ErrBadHandshake)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to agent at %s: %w", cfg.URL, err)
	}

	c.logger.Info().Str("url", cfg.URL).Msg("Connected to agent")
	return c, nil
}

// OnMessage sets the handler for control frames. It must be called before Run.
func (c *Client) OnMessage(h agentapi.MessageHandler) {
	c.handler = h
}

// Run pumps frames until ctx is cancelled or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	writeErr := make(chan error, 1)
	go func() { writeErr <- c.writeLoop(ctx) }()

	readErr := make(chan error, 1)
	go func() { readErr <- c.readLoop() }()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-readErr:
	case err = <-writeErr:
	}

	c.shutdown()
	return err
}

// PushData queues a data frame. When the queue is full the blob is dropped.
func (c *Client) PushData(d agentapi.MonitorData) {
	c.enqueue(Envelope{
		Type:       TypeData,
		ProvID:     d.ProvID,
		SourceID:   d.SourceID,
		Persistent: d.Persistent,
		Checksum:   xxh3.Hash(d.Data),
		Payload:    d.Data,
	})
}

// SendMessage queues a message frame.
func (c *Client) SendMessage(topic string, body []byte) {
	c.enqueue(Envelope{Type: TypeMessage, Topic: topic, Payload: body})
}

// GetProperty returns a locally configured property.
func (c *Client) GetProperty(key string) string {
	return c.props.Get(key)
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

func (c *Client) enqueue(env Envelope) {
	select {
	case <-c.closed:
		c.logger.Debug().Str("type", env.Type).Msg("Connection closed, dropping frame")
		return
	default:
	}

	select {
	case c.out <- env:
	default:
		c.logger.Warn().
			Str("type", env.Type).
			Int("size", len(env.Payload)).
			Msg("Outbound queue full, dropping frame")
	}
}

func (c *Client) writeLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.closed:
			return nil
		case env := <-c.out:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return fmt.Errorf("failed to write %s frame: %w", env.Type, err)
			}
		}
	}
}

func (c *Client) readLoop() error {
	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			select {
			case <-c.closed:
				return nil
			default:
			}
			return fmt.Errorf("failed to read frame: %w", err)
		}

		if env.Type != TypeControl {
			c.logger.Debug().Str("type", env.Type).Msg("Ignoring unexpected frame")
			continue
		}
		if c.handler != nil {
			c.handler(env.Topic, env.Payload)
		}
	}
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.closed)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		perrors.DeferClose(c.logger, c.conn, "failed to close agent connection")
	})
}

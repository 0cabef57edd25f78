package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/homesync/node-agent/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as the node's messaging session.
//
// Unlike a long-lived service client it never reconnects on its own: the
// connectivity manager decides when Connect is attempted. Inbound messages
// are not dispatched to callbacks; they are buffered and handed out one at a
// time by Poll so the control loop processes them on its own goroutine.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - paho delivers messages on its own goroutines; they only ever touch the inbox.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	topics  Topics

	// newClient builds the underlying paho client. Replaced in tests.
	newClient func(*pahomqtt.ClientOptions) pahomqtt.Client

	// inbox buffers inbound messages between polls.
	inbox   chan Message
	dropped atomic.Uint64

	// connected tracks current connection state.
	connected bool
	connMu    sync.RWMutex

	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Message is one inbound publish waiting to be polled.
type Message struct {
	Topic   string
	Payload []byte
}

// New creates a session client. No network activity happens until Connect.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - clientID: Broker client identifier (see ClientID)
//
// Returns:
//   - *Client: Disconnected client
func New(cfg config.MQTTConfig, clientID string) *Client {
	topics := NewTopics(cfg.Topics)
	inboxSize := cfg.InboxSize
	if inboxSize <= 0 {
		inboxSize = 16
	}

	c := &Client{
		cfg:       cfg,
		topics:    topics,
		options:   buildClientOptions(cfg, clientID, topics),
		newClient: pahomqtt.NewClient,
		inbox:     make(chan Message, inboxSize),
	}

	c.options.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	return c
}

// Connect performs one bounded session attempt.
//
// The attempt is bounded by the shorter of the context deadline and the
// client's connect timeout. Messages buffered from a previous session are
// discarded first so nothing received before a disconnect is acted on after it.
//
// Returns:
//   - error: wrapped ErrConnectionFailed on timeout or broker refusal
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if c.client == nil {
		c.client = c.newClient(c.options)
	}
	c.drainInbox()

	timeout := c.options.ConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	token := c.client.Connect()
	if !token.WaitTimeout(timeout) {
		c.client.Disconnect(0)
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.setConnected(true)
	return nil
}

// handleDisconnect is called by paho when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.setConnected(false)

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

func (c *Client) setConnected(v bool) {
	c.connMu.Lock()
	c.connected = v
	c.connMu.Unlock()
}

// Close publishes a graceful retained "offline" presence and disconnects.
//
// Returns:
//   - error: always nil; a client that never connected is a no-op
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.client.Publish(c.topics.Status(), byte(c.cfg.QoS), true, PresenceOffline)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)

	return nil
}

// HealthCheck reports whether the session is usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client != nil && c.client.IsConnected()
}

// Topics returns the topic builders derived from configuration.
func (c *Client) Topics() Topics {
	return c.topics
}

// SetOnDisconnect sets a callback to be invoked when connection is lost.
// It runs on a paho goroutine.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for inbox overflow and handler errors.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe asks the broker for messages on topic at the configured QoS.
//
// Received messages are buffered in the inbox and must be collected with
// Poll. Subscriptions are not tracked: sessions are clean, so the caller
// subscribes again after every Connect.
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Subscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Subscribe(topic, byte(c.cfg.QoS), c.enqueue)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	return nil
}

// enqueue is the paho message handler. It never blocks: when the inbox is
// full the message is dropped.
func (c *Client) enqueue(_ pahomqtt.Client, msg pahomqtt.Message) {
	payload := make([]byte, len(msg.Payload()))
	copy(payload, msg.Payload())

	select {
	case c.inbox <- Message{Topic: msg.Topic(), Payload: payload}:
	default:
		c.dropped.Add(1)
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT inbox full, message dropped",
				"topic", msg.Topic(),
				"capacity", cap(c.inbox),
			)
		}
	}
}

// Poll returns the next buffered inbound message without blocking.
//
// Returns:
//   - topic, payload: the message
//   - ok: false when nothing is waiting
func (c *Client) Poll() (topic string, payload []byte, ok bool) {
	select {
	case msg := <-c.inbox:
		return msg.Topic, msg.Payload, true
	default:
		return "", nil, false
	}
}

// Dropped returns how many inbound messages were discarded because the inbox was full.
func (c *Client) Dropped() uint64 {
	return c.dropped.Load()
}

// drainInbox discards everything buffered from a previous session.
func (c *Client) drainInbox() {
	for {
		select {
		case <-c.inbox:
		default:
			return
		}
	}
}

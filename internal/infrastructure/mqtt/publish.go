package mqtt

import (
	"fmt"
)

// maxPayloadSize is the largest payload a node publishes or accepts.
const maxPayloadSize = 512

// Publish sends one message at QoS 0 (at most once).
//
// The call waits only for the hand-off to the network layer, bounded by
// defaultPublishTimeout. There is no acknowledgement tracking and no retry:
// callers treat a returned error as a dropped message.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: The message payload
//   - retained: Whether the broker should retain the message for new subscribers
//
// Returns:
//   - error: nil on hand-off, ErrNotConnected, or wrapped ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, telemetryQoS, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

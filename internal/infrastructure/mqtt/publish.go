package mqtt

import (
	"context"
	"fmt"
)

// Maximum payload size for an event envelope (1MB).
const maxPayloadSize = 1 << 20

// Publish sends one event envelope to topic, non-retained.
//
// Events describe something that already happened, so a late subscriber
// must not receive a stale one; only the status topic is retained.
//
// Parameters:
//   - ctx: Bounds the wait for the broker acknowledgement. Without a
//     deadline the wait is capped at the default publish timeout.
//   - topic: A concrete topic such as "pmflow/events/task/created"
//   - payload: JSON envelope, at most 1MB
//   - qos: 0, 1 or 2
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or a wrapped
//     ErrPublishFailed
func (c *Client) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPublishTimeout)
		defer cancel()
	}

	token := c.client.Publish(topic, qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrPublishFailed, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

package mqtt

import "errors"

// Check with errors.Is; Publish and Connect wrap these with detail.
var (
	// ErrDisabled is returned by Connect when domain events are turned off.
	ErrDisabled = errors.New("mqtt: event publishing disabled")

	ErrNotConnected     = errors.New("mqtt: broker connection down")
	ErrConnectionFailed = errors.New("mqtt: broker connection failed")
	ErrPublishFailed    = errors.New("mqtt: event publish failed")

	// ErrInvalidQoS rejects anything outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: QoS must be 0, 1 or 2")

	// ErrInvalidTopic rejects empty levels and wildcards in a publish topic.
	ErrInvalidTopic = errors.New("mqtt: invalid event topic")
)

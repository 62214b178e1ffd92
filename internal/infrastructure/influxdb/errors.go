package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when security series are turned off.
	ErrDisabled = errors.New("influxdb: security series disabled")

	// ErrConnectionFailed wraps the ping or health failure seen at startup.
	ErrConnectionFailed = errors.New("influxdb: server unreachable")

	// ErrNotConnected is reported by HealthCheck after Close.
	ErrNotConnected = errors.New("influxdb: client closed")
)

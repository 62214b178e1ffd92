package influxdb

import (
	"context"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/pmflow-core/internal/auth"
)

// MeasurementAuthEvents is the measurement security events are written to.
const MeasurementAuthEvents = "auth_events"

// WritePoint writes a custom point stamped with the current time.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Low-cardinality key-value pairs for indexing
//   - fields: The recorded values
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	if !c.IsConnected() {
		return
	}
	c.writer.WritePoint(write.NewPoint(measurement, tags, fields, c.now()))
}

// WriteAuthEvent writes one security event.
//
// Tags carry the event type, role, reason and operation; the user ID is a
// field so it does not inflate series cardinality. Events without a
// timestamp are stamped with the current time.
func (c *Client) WriteAuthEvent(ev auth.Event) {
	if !c.IsConnected() {
		return
	}

	tags := map[string]string{"type": string(ev.Type)}
	if ev.Role != "" {
		tags["role"] = string(ev.Role)
	}
	if ev.Reason != "" {
		tags["reason"] = ev.Reason
	}
	if ev.Operation != "" {
		tags["operation"] = string(ev.Operation)
	}

	fields := map[string]any{"count": 1}
	if ev.UserID != "" {
		fields["user_id"] = ev.UserID
	}

	at := ev.At
	if at.IsZero() {
		at = c.now()
	}
	c.writer.WritePoint(write.NewPoint(MeasurementAuthEvents, tags, fields, at))
}

// AuthRecorder adapts the client to auth.EventRecorder.
func (c *Client) AuthRecorder() auth.EventRecorder {
	return authRecorder{c: c}
}

type authRecorder struct {
	c *Client
}

func (r authRecorder) RecordAuthEvent(_ context.Context, ev auth.Event) {
	r.c.WriteAuthEvent(ev)
}

// Package influxdb writes PMFlow security events to InfluxDB as a time series.
//
// It wraps the official influxdb-client-go v2 library. Every login, logout,
// rejection, throttle and denial reported by the auth package becomes one
// point in the auth_events measurement, tagged by event type, role and
// reason, so dashboards can chart failed logins or denials per operation.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // series disabled, continue without it
//	}
//	defer client.Close()
//
//	recorders = append(recorders, client.AuthRecorder())
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; asynchronous write
// errors are delivered to the SetOnError callback.
package influxdb

// Package mqtt provides a publish-only MQTT client for PMFlow Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS validation and size limits
//   - Last Will and Testament (LWT) so consumers see an unexpected exit
//   - Connection health monitoring
//
// # Architecture
//
// Core publishes domain events (project, task and user changes, logins and
// logouts) to the broker. Downstream consumers such as notification or
// reporting services subscribe without Core knowing about them.
//
//	PMFlow Core → MQTT Broker → consumers
//
// # Security Considerations
//
//   - Use TLS outside development (cfg.Broker.TLS=true)
//   - Payloads never carry tokens, password hashes or secrets
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if errors.Is(err, mqtt.ErrDisabled) {
//	    // run without events
//	}
//	defer client.Close()
//
//	topic := client.Topics().Event("project", "created")
//	client.Publish(ctx, topic, payload, client.QoS())
package mqtt

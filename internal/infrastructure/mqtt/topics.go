package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when config leaves topic_prefix empty.
const DefaultTopicPrefix = "pmflow"

// Topics builds topic names under a common prefix.
//
//	t := mqtt.NewTopics("pmflow")
//	t.Event("task", "assigned") // "pmflow/events/task/assigned"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for prefix. Surrounding slashes are trimmed.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root segment.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus is where online/offline status is published.
//
// Example: pmflow/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// Event returns the topic for one kind of domain event.
//
// Example: pmflow/events/project/created
func (t Topics) Event(entity, action string) string {
	return fmt.Sprintf("%s/events/%s/%s", t.Prefix(), entity, action)
}

// AllEvents is the wildcard subscription covering every event.
//
// Example: pmflow/events/#
func (t Topics) AllEvents() string {
	return t.Prefix() + "/events/#"
}

// ValidatePublishTopic rejects empty topics and topics containing wildcards
// or empty levels, none of which may be published to.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in %q", ErrInvalidTopic, topic)
	}
	for _, level := range strings.Split(topic, "/") {
		if level == "" {
			return fmt.Errorf("%w: empty level in %q", ErrInvalidTopic, topic)
		}
	}
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/mqtt"
)

// QueueSize is the default number of events buffered for publishing.
const QueueSize = 512

// Entity names used in topics.
const (
	EntityUser    = "user"
	EntityProject = "project"
	EntityTask    = "task"
	EntitySession = "session"
)

// Transport is the message bus. *mqtt.Client satisfies it.
type Transport interface {
	Publish(ctx context.Context, topic string, payload []byte, qos byte) error
}

// Envelope is the JSON body of every event.
type Envelope struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Entity    string         `json:"entity"`
	Action    string         `json:"action"`
	EntityID  string         `json:"entity_id,omitempty"`
	ActorID   string         `json:"actor_id,omitempty"`
	Site      string         `json:"site,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type outbound struct {
	topic   string
	payload []byte
}

// Publisher queues envelopes and publishes them from one goroutine.
//
// Thread Safety:
//   - Emit and RecordAuthEvent are safe for concurrent use.
//   - Run must be started exactly once.
type Publisher struct {
	transport Transport
	topics    mqtt.Topics
	qos       byte
	site      string
	queue     chan outbound
	logger    *slog.Logger
	now       func() time.Time
}

// Options configures a Publisher.
type Options struct {
	Topics mqtt.Topics
	QoS    byte
	// Site is stamped on every envelope.
	Site      string
	QueueSize int
	Logger    *slog.Logger
}

// NewPublisher creates a publisher over transport.
func NewPublisher(transport Transport, opts Options) *Publisher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = QueueSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		transport: transport,
		topics:    opts.Topics,
		qos:       opts.QoS,
		site:      opts.Site,
		queue:     make(chan outbound, opts.QueueSize),
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// Emit queues one event. A nil Publisher discards it, so callers need not
// check whether events are enabled.
func (p *Publisher) Emit(entity, action, entityID, actorID string, data map[string]any) {
	if p == nil {
		return
	}

	env := Envelope{
		ID:        uuid.NewString(),
		Type:      entity + "." + action,
		Entity:    entity,
		Action:    action,
		EntityID:  entityID,
		ActorID:   actorID,
		Site:      p.site,
		Data:      data,
		Timestamp: p.now().UTC(),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		p.logger.Error("encoding event", "type", env.Type, "error", err)
		return
	}

	select {
	case p.queue <- outbound{topic: p.topics.Event(entity, action), payload: payload}:
	default:
		p.logger.Warn("event queue full, dropping event", "type", env.Type)
	}
}

// RecordAuthEvent implements auth.EventRecorder for the session events that
// downstream consumers care about. Failures and rejections are not published.
func (p *Publisher) RecordAuthEvent(_ context.Context, ev auth.Event) {
	var entity, action string
	switch ev.Type {
	case auth.EventLoginSucceeded:
		entity, action = EntitySession, "login"
	case auth.EventLogout:
		entity, action = EntitySession, "logout"
	case auth.EventRegistered:
		entity, action = EntityUser, "registered"
	default:
		return
	}
	p.Emit(entity, action, ev.UserID, ev.UserID, map[string]any{
		"username": ev.Username,
		"role":     string(ev.Role),
	})
}

// Run publishes queued events until ctx is cancelled, then drains the queue.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case msg := <-p.queue:
			p.send(ctx, msg)
		case <-ctx.Done():
			// The run context is gone; the drain still gets a bounded
			// wait per message.
			for {
				select {
				case msg := <-p.queue:
					p.send(context.WithoutCancel(ctx), msg)
				default:
					return
				}
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, msg outbound) {
	if err := p.transport.Publish(ctx, msg.topic, msg.payload, p.qos); err != nil {
		p.logger.Warn("event publish failed", "topic", msg.topic, "error", err)
	}
}

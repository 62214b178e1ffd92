package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/pmflow-core/internal/auth"
	"github.com/nerrad567/pmflow-core/internal/infrastructure/mqtt"
)

type published struct {
	topic   string
	payload []byte
	qos     byte
}

// fakeTransport records publishes.
type fakeTransport struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakeTransport) Publish(_ context.Context, topic string, payload []byte, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic: topic, payload: payload, qos: qos})
	return nil
}

func drain(p *Publisher) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)
}

func TestEmit(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPublisher(tr, Options{Topics: mqtt.NewTopics("pmflow"), QoS: 1, Site: "hq"})
	p.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }

	p.Emit(EntityProject, "created", "prj-1", "root", map[string]any{"name": "Apollo"})
	drain(p)

	if len(tr.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(tr.msgs))
	}
	msg := tr.msgs[0]
	if msg.topic != "pmflow/events/project/created" || msg.qos != 1 {
		t.Errorf("topic/qos = %s/%d", msg.topic, msg.qos)
	}

	var env Envelope
	if err := json.Unmarshal(msg.payload, &env); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if env.Type != "project.created" || env.EntityID != "prj-1" || env.ActorID != "root" || env.Site != "hq" {
		t.Errorf("envelope = %+v", env)
	}
	if env.Data["name"] != "Apollo" || env.ID == "" {
		t.Errorf("envelope data/id = %v / %q", env.Data, env.ID)
	}
}

func TestEmit_NilPublisher(t *testing.T) {
	var p *Publisher
	p.Emit(EntityTask, "deleted", "tsk-1", "bob", nil)
}

func TestEmit_DropsWhenFull(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPublisher(tr, Options{QueueSize: 1})

	p.Emit(EntityTask, "created", "tsk-1", "bob", nil)
	p.Emit(EntityTask, "created", "tsk-2", "bob", nil)
	drain(p)

	if len(tr.msgs) != 1 {
		t.Errorf("published %d messages, want 1", len(tr.msgs))
	}
}

func TestRun_TransportErrorsAreLogged(t *testing.T) {
	tr := &fakeTransport{err: mqtt.ErrNotConnected}
	p := NewPublisher(tr, Options{})

	p.Emit(EntityUser, "updated", "usr-1", "usr-1", nil)
	drain(p)

	if !errors.Is(tr.err, mqtt.ErrNotConnected) || len(tr.msgs) != 0 {
		t.Error("failed publish should be dropped")
	}
}

func TestRecordAuthEvent(t *testing.T) {
	tr := &fakeTransport{}
	p := NewPublisher(tr, Options{Topics: mqtt.NewTopics("pmflow")})
	ctx := context.Background()

	p.RecordAuthEvent(ctx, auth.Event{Type: auth.EventLoginSucceeded, UserID: "usr-1", Username: "alice", Role: auth.RoleMember})
	p.RecordAuthEvent(ctx, auth.Event{Type: auth.EventLoginFailed, Username: "alice"})
	p.RecordAuthEvent(ctx, auth.Event{Type: auth.EventLogout, UserID: "usr-1"})
	p.RecordAuthEvent(ctx, auth.Event{Type: auth.EventRegistered, UserID: "usr-2"})
	drain(p)

	want := []string{
		"pmflow/events/session/login",
		"pmflow/events/session/logout",
		"pmflow/events/user/registered",
	}
	if len(tr.msgs) != len(want) {
		t.Fatalf("published %d messages, want %d", len(tr.msgs), len(want))
	}
	for i, topic := range want {
		if tr.msgs[i].topic != topic {
			t.Errorf("msg[%d] topic = %s, want %s", i, tr.msgs[i].topic, topic)
		}
	}
}

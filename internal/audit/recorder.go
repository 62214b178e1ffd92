package audit

import (
	"context"
	"log/slog"

	"github.com/nerrad567/pmflow-core/internal/auth"
)

// QueueSize is the default buffer of a Recorder.
const QueueSize = 256

// Source values written with each entry.
const (
	SourceAPI  = "api"
	SourceAuth = "auth"
)

// Recorder queues entries for a single writer goroutine.
//
// Thread Safety:
//   - Record and RecordAuthEvent are safe for concurrent use.
//   - Run must be started exactly once.
type Recorder struct {
	repo   Repository
	queue  chan *Entry
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to repo. A non-positive size uses
// QueueSize.
func NewRecorder(repo Repository, size int, logger *slog.Logger) *Recorder {
	if size <= 0 {
		size = QueueSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{repo: repo, queue: make(chan *Entry, size), logger: logger}
}

// Record enqueues e without blocking. A full queue drops e.
func (r *Recorder) Record(e *Entry) {
	if r == nil {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("audit queue full, dropping entry",
			"action", e.Action,
			"entity_type", e.EntityType,
		)
	}
}

// Log is shorthand for recording an API action.
func (r *Recorder) Log(action, entityType, entityID, userID string, details map[string]any) {
	r.Record(&Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		UserID:     userID,
		Source:     SourceAPI,
		Details:    details,
	})
}

// RecordAuthEvent implements auth.EventRecorder. Rejected tokens are not
// audited; they are counted in metrics instead.
func (r *Recorder) RecordAuthEvent(_ context.Context, ev auth.Event) {
	if ev.Type == auth.EventTokenRejected {
		return
	}

	details := map[string]any{}
	if ev.Username != "" {
		details["username"] = ev.Username
	}
	if ev.Role != "" {
		details["role"] = string(ev.Role)
	}
	if ev.Reason != "" {
		details["reason"] = ev.Reason
	}
	if ev.Operation != "" {
		details["operation"] = string(ev.Operation)
	}

	r.Record(&Entry{
		Action:     string(ev.Type),
		EntityType: "session",
		UserID:     ev.UserID,
		Source:     SourceAuth,
		Details:    details,
		CreatedAt:  ev.At,
	})
}

// Run writes queued entries until ctx is cancelled, then flushes what is
// left in the queue.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-ctx.Done():
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e *Entry) {
	// Detached from the request context: the request is usually done by now.
	if err := r.repo.Create(context.Background(), e); err != nil {
		r.logger.Error("audit log write failed",
			"action", e.Action,
			"entity_type", e.EntityType,
			"error", err,
		)
	}
}

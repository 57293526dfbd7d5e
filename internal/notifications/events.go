package notifications

import (
	"context"
	"log/slog"
	"time"

	"agora/internal/middleware"
	"agora/internal/observability"
)

// EventType names an engagement mutation.
type EventType string

const (
	EventPostLiked      EventType = "post_liked"
	EventPostUnliked    EventType = "post_unliked"
	EventPostShared     EventType = "post_shared"
	EventCommentCreated EventType = "comment_created"
	EventCommentLiked   EventType = "comment_liked"
	EventCommentUnliked EventType = "comment_unliked"
)

// Event is published after an engagement mutation commits. Count carries the
// counter value the mutation left behind.
type Event struct {
	Type       EventType `json:"type"`
	PostID     uint      `json:"post_id"`
	CommentID  uint      `json:"comment_id,omitempty"`
	ActorID    uint      `json:"actor_id,omitempty"`
	Count      int64     `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, ev Event) error
}

// Dispatcher fans an event out to every configured sink. Delivery is best
// effort: a failing sink is logged and counted, never surfaced to the caller,
// because the mutation it describes has already committed.
type Dispatcher struct {
	sinks []Sink
}

// NewDispatcher returns a Dispatcher over the non-nil sinks.
func NewDispatcher(sinks ...Sink) *Dispatcher {
	d := &Dispatcher{}
	for _, s := range sinks {
		if s != nil {
			d.sinks = append(d.sinks, s)
		}
	}
	return d
}

// Publish stamps the event and hands it to each sink in order.
func (d *Dispatcher) Publish(ctx context.Context, ev Event) {
	if d == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	observability.EngagementEvents.WithLabelValues(string(ev.Type)).Inc()

	for _, s := range d.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			observability.EventPublishErrors.WithLabelValues(s.Name()).Inc()
			middleware.Logger.WarnContext(ctx, "event publish failed",
				slog.String("sink", s.Name()),
				slog.String("event", string(ev.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Sinks returns the names of the configured sinks.
func (d *Dispatcher) Sinks() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

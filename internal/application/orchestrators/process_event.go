package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fitclub/internal/domain/event"
)

// ErrUnknownEventType is returned for event types the server does not route.
var ErrUnknownEventType = errors.New("unknown event type")

// EventHandler applies the side effects of one event type.
type EventHandler func(ctx context.Context, evt event.Event) error

// EventDeduper guards side-effecting handlers against redelivered events.
type EventDeduper interface {
	Guard(ctx context.Context, eventID, eventType string, action func(context.Context) error) (bool, error)
}

// EventPublisher fans a processed event out to in-process subscribers.
type EventPublisher interface {
	Publish(evt event.Event)
}

// ProcessEventDeps holds dependencies for ProcessEvent.
type ProcessEventDeps struct {
	Dedup     EventDeduper
	Handlers  map[string]EventHandler
	Publisher EventPublisher
}

// ExecuteProcessEvent routes one inbound realtime event through the dedup
// guard. The handler and the fan-out run at most once per event ID within
// the dedup window; a redelivered duplicate is acknowledged without
// side effects. Handler failures leave the ID unmarked so the client's
// resend acts as the retry.
//
// PRE: evt.Type is non-empty
// POST: Returns nil for both a fresh processed event and a suppressed
// duplicate; the caller acks either way
func ExecuteProcessEvent(ctx context.Context, evt event.Event, deps ProcessEventDeps) error {
	if err := evt.Validate(); err != nil {
		return err
	}
	evt.EnsureID(time.Now())

	handler, ok := deps.Handlers[evt.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, evt.Type)
	}

	ran, err := deps.Dedup.Guard(ctx, evt.ID, evt.Type, func(ctx context.Context) error {
		if err := handler(ctx, evt); err != nil {
			return err
		}
		if deps.Publisher != nil {
			deps.Publisher.Publish(evt)
		}
		return nil
	})
	if err != nil {
		slog.Error("event_failed", "type", evt.Type, "event_id", evt.ID, "error", err)
		return err
	}
	if !ran {
		slog.Debug("event_duplicate_suppressed", "type", evt.Type, "event_id", evt.ID)
	}
	return nil
}

package realtime

import (
	"log/slog"

	evbus "github.com/asaskevich/EventBus"

	"fitclub/internal/domain/event"
)

// Bus fans processed events out to in-process subscribers keyed by event
// type. Handlers run synchronously on the publisher's goroutine so that a
// publish returns only after every subscriber has seen the event.
type Bus struct {
	bus evbus.Bus
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{bus: evbus.New()}
}

// Subscribe registers a handler for one event type.
// PRE: eventType is non-empty
// POST: fn is invoked for every subsequent Publish of that type
func (b *Bus) Subscribe(eventType string, fn func(event.Event)) error {
	return b.bus.Subscribe(eventType, fn)
}

// Unsubscribe removes a previously registered handler.
func (b *Bus) Unsubscribe(eventType string, fn func(event.Event)) error {
	return b.bus.Unsubscribe(eventType, fn)
}

// Publish delivers the event to all subscribers of its type.
// PRE: evt has been validated
// POST: Every subscriber has run
func (b *Bus) Publish(evt event.Event) {
	slog.Debug("bus_publish", "type", evt.Type, "event_id", evt.ID, "lobby_id", evt.LobbyID)
	b.bus.Publish(evt.Type, evt)
}

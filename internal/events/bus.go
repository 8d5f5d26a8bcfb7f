package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers
// Usage: bus.Publish(RunCompletedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event dispatches on the static type, so switch to it
	switch e := ev.(type) {
	case RunStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case FormatChangedEvent:
		event.Publish(b.dispatcher, e)
	case RunCompletedEvent:
		event.Publish(b.dispatcher, e)
	case JobsReloadedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function; unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e RunCompletedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RunStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FormatChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JobsReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

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
// Usage: bus.Publish(TaskDoneEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case RunStateEvent:
		event.Publish(b.dispatcher, e)
	case TaskStartedEvent:
		event.Publish(b.dispatcher, e)
	case TaskPhaseEvent:
		event.Publish(b.dispatcher, e)
	case TaskDoneEvent:
		event.Publish(b.dispatcher, e)
	case ProgressEvent:
		event.Publish(b.dispatcher, e)
	case RunLogEvent:
		event.Publish(b.dispatcher, e)
	case DecisionRequestedEvent:
		event.Publish(b.dispatcher, e)
	case EncodeStatsEvent:
		event.Publish(b.dispatcher, e)
	case RunFinishedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	case RunStatusEvent:
		event.Publish(b.dispatcher, e)
	case RunEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function
// The handler type determines which events it receives
// Returns an unsubscribe function
// Usage: unsub := bus.Subscribe(func(e TaskDoneEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(RunStateEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TaskStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TaskPhaseEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TaskDoneEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProgressEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunLogEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DecisionRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncodeStatsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunStatusEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RunEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		// Return a no-op function if handler type is not recognized
		return func() {}
	}
}

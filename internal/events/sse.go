package events

import (
	"sync/atomic"

	"github.com/kelindar/event"

	"github.com/smazurov/av1forge/internal/logging"
)

// SubscribeToChannel forwards events of type T from the bus into ch for the
// channel-based select loops of the SSE handlers. Events are dropped while
// ch is full; the first drop of a subscription is logged.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	var warned atomic.Bool
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
			if warned.CompareAndSwap(false, true) {
				logging.GetLogger("events").Warn("Slow subscriber, dropping events",
					"type", e.Type(), "buffer", cap(ch))
			}
		}
	})
}

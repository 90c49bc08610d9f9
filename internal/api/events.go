package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/smazurov/av1forge/internal/events"
	"github.com/smazurov/av1forge/internal/metrics/exporters"
)

// registerSSERoutes registers the run event stream.
func (s *Server) registerSSERoutes() {
	if s.eventBus == nil {
		return
	}

	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Run Event Stream",
		Description: "Real-time run events in worker order: state changes, task progress, logs, crash prompts and the final summary",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, exporters.GetEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 256)

		// Run events arrive in one envelope subscription to keep worker
		// order across event types; status heartbeats are unordered.
		unsubscribers := []func(){
			events.SubscribeToChannel[events.RunEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RunStatusEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Current state first so a late client can render immediately
		if s.options.Run != nil {
			if err := send.Data(exporters.StatusEvent(s.options.Run.Status())); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if env, ok := event.(events.RunEvent); ok {
					event = env.Event
				}
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

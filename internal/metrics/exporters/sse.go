package exporters

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/av1forge/internal/events"
	"github.com/smazurov/av1forge/internal/metrics"
	"github.com/smazurov/av1forge/internal/runner"
)

// EventPublisher interface for publishing events.
type EventPublisher interface {
	Publish(ev events.Event)
}

// StatusSource reports the current run.
type StatusSource interface {
	Status() runner.Status
}

// SSEExporter publishes a run status snapshot on a fixed interval while a
// run is active.
type SSEExporter struct {
	eventBus EventPublisher
	source   StatusSource
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSSEExporter creates a new SSE exporter.
func NewSSEExporter(eventBus EventPublisher, source StatusSource) *SSEExporter {
	return &SSEExporter{
		eventBus: eventBus,
		source:   source,
		interval: 1 * time.Second,
	}
}

// Start begins the SSE export loop.
func (s *SSEExporter) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.run()
}

// Stop stops the SSE exporter and waits for the goroutine to finish.
func (s *SSEExporter) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *SSEExporter) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.publishStatus()
		}
	}
}

func (s *SSEExporter) publishStatus() {
	st := s.source.Status()
	if st.State == runner.StateIdle {
		return
	}
	ev := StatusEvent(st)
	if enc := metrics.GetEncodeStats(); enc != nil && st.Phase == runner.PhaseEncoding {
		ev.FPS = enc.FPS
		ev.Speed = enc.Speed
	}
	s.eventBus.Publish(ev)
}

// StatusEvent converts a runner status into its event form.
func StatusEvent(st runner.Status) events.RunStatusEvent {
	return events.RunStatusEvent{
		RunID:            st.RunID,
		State:            string(st.State),
		TaskIndex:        st.TaskIndex,
		TaskTotal:        st.TaskTotal,
		CurrentFile:      st.CurrentFile,
		Phase:            string(st.Phase),
		ProgressTotal:    st.ProgressTotal,
		ProgressCurrent:  st.ProgressCurrent,
		AwaitingDecision: st.AwaitingDecision,
	}
}

// GetEventTypes returns event types for SSE endpoint registration.
func GetEventTypes() map[string]any {
	return map[string]any{
		"run-state":          events.RunStateEvent{},
		"run-status":         events.RunStatusEvent{},
		"task-started":       events.TaskStartedEvent{},
		"task-phase":         events.TaskPhaseEvent{},
		"task-done":          events.TaskDoneEvent{},
		"progress":           events.ProgressEvent{},
		"run-log":            events.RunLogEvent{},
		"decision-requested": events.DecisionRequestedEvent{},
		"encode-stats":       events.EncodeStatsEvent{},
		"run-finished":       events.RunFinishedEvent{},
	}
}

package exporters

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/av1forge/internal/events"
	"github.com/smazurov/av1forge/internal/metrics"
	"github.com/smazurov/av1forge/internal/runner"
)

type mockEventBus struct {
	mu        sync.Mutex
	events    []events.Event
	published chan struct{}
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events:    make([]events.Event, 0),
		published: make(chan struct{}, 100),
	}
}

func (m *mockEventBus) Publish(ev events.Event) {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	select {
	case m.published <- struct{}{}:
	default:
	}
}

func (m *mockEventBus) getEvents() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

type staticStatus struct {
	mu     sync.Mutex
	status runner.Status
}

func (s *staticStatus) Status() runner.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func TestSSEExporterPublishesStatus(t *testing.T) {
	metrics.SetEncodeStats(metrics.EncodeStats{FPS: 48.5, Speed: 1.9})
	defer metrics.ResetEncodeStats()

	mock := newMockEventBus()
	source := &staticStatus{status: runner.Status{
		RunID:           "run-1",
		State:           runner.StateRunning,
		TaskIndex:       1,
		TaskTotal:       4,
		Phase:           runner.PhaseEncoding,
		ProgressCurrent: 37,
	}}
	exporter := NewSSEExporter(mock, source)
	exporter.interval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	exporter.Start(ctx)

	select {
	case <-mock.published:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for status publish")
	}

	cancel()
	exporter.Stop()

	evts := mock.getEvents()
	if len(evts) == 0 {
		t.Fatal("expected at least one event")
	}
	ev, ok := evts[0].(events.RunStatusEvent)
	if !ok {
		t.Fatalf("expected RunStatusEvent, got %T", evts[0])
	}
	if ev.RunID != "run-1" || ev.Phase != "encoding" || ev.ProgressCurrent != 37 {
		t.Errorf("event = %+v", ev)
	}
	if ev.FPS != 48.5 || ev.Speed != 1.9 {
		t.Errorf("encode stats not attached: fps=%v speed=%v", ev.FPS, ev.Speed)
	}
}

func TestSSEExporterSilentWhenIdle(t *testing.T) {
	mock := newMockEventBus()
	exporter := NewSSEExporter(mock, &staticStatus{status: runner.Status{State: runner.StateIdle}})
	exporter.interval = 10 * time.Millisecond

	exporter.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	exporter.Stop()

	if n := len(mock.getEvents()); n != 0 {
		t.Errorf("published %d events while idle", n)
	}
}

func TestSSEExporterStopWithoutStart(_ *testing.T) {
	exporter := NewSSEExporter(newMockEventBus(), &staticStatus{})
	exporter.Stop()
}

func TestGetEventTypes(t *testing.T) {
	types := GetEventTypes()
	for _, name := range []string{"run-log", "task-done", "run-finished", "decision-requested"} {
		if _, ok := types[name]; !ok {
			t.Errorf("missing event type %q", name)
		}
	}
}

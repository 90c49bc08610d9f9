package runner

import (
	"sync"
	"time"

	"github.com/smazurov/av1forge/internal/ffmpeg"
	"github.com/smazurov/av1forge/internal/job"
)

// Severity tags a log event.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Observer receives run events in the order the worker produced them. All
// calls come from a single goroutine; implementations must not block for
// long since the worker waits once the queue is full.
type Observer interface {
	OnLog(message string, severity Severity)
	OnProgressTotal(percent float64)
	OnProgressCurrent(percent float64)
	// OnErrorDecisionRequested announces a crash escalation. The answer is
	// given through Runner.SupplyDecision; without one, DecisionContinue
	// applies after timeout.
	OnErrorDecisionRequested(title, message string, timeout time.Duration)
	// OnRunFinished is the last event of every run.
	OnRunFinished(summary Summary)
}

// TaskObserver is an optional extension for per-task detail.
type TaskObserver interface {
	OnTaskStarted(index, total int, task job.MediaTask)
	OnTaskPhase(index int, phase Phase)
	OnEncodeStats(index int, stats ffmpeg.Snapshot)
	OnTaskDone(report job.TaskReport)
}

// StateObserver is an optional extension notified when Pause or Resume
// changes the run state.
type StateObserver interface {
	OnStateChanged(state State)
}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnLog(message string, severity Severity) {
	for _, o := range m {
		o.OnLog(message, severity)
	}
}

func (m MultiObserver) OnProgressTotal(percent float64) {
	for _, o := range m {
		o.OnProgressTotal(percent)
	}
}

func (m MultiObserver) OnProgressCurrent(percent float64) {
	for _, o := range m {
		o.OnProgressCurrent(percent)
	}
}

func (m MultiObserver) OnErrorDecisionRequested(title, message string, timeout time.Duration) {
	for _, o := range m {
		o.OnErrorDecisionRequested(title, message, timeout)
	}
}

func (m MultiObserver) OnRunFinished(summary Summary) {
	for _, o := range m {
		o.OnRunFinished(summary)
	}
}

func (m MultiObserver) OnStateChanged(state State) {
	for _, o := range m {
		if s, ok := o.(StateObserver); ok {
			s.OnStateChanged(state)
		}
	}
}

func (m MultiObserver) OnTaskStarted(index, total int, task job.MediaTask) {
	for _, o := range m {
		if t, ok := o.(TaskObserver); ok {
			t.OnTaskStarted(index, total, task)
		}
	}
}

func (m MultiObserver) OnTaskPhase(index int, phase Phase) {
	for _, o := range m {
		if t, ok := o.(TaskObserver); ok {
			t.OnTaskPhase(index, phase)
		}
	}
}

func (m MultiObserver) OnEncodeStats(index int, stats ffmpeg.Snapshot) {
	for _, o := range m {
		if t, ok := o.(TaskObserver); ok {
			t.OnEncodeStats(index, stats)
		}
	}
}

func (m MultiObserver) OnTaskDone(report job.TaskReport) {
	for _, o := range m {
		if t, ok := o.(TaskObserver); ok {
			t.OnTaskDone(report)
		}
	}
}

// emitterQueue bounds how far the worker may run ahead of the observer.
const emitterQueue = 1024

// emitter delivers events to the observer from one goroutine, preserving
// the order in which the worker queued them.
type emitter struct {
	observer Observer
	tasks    TaskObserver  // nil when the observer has no task extension
	states   StateObserver // nil when the observer has no state extension
	queue    chan func()
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newEmitter(o Observer) *emitter {
	e := &emitter{
		observer: o,
		queue:    make(chan func(), emitterQueue),
		done:     make(chan struct{}),
	}
	e.tasks, _ = o.(TaskObserver)
	e.states, _ = o.(StateObserver)
	go e.loop()
	return e
}

func (e *emitter) loop() {
	defer close(e.done)
	for fn := range e.queue {
		fn()
	}
}

// send queues fn. Events sent after close are dropped.
func (e *emitter) send(fn func()) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	e.queue <- fn
}

// close drains the queue and waits for delivery to finish.
func (e *emitter) close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()
	<-e.done
}

func (e *emitter) log(message string, severity Severity) {
	e.send(func() { e.observer.OnLog(message, severity) })
}

func (e *emitter) progressTotal(percent float64) {
	e.send(func() { e.observer.OnProgressTotal(percent) })
}

func (e *emitter) progressCurrent(percent float64) {
	e.send(func() { e.observer.OnProgressCurrent(percent) })
}

func (e *emitter) decisionRequested(title, message string, timeout time.Duration) {
	e.send(func() { e.observer.OnErrorDecisionRequested(title, message, timeout) })
}

func (e *emitter) runFinished(summary Summary) {
	e.send(func() { e.observer.OnRunFinished(summary) })
}

func (e *emitter) stateChanged(state State) {
	if e.states != nil {
		e.send(func() { e.states.OnStateChanged(state) })
	}
}

func (e *emitter) taskStarted(index, total int, task job.MediaTask) {
	if e.tasks != nil {
		e.send(func() { e.tasks.OnTaskStarted(index, total, task) })
	}
}

func (e *emitter) taskPhase(index int, phase Phase) {
	if e.tasks != nil {
		e.send(func() { e.tasks.OnTaskPhase(index, phase) })
	}
}

func (e *emitter) encodeStats(index int, stats ffmpeg.Snapshot) {
	if e.tasks != nil {
		e.send(func() { e.tasks.OnEncodeStats(index, stats) })
	}
}

func (e *emitter) taskDone(report job.TaskReport) {
	if e.tasks != nil {
		e.send(func() { e.tasks.OnTaskDone(report) })
	}
}

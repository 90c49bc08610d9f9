package events

import (
	"sync/atomic"
	"time"

	"github.com/smazurov/av1forge/internal/ffmpeg"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/runner"
)

// Observer publishes runner events on the bus. It implements
// runner.Observer, runner.TaskObserver and runner.StateObserver.
type Observer struct {
	bus   *Bus
	runID func() string
	seq   atomic.Uint64
	now   func() time.Time
}

// NewObserver creates a bus observer. runID supplies the identifier of the
// active run and may be nil.
func NewObserver(bus *Bus, runID func() string) *Observer {
	if runID == nil {
		runID = func() string { return "" }
	}
	return &Observer{bus: bus, runID: runID, now: time.Now}
}

// publish numbers ev and sends it both on its own type and inside a
// RunEvent envelope. Observer methods run on the runner's single emitter
// goroutine, so numbering follows worker order.
func (o *Observer) publish(ev Event) {
	seq := o.seq.Add(1)
	if l, ok := ev.(RunLogEvent); ok {
		l.Seq = seq
		ev = l
	}
	o.bus.Publish(ev)
	o.bus.Publish(RunEvent{Seq: seq, Event: ev})
}

func (o *Observer) timestamp() string {
	return o.now().UTC().Format(time.RFC3339Nano)
}

// OnLog publishes a RunLogEvent.
func (o *Observer) OnLog(message string, severity runner.Severity) {
	o.publish(RunLogEvent{
		RunID:     o.runID(),
		Severity:  string(severity),
		Message:   message,
		Timestamp: o.timestamp(),
	})
}

// OnStateChanged publishes a RunStateEvent for pause and resume.
func (o *Observer) OnStateChanged(state runner.State) {
	o.publish(RunStateEvent{RunID: o.runID(), State: string(state), Timestamp: o.timestamp()})
}

func (o *Observer) OnProgressTotal(percent float64) {
	o.publish(ProgressEvent{RunID: o.runID(), Scope: ScopeTotal, Percent: percent})
}

func (o *Observer) OnProgressCurrent(percent float64) {
	o.publish(ProgressEvent{RunID: o.runID(), Scope: ScopeCurrent, Percent: percent})
}

func (o *Observer) OnErrorDecisionRequested(title, message string, timeout time.Duration) {
	o.publish(DecisionRequestedEvent{
		RunID:          o.runID(),
		Title:          title,
		Message:        message,
		TimeoutSeconds: timeout.Seconds(),
		Deadline:       o.now().Add(timeout).UTC().Format(time.RFC3339),
	})
}

func (o *Observer) OnRunFinished(s runner.Summary) {
	ev := RunFinishedEvent{
		RunID:          s.RunID,
		State:          string(s.State),
		Total:          s.Total,
		Committed:      s.Committed,
		Skipped:        s.Skipped,
		Crashed:        s.Crashed,
		Failed:         s.Failed,
		BytesSaved:     s.BytesSaved,
		ElapsedSeconds: s.Elapsed.Seconds(),
		Timestamp:      o.timestamp(),
	}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}
	o.publish(RunStateEvent{RunID: s.RunID, State: string(s.State), Timestamp: ev.Timestamp})
	o.publish(ev)
}

func (o *Observer) OnTaskStarted(index, total int, task job.MediaTask) {
	if index == 0 {
		o.publish(RunStateEvent{RunID: o.runID(), State: string(runner.StateRunning), Timestamp: o.timestamp()})
	}
	o.publish(TaskStartedEvent{
		RunID:     o.runID(),
		Index:     index,
		Total:     total,
		Path:      task.SourcePath,
		Timestamp: o.timestamp(),
	})
}

func (o *Observer) OnTaskPhase(index int, phase runner.Phase) {
	o.publish(TaskPhaseEvent{RunID: o.runID(), Index: index, Phase: string(phase)})
}

func (o *Observer) OnEncodeStats(index int, s ffmpeg.Snapshot) {
	o.publish(EncodeStatsEvent{
		RunID:   o.runID(),
		Index:   index,
		Frame:   s.Frame,
		FPS:     s.FPS,
		Speed:   s.Speed,
		OutTime: s.OutTime,
	})
}

func (o *Observer) OnTaskDone(r job.TaskReport) {
	ev := TaskDoneEvent{
		RunID:           o.runID(),
		Index:           r.Index,
		Path:            r.Task.SourcePath,
		Outcome:         string(r.Outcome),
		Destination:     r.Destination,
		QP:              r.QP,
		VMAF:            r.Score,
		DurationSeconds: r.Duration.Seconds(),
		InputBytes:      r.InputBytes,
		OutputBytes:     r.OutputBytes,
	}
	if r.Err != nil {
		ev.Error = r.Err.Error()
	}
	o.publish(ev)
}

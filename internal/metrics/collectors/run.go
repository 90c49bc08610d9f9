// Package collectors feeds run events from the bus into metrics.
package collectors

import (
	"context"
	"log/slog"
	"sync"

	"github.com/smazurov/av1forge/internal/events"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/metrics"
)

// Subscriber is the part of the event bus the collector needs.
type Subscriber interface {
	Subscribe(handler any) func()
}

// RunCollector updates the run, task and encode metrics from bus events.
type RunCollector struct {
	logger   *slog.Logger
	bus      Subscriber
	unsubs   []func()
	stopOnce sync.Once
}

// NewRunCollector creates a collector reading from bus.
func NewRunCollector(bus Subscriber) *RunCollector {
	return &RunCollector{
		logger: slog.With("component", "run_collector"),
		bus:    bus,
	}
}

// Start subscribes to the bus. The subscriptions end on Stop or when ctx
// is done.
func (c *RunCollector) Start(ctx context.Context) error {
	c.unsubs = append(c.unsubs,
		c.bus.Subscribe(c.onRunState),
		c.bus.Subscribe(c.onProgress),
		c.bus.Subscribe(c.onEncodeStats),
		c.bus.Subscribe(c.onTaskPhase),
		c.bus.Subscribe(c.onTaskDone),
		c.bus.Subscribe(c.onDecision),
		c.bus.Subscribe(c.onRunFinished),
	)
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	c.logger.Debug("Run collector started")
	return nil
}

// Stop removes the subscriptions.
func (c *RunCollector) Stop() {
	c.stopOnce.Do(func() {
		for _, unsub := range c.unsubs {
			unsub()
		}
	})
}

func (c *RunCollector) onRunState(e events.RunStateEvent) {
	metrics.SetRunState(e.State)
}

func (c *RunCollector) onProgress(e events.ProgressEvent) {
	metrics.SetProgress(e.Scope, e.Percent)
}

func (c *RunCollector) onEncodeStats(e events.EncodeStatsEvent) {
	metrics.SetEncodeStats(metrics.EncodeStats{
		Index:  e.Index,
		Frames: e.Frame,
		FPS:    e.FPS,
		Speed:  e.Speed,
	})
}

func (c *RunCollector) onTaskPhase(e events.TaskPhaseEvent) {
	if e.Phase == "done" {
		metrics.ResetEncodeStats()
	}
}

func (c *RunCollector) onTaskDone(e events.TaskDoneEvent) {
	saved := int64(0)
	if e.InputBytes > 0 && e.OutputBytes > 0 {
		saved = e.InputBytes - e.OutputBytes
	}
	metrics.ObserveTask(e.Outcome, e.DurationSeconds, saved)
	metrics.SetDecisionPending(false)
	if e.Outcome == string(job.OutcomeCommitted) {
		metrics.SetSearchResult(e.QP, e.VMAF)
	}
}

func (c *RunCollector) onDecision(events.DecisionRequestedEvent) {
	metrics.SetDecisionPending(true)
}

func (c *RunCollector) onRunFinished(e events.RunFinishedEvent) {
	metrics.ResetEncodeStats()
	metrics.ObserveRunFinished(e.State)
}

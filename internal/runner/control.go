package runner

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Decision answers a crash escalation.
type Decision string

const (
	// DecisionContinue skips the crashed task and moves on.
	DecisionContinue Decision = "continue"
	// DecisionStop ends the run.
	DecisionStop Decision = "stop"
)

// ParseDecision accepts continue/skip and stop.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "continue", "skip", "c":
		return DecisionContinue, nil
	case "stop", "s":
		return DecisionStop, nil
	default:
		return "", errors.New("decision must be continue or stop")
	}
}

// Control errors.
var (
	ErrNoPendingDecision = errors.New("no decision is pending")
	ErrDecisionSupplied  = errors.New("decision already supplied")
)

// Control carries the run flags between the controller and the worker.
// Pausing closes a gate the worker waits on between reads; the decision
// slot is a one-shot channel created for each escalation.
type Control struct {
	mu      sync.Mutex
	gate    chan struct{} // non-nil while paused; closed on resume
	pending chan Decision
	cancel  context.CancelFunc
}

func newControl(cancel context.CancelFunc) *Control {
	return &Control{cancel: cancel}
}

// Pause closes the gate. It reports false if already paused.
func (c *Control) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate != nil {
		return false
	}
	c.gate = make(chan struct{})
	return true
}

// Resume opens the gate. It reports false if not paused.
func (c *Control) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gate == nil {
		return false
	}
	close(c.gate)
	c.gate = nil
	return true
}

// Paused reports whether the gate is closed.
func (c *Control) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gate != nil
}

// Cancel ends the run context. Safe to call repeatedly.
func (c *Control) Cancel() {
	c.cancel()
}

// WaitIfPaused blocks while paused. It returns ctx.Err() if the run is
// cancelled while waiting.
func (c *Control) WaitIfPaused(ctx context.Context) error {
	for {
		c.mu.Lock()
		gate := c.gate
		c.mu.Unlock()
		if gate == nil {
			return ctx.Err()
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// AwaitDecision opens the decision slot and waits for SupplyDecision, the
// timeout or cancellation. On timeout it returns DecisionContinue with
// timedOut set; on cancellation it returns DecisionStop.
func (c *Control) AwaitDecision(ctx context.Context, timeout time.Duration) (d Decision, timedOut bool) {
	slot := make(chan Decision, 1)
	c.mu.Lock()
	c.pending = slot
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.pending = nil
		c.mu.Unlock()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-slot:
		return d, false
	case <-timer.C:
		return DecisionContinue, true
	case <-ctx.Done():
		return DecisionStop, false
	}
}

// AwaitingDecision reports whether a decision slot is open.
func (c *Control) AwaitingDecision() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// SupplyDecision fills the open decision slot. Only the first decision for
// an escalation is accepted.
func (c *Control) SupplyDecision(d Decision) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return ErrNoPendingDecision
	}
	select {
	case c.pending <- d:
		return nil
	default:
		return ErrDecisionSupplied
	}
}

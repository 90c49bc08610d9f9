// Package systemd talks to systemd and logind over D-Bus to keep the
// machine awake during a run and to power it off afterwards.
package systemd

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
)

// PowerOffTarget is the unit started to power the machine off.
const PowerOffTarget = "poweroff.target"

// ErrPowerOffPending is returned when a power-off is already scheduled.
var ErrPowerOffPending = errors.New("power-off already scheduled")

// Manager handles power operations via the system D-Bus connection.
type Manager struct {
	conn  *dbus.Conn
	start func(ctx context.Context, unit string) error

	mu      sync.Mutex
	pending *time.Timer
}

// NewManager creates a new systemd manager with a system-level D-Bus connection.
func NewManager(ctx context.Context) (*Manager, error) {
	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, err
	}
	m := &Manager{conn: conn}
	m.start = m.startUnit
	return m, nil
}

func (m *Manager) startUnit(ctx context.Context, unit string) error {
	_, err := m.conn.StartUnitContext(ctx, unit, "replace-irreversibly", nil)
	return err
}

// PowerOff schedules poweroff.target after delay and returns immediately.
// The schedule is dropped if ctx is cancelled first or CancelPowerOff is
// called.
func (m *Manager) PowerOff(ctx context.Context, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		return ErrPowerOffPending
	}

	fired := make(chan struct{})
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.pending == timer {
			m.pending = nil
		}
		m.mu.Unlock()
		close(fired)
		if ctx.Err() != nil {
			return
		}
		if err := m.start(context.WithoutCancel(ctx), PowerOffTarget); err != nil {
			logger.Error("Power-off failed", "error", err)
		}
	})
	m.pending = timer
	go func() {
		select {
		case <-ctx.Done():
			m.cancel(timer)
		case <-fired:
		}
	}()
	logger.Warn("Power-off scheduled", "delay", delay)
	return nil
}

// CancelPowerOff drops a scheduled power-off. It reports whether one was
// pending.
func (m *Manager) CancelPowerOff() bool {
	m.mu.Lock()
	timer := m.pending
	m.mu.Unlock()
	if timer == nil {
		return false
	}
	return m.cancel(timer)
}

func (m *Manager) cancel(timer *time.Timer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != timer {
		return false
	}
	m.pending = nil
	stopped := timer.Stop()
	if stopped {
		logger.Info("Power-off cancelled")
	}
	return stopped
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}

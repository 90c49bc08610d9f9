package systemd

import (
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/login1"

	"github.com/smazurov/av1forge/internal/logging"
)

var logger = logging.GetLogger("systemd")

// Inhibitor blocks sleep and idle through logind while held.
type Inhibitor struct {
	// Who is reported to logind as the lock holder.
	Who string

	inhibit func(what, who, why, mode string) (release func(), err error)
}

// NewInhibitor returns an inhibitor using the system logind.
func NewInhibitor(who string) *Inhibitor {
	return &Inhibitor{Who: who, inhibit: logindInhibit}
}

func logindInhibit(what, who, why, mode string) (func(), error) {
	conn, err := login1.New()
	if err != nil {
		return nil, err
	}
	fd, err := conn.Inhibit(what, who, why, mode)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return func() {
		closeLock(fd)
		conn.Close()
	}, nil
}

func closeLock(fd *os.File) {
	if err := fd.Close(); err != nil {
		logger.Warn("Failed to release inhibitor lock", "error", err)
	}
}

// Acquire takes a sleep:idle block lock. The returned function releases
// it and is safe to call more than once.
func (i *Inhibitor) Acquire(why string) (func(), error) {
	release, err := i.inhibit("sleep:idle", i.Who, why, "block")
	if err != nil {
		return nil, err
	}
	logger.Debug("Sleep inhibited", "why", why)
	var once sync.Once
	return func() {
		once.Do(func() {
			release()
			logger.Debug("Sleep inhibitor released")
		})
	}, nil
}

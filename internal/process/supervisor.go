package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/av1forge/internal/logging"
)

// Errors returned by the supervisor.
var (
	ErrBusy        = errors.New("another child process is still active")
	ErrUnsupported = errors.New("operation not supported on this platform")
)

// KilledExitCode is reported by Wait for a process the supervisor killed.
const KilledExitCode = 137

// lineBuffer bounds how far the reader may run ahead of the consumer.
// Once full, the child blocks on its next write.
const lineBuffer = 256

// Supervisor spawns child processes one at a time and tracks them.
type Supervisor struct {
	logger  logging.Logger
	decoder *Decoder

	mu      sync.Mutex
	current *Handle
	active  int
	peak    int
	spawned int
}

// NewSupervisor creates a supervisor decoding output with the given decoder.
// A nil decoder uses the platform default.
func NewSupervisor(logger logging.Logger, decoder *Decoder) *Supervisor {
	if decoder == nil {
		decoder = DefaultDecoder()
	}
	return &Supervisor{logger: logger, decoder: decoder}
}

// Handle is one running child process with a merged, line-split output
// stream.
type Handle struct {
	name    string
	args    []string
	cmd     *exec.Cmd
	started time.Time
	sup     *Supervisor

	lines    chan string
	waitDone chan struct{}
	exitCode int
	killed   atomic.Bool
	closed   atomic.Bool
	reader   *os.File
}

// Spawn starts name with args. Only one child may be active at a time; a
// second Spawn before the first has been reaped fails with ErrBusy.
// The context is not bound to the process lifetime: callers terminate the
// child explicitly with Kill.
func (s *Supervisor) Spawn(ctx context.Context, name string, args ...string) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active > 0 {
		return nil, ErrBusy
	}

	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	cmd := exec.Command(name, args...)
	cmd.Stdout = writer
	cmd.Stderr = writer
	configureCommand(cmd)

	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}
	// The child holds its own copy of the write end
	_ = writer.Close()

	h := &Handle{
		name:     name,
		args:     args,
		cmd:      cmd,
		started:  time.Now(),
		sup:      s,
		lines:    make(chan string, lineBuffer),
		waitDone: make(chan struct{}),
		reader:   reader,
	}

	s.current = h
	s.active++
	s.spawned++
	s.peak = max(s.peak, s.active)

	s.logger.Debug("Process started", "name", name, "pid", cmd.Process.Pid, "args", strings.Join(args, " "))

	go h.readOutput(s.decoder)
	go h.wait()

	return h, nil
}

// Active returns the number of spawned but not yet reaped children.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Peak returns the highest number of simultaneously active children seen.
func (s *Supervisor) Peak() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Spawned returns the total number of children started.
func (s *Supervisor) Spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

// Current returns the active handle, or nil.
func (s *Supervisor) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// KillActive kills the active child, if any.
func (s *Supervisor) KillActive() {
	if h := s.Current(); h != nil {
		h.Kill()
	}
}

func (s *Supervisor) release(h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == h {
		s.current = nil
	}
	s.active--
}

// Name returns the executable name.
func (h *Handle) Name() string { return h.name }

// PID returns the operating system process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Started returns when the process was spawned.
func (h *Handle) Started() time.Time { return h.started }

// ReadLine returns the next output line. It returns io.EOF once the output
// is exhausted and ctx.Err() if the context ends first.
func (h *Handle) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-h.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Kill terminates the process and all of its descendants. It does not block
// and ignores failures; use Wait to observe the exit.
func (h *Handle) Kill() {
	if !h.killed.CompareAndSwap(false, true) {
		return
	}
	select {
	case <-h.waitDone:
		return
	default:
	}
	pid := h.cmd.Process.Pid
	go func() {
		if err := killTree(pid); err != nil {
			h.sup.logger.Debug("Process tree kill reported an error", "pid", pid, "error", err)
		}
	}()
}

// Killed reports whether Kill was called.
func (h *Handle) Killed() bool {
	return h.killed.Load()
}

// Suspend stops the process tree until Resume is called.
func (h *Handle) Suspend() error {
	return suspendTree(h.cmd.Process.Pid)
}

// Resume continues a suspended process tree.
func (h *Handle) Resume() error {
	return resumeTree(h.cmd.Process.Pid)
}

// Wait blocks until the process exits and returns its exit code. A killed
// process reports KilledExitCode.
func (h *Handle) Wait() int {
	<-h.waitDone
	return h.exitCode
}

// Done is closed when the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.waitDone
}

// Close releases the output stream. Pending lines are discarded.
func (h *Handle) Close() {
	if !h.closed.CompareAndSwap(false, true) {
		return
	}
	_ = h.reader.Close()
	// Unblock the reader if it is parked on a full channel
	go func() {
		for range h.lines {
		}
	}()
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	code := exitCodeFromError(err)
	if h.killed.Load() && code != 0 {
		code = KilledExitCode
	}
	h.exitCode = code
	h.sup.logger.Debug("Process exited", "name", h.name, "pid", h.cmd.Process.Pid, "exit_code", code,
		"elapsed", time.Since(h.started).Round(time.Millisecond))
	h.sup.release(h)
	close(h.waitDone)
}

// readOutput splits the merged stream on both \n and \r, since progress
// meters redraw a line with carriage returns.
func (h *Handle) readOutput(dec *Decoder) {
	defer close(h.lines)

	r := bufio.NewReaderSize(h.reader, 64*1024)
	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		h.lines <- dec.Decode(buf)
		buf = buf[:0]
	}
	for {
		b, err := r.ReadByte()
		if err != nil {
			flush()
			return
		}
		if b == '\n' || b == '\r' {
			flush()
			continue
		}
		buf = append(buf, b)
	}
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		// Terminated by a signal
		return KilledExitCode
	}
	return 1
}

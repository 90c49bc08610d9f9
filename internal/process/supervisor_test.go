package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSupervisor() *Supervisor {
	return NewSupervisor(testLogger(), DefaultDecoder())
}

// readAll drains a handle, failing the test if it takes too long.
func readAll(t *testing.T, h *Handle, timeout time.Duration) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var lines []string
	for {
		line, err := h.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return lines
		}
		if err != nil {
			t.Fatalf("ReadLine: %v (lines so far %q)", err, lines)
		}
		lines = append(lines, line)
	}
}

// waitExit waits for exit code with timeout, fails test on timeout.
func waitExit(t *testing.T, h *Handle, timeout time.Duration) int {
	t.Helper()
	select {
	case <-h.Done():
		return h.Wait()
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func TestMergedOutputLines(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Spawn(context.Background(), "sh", "-c", `echo one; echo two >&2; printf 'a\rb\n'; printf 'last'`)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	got := readAll(t, h, 2*time.Second)
	want := []string{"one", "two", "a", "b", "last"}
	if len(got) != len(want) {
		t.Fatalf("lines = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if code := waitExit(t, h, time.Second); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestExitCode(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Spawn(context.Background(), "sh", "-c", "exit 3")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	if code := waitExit(t, h, time.Second); code != 3 {
		t.Errorf("exit code = %d, want 3", code)
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after exit, want 0", s.Active())
	}
}

func TestSpawnBusy(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Spawn(context.Background(), "sleep", "10")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	if _, err := s.Spawn(context.Background(), "true"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Spawn error = %v, want ErrBusy", err)
	}
	if s.Current() != h {
		t.Error("Current() does not return the active handle")
	}

	h.Kill()
	if code := waitExit(t, h, 2*time.Second); code != KilledExitCode {
		t.Errorf("exit code = %d, want %d", code, KilledExitCode)
	}

	next, err := s.Spawn(context.Background(), "true")
	if err != nil {
		t.Fatalf("Spawn after exit: %v", err)
	}
	defer next.Close()
	waitExit(t, next, time.Second)

	if s.Peak() != 1 {
		t.Errorf("Peak() = %d, want 1", s.Peak())
	}
	if s.Spawned() != 2 {
		t.Errorf("Spawned() = %d, want 2", s.Spawned())
	}
}

func TestKillTerminatesDescendants(t *testing.T) {
	s := newTestSupervisor()
	// The background sleep inherits the pipe; EOF only arrives once it dies too
	h, err := s.Spawn(context.Background(), "sh", "-c", "sleep 30 & echo started; sleep 30; wait")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if line, err := h.ReadLine(ctx); err != nil || line != "started" {
		t.Fatalf("ReadLine = %q, %v", line, err)
	}

	start := time.Now()
	h.Kill()
	h.Kill() // second call is a no-op

	readAll(t, h, 2*time.Second)
	waitExit(t, h, 2*time.Second)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("kill took too long: %v", elapsed)
	}
	if !h.Killed() {
		t.Error("Killed() = false after Kill")
	}
}

func TestReadLineHonorsContext(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Spawn(context.Background(), "sleep", "10")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() {
		h.Kill()
		h.Wait()
		h.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := h.ReadLine(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("ReadLine error = %v, want deadline exceeded", err)
	}
}

func TestSpawnMissingBinary(t *testing.T) {
	s := newTestSupervisor()
	if _, err := s.Spawn(context.Background(), "/nonexistent/av1forge-tool"); err == nil {
		t.Fatal("expected error for missing binary")
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after failed spawn, want 0", s.Active())
	}
}

func TestSpawnCancelledContext(t *testing.T) {
	s := newTestSupervisor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Spawn(ctx, "true"); !errors.Is(err, context.Canceled) {
		t.Errorf("Spawn error = %v, want context.Canceled", err)
	}
}

func TestSuspendResume(t *testing.T) {
	s := newTestSupervisor()
	h, err := s.Spawn(context.Background(), "sh", "-c", "sleep 0.2; echo done")
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	if err := h.Suspend(); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	select {
	case <-h.Done():
		t.Fatal("process exited while suspended")
	case <-time.After(500 * time.Millisecond):
	}

	if err := h.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if got := readAll(t, h, 2*time.Second); len(got) != 1 || got[0] != "done" {
		t.Errorf("lines = %q, want [done]", got)
	}
	if code := waitExit(t, h, time.Second); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestOutput(t *testing.T) {
	s := newTestSupervisor()
	lines, code, err := s.Output(context.Background(), "sh", "-c", "echo av1; exit 2")
	if err != nil {
		t.Fatalf("Output: %v", err)
	}
	if code != 2 || len(lines) != 1 || lines[0] != "av1" {
		t.Errorf("Output() = %q, %d; want [av1], 2", lines, code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, _, err := s.Output(ctx, "sleep", "10"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Output error = %v, want deadline exceeded", err)
	}
	if s.Active() != 0 {
		t.Errorf("Active() = %d after timeout, want 0", s.Active())
	}
}

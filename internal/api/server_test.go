package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/av1forge/internal/api/models"
	"github.com/smazurov/av1forge/internal/events"
	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/runner"
)

// mockRun is a RunController with canned answers.
type mockRun struct {
	mu        sync.Mutex
	status    runner.Status
	decisions []runner.Decision
	pending   bool
	cancelled bool
}

func (m *mockRun) Status() runner.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockRun) Pause() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State != runner.StateRunning {
		return false
	}
	m.status.State = runner.StatePaused
	return true
}

func (m *mockRun) Resume() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.State != runner.StatePaused {
		return false
	}
	m.status.State = runner.StateRunning
	return true
}

func (m *mockRun) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = true
	m.status.State = runner.StateCancelled
}

func (m *mockRun) SupplyDecision(d runner.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return runner.ErrNoPendingDecision
	}
	m.pending = false
	m.decisions = append(m.decisions, d)
	return nil
}

type mockPower struct{ cancelled bool }

func (m *mockPower) CancelPowerOff() bool {
	was := !m.cancelled
	m.cancelled = true
	return was
}

func newTestServer(t *testing.T, run *mockRun) (*httptest.Server, *events.Bus) {
	t.Helper()
	bus := events.New()
	server := NewServer(&Options{
		AuthUsername: "test",
		AuthPassword: "test",
		Run:          run,
		Power:        &mockPower{},
		EventBus:     bus,
	})
	ts := httptest.NewServer(server.GetMux())
	t.Cleanup(ts.Close)
	return ts, bus
}

func authHeader() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte("test:test"))
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	var reqBody io.Reader = http.NoBody
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", authHeader())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestHealthWithoutAuth(t *testing.T) {
	ts, _ := newTestServer(t, &mockRun{})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRunRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t, &mockRun{})

	resp, err := http.Get(ts.URL + "/api/run")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("missing WWW-Authenticate header")
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/run", http.NoBody)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte("test:wrong")))
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password status = %d, want 401", resp2.StatusCode)
	}
}

func TestGetRunStatus(t *testing.T) {
	started := time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC)
	run := &mockRun{status: runner.Status{
		RunID:           "run-1",
		State:           runner.StateRunning,
		TaskIndex:       1,
		TaskTotal:       4,
		CurrentFile:     "/media/b.mp4",
		Phase:           runner.PhaseEncoding,
		ProgressTotal:   25,
		ProgressCurrent: 40,
		StartedAt:       started,
	}}
	ts, _ := newTestServer(t, run)

	resp := do(t, http.MethodGet, ts.URL+"/api/run", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[models.RunStatusData](t, resp)
	if got.RunID != "run-1" || got.State != "running" || got.Phase != "encoding" {
		t.Errorf("status = %+v", got)
	}
	if got.TaskIndex != 1 || got.TaskTotal != 4 || got.ProgressCurrent != 40 {
		t.Errorf("progress fields = %+v", got)
	}
	if got.StartedAt != "2025-01-27T10:30:00Z" {
		t.Errorf("started_at = %q", got.StartedAt)
	}
}

func TestPauseResumeCancel(t *testing.T) {
	run := &mockRun{status: runner.Status{State: runner.StateRunning}}
	ts, _ := newTestServer(t, run)

	tests := []struct {
		path    string
		applied bool
		state   string
	}{
		{"/api/run/resume", false, "running"},
		{"/api/run/pause", true, "paused"},
		{"/api/run/pause", false, "paused"},
		{"/api/run/resume", true, "running"},
		{"/api/run/cancel", true, "cancelled"},
		{"/api/run/cancel", false, "cancelled"},
	}
	for _, tt := range tests {
		resp := do(t, http.MethodPost, ts.URL+tt.path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status = %d", tt.path, resp.StatusCode)
		}
		got := decode[models.RunActionData](t, resp)
		if got.Applied != tt.applied || got.State != tt.state {
			t.Errorf("%s: got %+v, want applied=%v state=%s", tt.path, got, tt.applied, tt.state)
		}
	}
	if !run.cancelled {
		t.Error("Cancel was not called")
	}
}

func TestDecision(t *testing.T) {
	run := &mockRun{status: runner.Status{State: runner.StateRunning}}
	ts, _ := newTestServer(t, run)

	resp := do(t, http.MethodPost, ts.URL+"/api/run/decision", `{"decision":"continue"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("no pending decision: status = %d, want 409", resp.StatusCode)
	}

	run.mu.Lock()
	run.pending = true
	run.mu.Unlock()

	resp = do(t, http.MethodPost, ts.URL+"/api/run/decision", `{"decision":"stop"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(run.decisions) != 1 || run.decisions[0] != runner.DecisionStop {
		t.Errorf("decisions = %v", run.decisions)
	}

	resp = do(t, http.MethodPost, ts.URL+"/api/run/decision", `{"decision":"maybe"}`)
	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		t.Errorf("invalid decision: status = %d, want 4xx", resp.StatusCode)
	}
}

func TestCancelPowerOff(t *testing.T) {
	ts, _ := newTestServer(t, &mockRun{})

	first := decode[models.RunActionData](t, do(t, http.MethodPost, ts.URL+"/api/power/cancel", ""))
	second := decode[models.RunActionData](t, do(t, http.MethodPost, ts.URL+"/api/power/cancel", ""))
	if !first.Applied || second.Applied {
		t.Errorf("applied = %v then %v, want true then false", first.Applied, second.Applied)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := NewServer(&Options{
		PrometheusHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintln(w, "av1forge_run_active 1")
		}),
	})
	ts := httptest.NewServer(server.GetMux())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

// readSSE forwards data lines from an SSE response.
func readSSE(ctx context.Context, resp *http.Response) <-chan string {
	lines := make(chan string, 32)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

func nextLine(t *testing.T, lines <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-lines:
		if !ok {
			t.Fatal("stream closed")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for SSE data")
		return ""
	}
}

func TestEventStream(t *testing.T) {
	run := &mockRun{status: runner.Status{RunID: "run-9", State: runner.StateRunning, TaskTotal: 2}}
	ts, bus := newTestServer(t, run)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/events?auth="+base64.StdEncoding.EncodeToString([]byte("test:test")), http.NoBody)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("content type = %s", resp.Header.Get("Content-Type"))
	}

	lines := readSSE(ctx, resp)
	if first := nextLine(t, lines); !strings.Contains(first, `"run_id":"run-9"`) {
		t.Fatalf("initial status = %s", first)
	}

	// Bare typed events are not forwarded, only the ordered envelope
	bus.Publish(events.RunLogEvent{RunID: "run-9", Seq: 1, Severity: "info", Message: "bare"})
	bus.Publish(events.RunEvent{Seq: 1, Event: events.RunLogEvent{RunID: "run-9", Seq: 1, Severity: "warning", Message: "Paused"}})
	if line := nextLine(t, lines); !strings.Contains(line, `"message":"Paused"`) {
		t.Errorf("log event = %s", line)
	}

	bus.Publish(events.RunEvent{Seq: 2, Event: events.TaskDoneEvent{RunID: "run-9", Index: 0, Outcome: "committed", QP: 27}})
	if line := nextLine(t, lines); !strings.Contains(line, `"outcome":"committed"`) {
		t.Errorf("task event = %s", line)
	}
}

func TestLogStreamSendsLiveEntries(t *testing.T) {
	ts, bus := newTestServer(t, &mockRun{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/logs/stream", http.NoBody)
	req.Header.Set("Authorization", authHeader())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	lines := readSSE(ctx, resp)
	// The handler subscribes before replaying history, so keep publishing
	// until the entry shows up.
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			bus.Publish(events.LogEntryEvent{Seq: 1 << 40, Level: "info", Module: "runner", Message: "live entry"})
		case line := <-lines:
			if strings.Contains(line, "live entry") {
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for live log entry")
		}
	}
}

func TestLogStreamReplaysSince(t *testing.T) {
	logging.Initialize(logging.Config{Level: "info", Format: "text", Output: "stderr"})
	logger := logging.GetLogger("replaytest")
	logger.Info("replay one")
	logger.Info("replay two")

	var since uint64
	for _, e := range logging.GetBuffer().ReadAll() {
		if e.Message == "replay one" {
			since = e.Seq
		}
	}
	if since == 0 {
		t.Fatal("entry not buffered")
	}

	ts, _ := newTestServer(t, &mockRun{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	url := fmt.Sprintf("%s/api/logs/stream?since=%d", ts.URL, since)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	req.Header.Set("Authorization", authHeader())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	line := nextLine(t, readSSE(ctx, resp))
	if !strings.Contains(line, "replay two") {
		t.Errorf("first replayed entry = %s, want replay two", line)
	}
}

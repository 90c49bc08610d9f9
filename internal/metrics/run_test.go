package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTask(t *testing.T) {
	before := testutil.ToFloat64(tasksTotal.WithLabelValues("skipped"))
	savedBefore := testutil.ToFloat64(bytesSaved)

	ObserveTask("skipped", 0.5, 0)
	ObserveTask("skipped", 0.2, -10)

	if got := testutil.ToFloat64(tasksTotal.WithLabelValues("skipped")) - before; got != 2 {
		t.Errorf("skipped tasks delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(bytesSaved) - savedBefore; got != 0 {
		t.Errorf("bytes saved delta = %v, want 0 for non-positive savings", got)
	}

	ObserveTask("committed", 30, 4096)
	if got := testutil.ToFloat64(bytesSaved) - savedBefore; got != 4096 {
		t.Errorf("bytes saved delta = %v, want 4096", got)
	}
}

func TestRunStateGauges(t *testing.T) {
	tests := []struct {
		state          string
		active, paused float64
	}{
		{"running", 1, 0},
		{"paused", 1, 1},
		{"completed", 0, 0},
		{"cancelled", 0, 0},
	}
	for _, tt := range tests {
		SetRunState(tt.state)
		if got := testutil.ToFloat64(runActive); got != tt.active {
			t.Errorf("%s: active = %v, want %v", tt.state, got, tt.active)
		}
		if got := testutil.ToFloat64(runPaused); got != tt.paused {
			t.Errorf("%s: paused = %v, want %v", tt.state, got, tt.paused)
		}
	}
}

func TestRunFinishedClearsDecision(t *testing.T) {
	SetDecisionPending(true)
	if testutil.ToFloat64(decisionsPending) != 1 {
		t.Fatal("decision gauge not set")
	}
	before := testutil.ToFloat64(runsTotal.WithLabelValues("fatal"))
	ObserveRunFinished("fatal")
	if testutil.ToFloat64(decisionsPending) != 0 {
		t.Error("decision gauge not cleared")
	}
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("fatal")) - before; got != 1 {
		t.Errorf("fatal runs delta = %v, want 1", got)
	}
}

func TestSearchAndProgress(t *testing.T) {
	SetSearchResult(27, 93.4)
	if testutil.ToFloat64(lastQP) != 27 || testutil.ToFloat64(lastVMAF) != 93.4 {
		t.Error("search gauges not updated")
	}
	SetProgress("current", 55)
	if got := testutil.ToFloat64(progress.WithLabelValues("current")); got != 55 {
		t.Errorf("progress = %v, want 55", got)
	}
}

func TestEncodeStatsCache(t *testing.T) {
	ResetEncodeStats()
	if GetEncodeStats() != nil {
		t.Fatal("expected nil without an active encode")
	}

	SetEncodeStats(EncodeStats{Index: 3, Frames: 1200, FPS: 61.5, Speed: 2.5})
	m := GetEncodeStats()
	if m == nil {
		t.Fatal("expected non-nil stats")
	}
	if m.FPS != 61.5 || m.Frames != 1200 || m.Index != 3 {
		t.Errorf("stats = %+v", m)
	}
	if testutil.ToFloat64(encodeSpeed) != 2.5 {
		t.Errorf("speed gauge = %v", testutil.ToFloat64(encodeSpeed))
	}

	// Returned copy is independent
	m.FPS = 999
	if GetEncodeStats().FPS != 61.5 {
		t.Error("cache was modified through the returned copy")
	}

	ResetEncodeStats()
	if GetEncodeStats() != nil {
		t.Error("expected nil after reset")
	}
	if testutil.ToFloat64(encodeFPS) != 0 {
		t.Error("fps gauge not reset")
	}
}

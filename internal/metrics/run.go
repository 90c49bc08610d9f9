package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "av1forge",
		Subsystem: "tasks",
		Name:      "total",
		Help:      "Finished tasks by outcome",
	}, []string{"outcome"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "av1forge",
		Subsystem: "tasks",
		Name:      "duration_seconds",
		Help:      "Wall time per task",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
	}, []string{"outcome"})

	bytesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "av1forge",
		Subsystem: "tasks",
		Name:      "bytes_saved_total",
		Help:      "Total size reduction of committed files",
	})

	lastQP = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "search",
		Name:      "last_qp",
		Help:      "Quantization parameter used for the last encoded file",
	})

	lastVMAF = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "search",
		Name:      "last_vmaf",
		Help:      "Score of the last selected search trial",
	})

	progress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "run",
		Name:      "progress_percent",
		Help:      "Run progress by scope (total, current)",
	}, []string{"scope"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "av1forge",
		Subsystem: "run",
		Name:      "finished_total",
		Help:      "Finished runs by terminal state",
	}, []string{"state"})

	runActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "run",
		Name:      "active",
		Help:      "1 while a run is in progress",
	})

	runPaused = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "run",
		Name:      "paused",
		Help:      "1 while the run is paused",
	})

	decisionsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "av1forge",
		Subsystem: "run",
		Name:      "decision_pending",
		Help:      "1 while a crash decision is awaited",
	})
)

// ObserveTask records a finished task.
func ObserveTask(outcome string, seconds float64, saved int64) {
	tasksTotal.WithLabelValues(outcome).Inc()
	taskDuration.WithLabelValues(outcome).Observe(seconds)
	if saved > 0 {
		bytesSaved.Add(float64(saved))
	}
}

// SetSearchResult records the parameter and score chosen for a file.
func SetSearchResult(qp int, vmaf float64) {
	lastQP.Set(float64(qp))
	lastVMAF.Set(vmaf)
}

// SetProgress sets the percentage for a scope.
func SetProgress(scope string, percent float64) {
	progress.WithLabelValues(scope).Set(percent)
}

// SetRunState updates the run gauges for a state name.
func SetRunState(state string) {
	switch state {
	case "running":
		runActive.Set(1)
		runPaused.Set(0)
	case "paused":
		runActive.Set(1)
		runPaused.Set(1)
	default:
		runActive.Set(0)
		runPaused.Set(0)
		decisionsPending.Set(0)
	}
}

// SetDecisionPending flags an open crash escalation.
func SetDecisionPending(pending bool) {
	if pending {
		decisionsPending.Set(1)
	} else {
		decisionsPending.Set(0)
	}
}

// ObserveRunFinished counts a terminal run state.
func ObserveRunFinished(state string) {
	runsTotal.WithLabelValues(state).Inc()
	SetRunState(state)
}

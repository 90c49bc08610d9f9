// Package runner drives a batch of media tasks through probe, quality
// search, encode and commit, one child process at a time.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/smazurov/av1forge/internal/commit"
	"github.com/smazurov/av1forge/internal/encoders"
	"github.com/smazurov/av1forge/internal/ffmpeg"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/probe"
	"github.com/smazurov/av1forge/internal/process"
	"github.com/smazurov/av1forge/internal/search"
	"github.com/smazurov/av1forge/internal/transcode"
)

// ErrAlreadyRunning is returned by Start while a run is active.
var ErrAlreadyRunning = errors.New("a run is already active")

// ShutdownDelay is the grace period before powering off after a run.
const ShutdownDelay = 60 * time.Second

// State is the run-level state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFatal     State = "fatal"
)

// Terminal reports whether the run has ended.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFatal
}

// Phase is the per-task state.
type Phase string

const (
	PhaseProbing    Phase = "probing"
	PhaseSearching  Phase = "searching"
	PhaseEncoding   Phase = "encoding"
	PhaseCommitting Phase = "committing"
	PhaseDone       Phase = "done"
)

// Prober reads codec, duration and channel count from a source.
type Prober interface {
	Probe(ctx context.Context, path string) probe.Result
}

// Searcher finds the quantization parameter for a target score.
type Searcher interface {
	Run(ctx context.Context, req search.Request, gate search.Gate, onTrial func(search.Trial)) (search.Result, error)
}

// Transcoder performs the encode into a temporary file.
type Transcoder interface {
	Run(ctx context.Context, req transcode.Request, gate transcode.Gate, cb transcode.Callbacks) transcode.Result
}

// Committer moves an encoded file to its destination.
type Committer interface {
	Commit(task job.MediaTask, tempPath string, mode job.SaveMode, exportDir string) (string, error)
}

// Pipeline bundles the adapters a run uses.
type Pipeline struct {
	Prober     Prober
	Searcher   Searcher
	Transcoder Transcoder
	Committer  Committer
}

// PipelineFactory builds the adapters for a configuration.
type PipelineFactory func(cfg job.JobConfig) Pipeline

// KeepAwake holds the machine awake while a run is active. The returned
// function releases the hold and must be safe to call once.
type KeepAwake interface {
	Acquire(why string) (release func(), err error)
}

// PowerController powers the machine off after a delay.
type PowerController interface {
	PowerOff(ctx context.Context, delay time.Duration) error
}

// Summary is delivered with OnRunFinished and returned by Wait.
type Summary struct {
	RunID      string
	State      State
	Total      int
	Committed  int
	Skipped    int
	Crashed    int
	Failed     int
	BytesSaved int64
	Reports    []job.TaskReport
	Elapsed    time.Duration
	Err        error
}

func (s *Summary) add(r job.TaskReport) {
	s.Reports = append(s.Reports, r)
	switch r.Outcome {
	case job.OutcomeCommitted:
		s.Committed++
		s.BytesSaved += r.BytesSaved()
	case job.OutcomeSkipped:
		s.Skipped++
	case job.OutcomeCrashed:
		s.Crashed++
	case job.OutcomeFailed:
		s.Failed++
	}
}

// Status is a point-in-time view of the run.
type Status struct {
	RunID            string
	State            State
	TaskIndex        int
	TaskTotal        int
	CurrentFile      string
	Phase            Phase
	ProgressTotal    float64
	ProgressCurrent  float64
	AwaitingDecision bool
	StartedAt        time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithPipeline replaces the adapters built from the configuration.
func WithPipeline(f PipelineFactory) Option {
	return func(r *Runner) { r.pipeline = f }
}

// WithKeepAwake sets the sleep inhibitor used when KeepAwake is enabled.
func WithKeepAwake(k KeepAwake) Option {
	return func(r *Runner) { r.keepAwake = k }
}

// WithPowerController sets the power controller used by ShutdownWhenDone.
func WithPowerController(p PowerController) Option {
	return func(r *Runner) { r.power = p }
}

// Runner owns one run at a time. The controller calls Start, Pause,
// Resume, Cancel and SupplyDecision; a single worker goroutine executes
// the tasks.
type Runner struct {
	sup       *process.Supervisor
	observer  Observer
	logger    logging.Logger
	pipeline  PipelineFactory
	keepAwake KeepAwake
	power     PowerController

	mu       sync.Mutex
	cfg      job.JobConfig
	control  *Control
	emit     *emitter
	status   Status
	summary  Summary
	done     chan struct{}
	finished bool
}

// New creates an idle runner. Every child process goes through sup.
func New(sup *process.Supervisor, observer Observer, opts ...Option) *Runner {
	if observer == nil {
		observer = MultiObserver(nil)
	}
	r := &Runner{
		sup:      sup,
		observer: observer,
		logger:   logging.GetLogger("runner"),
		status:   Status{State: StateIdle},
	}
	r.pipeline = r.defaultPipeline
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) defaultPipeline(cfg job.JobConfig) Pipeline {
	return Pipeline{
		Prober:     probe.New(r.sup, cfg.Tools.FFprobe, logging.GetLogger("ffprobe")),
		Searcher:   search.New(r.sup, cfg.Tools.AbAV1, logging.GetLogger("search"), logging.GetLogger("ab-av1")),
		Transcoder: transcode.New(r.sup, cfg.Tools.FFmpeg, logging.GetLogger("transcode"), logging.GetLogger("ffmpeg")),
		Committer:  commit.NewManager(logging.GetLogger("commit")),
	}
}

// Start validates cfg and begins processing tasks in the background. The
// task list is fixed for the run. Cancelling ctx cancels the run.
func (r *Runner) Start(ctx context.Context, cfg job.JobConfig, tasks []job.MediaTask) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	profile, err := encoders.ProfileFor(cfg.Backend)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil && !r.finished {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cfg = cfg
	r.control = newControl(cancel)
	r.emit = newEmitter(r.observer)
	r.done = make(chan struct{})
	r.finished = false
	r.status = Status{
		RunID:     uuid.NewString(),
		State:     StateRunning,
		TaskIndex: -1,
		TaskTotal: len(tasks),
		StartedAt: time.Now(),
	}
	r.summary = Summary{RunID: r.status.RunID, Total: len(tasks)}

	w := &worker{
		r:        r,
		runID:    r.status.RunID,
		cfg:      cfg,
		profile:  profile,
		pipeline: r.pipeline(cfg),
		control:  r.control,
		emit:     r.emit,
		tasks:    tasks,
	}
	go w.run(runCtx)
	return nil
}

// Pause halts output consumption at the next read. With SuspendOnPause the
// active child process group is stopped as well.
func (r *Runner) Pause() bool {
	r.mu.Lock()
	if r.control == nil || r.status.State != StateRunning {
		r.mu.Unlock()
		return false
	}
	if !r.control.Pause() {
		r.mu.Unlock()
		return false
	}
	r.status.State = StatePaused
	suspend := r.cfg.SuspendOnPause
	emit := r.emit
	r.mu.Unlock()

	if suspend {
		if h := r.sup.Current(); h != nil {
			if err := h.Suspend(); err != nil {
				r.logger.Warn("Failed to suspend child process", "pid", h.PID(), "error", err)
			}
		}
	}
	emit.stateChanged(StatePaused)
	emit.log("Paused", SeverityWarning)
	return true
}

// Resume reopens the gate and continues a suspended child process.
func (r *Runner) Resume() bool {
	r.mu.Lock()
	if r.control == nil || r.status.State != StatePaused {
		r.mu.Unlock()
		return false
	}
	r.status.State = StateRunning
	control := r.control
	suspend := r.cfg.SuspendOnPause
	emit := r.emit
	r.mu.Unlock()

	// Queued before the gate opens so they precede the worker's next events.
	emit.stateChanged(StateRunning)
	emit.log("Resumed", SeverityInfo)
	control.Resume()

	if suspend {
		if h := r.sup.Current(); h != nil {
			if err := h.Resume(); err != nil {
				r.logger.Warn("Failed to resume child process", "pid", h.PID(), "error", err)
			}
		}
	}
	return true
}

// Cancel stops the run. The active child process tree is killed and its
// temporary output discarded.
func (r *Runner) Cancel() {
	r.mu.Lock()
	c := r.control
	active := r.done != nil && !r.finished
	r.mu.Unlock()
	if c != nil && active {
		c.Cancel()
		r.sup.KillActive()
	}
}

// SupplyDecision answers a pending crash escalation.
func (r *Runner) SupplyDecision(d Decision) error {
	r.mu.Lock()
	c := r.control
	r.mu.Unlock()
	if c == nil {
		return ErrNoPendingDecision
	}
	return c.SupplyDecision(d)
}

// State returns the current run state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.State
}

// Status returns a snapshot of the run.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.status
	if r.control != nil && !r.finished {
		s.AwaitingDecision = r.control.AwaitingDecision()
	}
	return s
}

// Done is closed once the current run has finished and OnRunFinished has
// been delivered. It returns nil before the first Start.
func (r *Runner) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Wait blocks until the current run finishes and returns its summary.
func (r *Runner) Wait() Summary {
	done := r.Done()
	if done != nil {
		<-done
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

func (r *Runner) update(fn func(*Status)) {
	r.mu.Lock()
	fn(&r.status)
	r.mu.Unlock()
}

// errStopped ends a run after a Stop decision.
var errStopped = errors.New("stopped after crash")

type worker struct {
	r        *Runner
	runID    string
	cfg      job.JobConfig
	profile  encoders.Profile
	pipeline Pipeline
	control  *Control
	emit     *emitter
	tasks    []job.MediaTask
}

func (w *worker) run(ctx context.Context) {
	r := w.r
	started := time.Now()
	summary := Summary{RunID: w.runID, Total: len(w.tasks)}
	state := StateFatal
	var runErr error

	release := w.acquireKeepAwake()

	defer func() {
		if p := recover(); p != nil {
			state = StateFatal
			runErr = fmt.Errorf("panic: %v", p)
			r.logger.Error("Run aborted", "panic", p)
		}
		w.control.Cancel()
		r.sup.KillActive()
		release()

		summary.State = state
		summary.Err = runErr
		summary.Elapsed = time.Since(started)
		if runErr != nil && state == StateFatal {
			w.emit.log("Run aborted: "+runErr.Error(), SeverityError)
		}
		w.emit.runFinished(summary)
		w.emit.close()

		r.mu.Lock()
		r.summary = summary
		r.status.State = state
		r.status.AwaitingDecision = false
		r.finished = true
		done := r.done
		r.mu.Unlock()
		close(done)
	}()

	w.emit.log(fmt.Sprintf("Starting run of %d file(s)", len(w.tasks)), SeverityInfo)
	r.logger.Info("Run started", "run_id", summary.RunID, "tasks", len(w.tasks), "backend", w.cfg.Backend)

	for i, task := range w.tasks {
		report, err := w.runTask(ctx, i, task)
		summary.add(report)
		w.emit.taskDone(report)

		if err != nil {
			switch {
			case errors.Is(err, errStopped):
				state = StateCancelled
				w.emit.log("Run stopped", SeverityWarning)
			case ctx.Err() != nil:
				state = StateCancelled
				w.emit.log("Run cancelled", SeverityWarning)
			default:
				state = StateFatal
				runErr = err
			}
			return
		}

		total := float64(i+1) / float64(len(w.tasks)) * 100
		w.emit.progressTotal(total)
		r.update(func(s *Status) { s.ProgressTotal = total })

		if report.Outcome != job.OutcomeSkipped && i < len(w.tasks)-1 {
			if !w.cooldown(ctx) {
				state = StateCancelled
				w.emit.log("Run cancelled", SeverityWarning)
				return
			}
		}
	}

	state = StateCompleted
	w.emit.progressTotal(100)
	w.emit.progressCurrent(100)
	w.emit.log(fmt.Sprintf("Run completed: %d committed, %d skipped, %d crashed, %d failed",
		summary.Committed, summary.Skipped, summary.Crashed, summary.Failed), SeveritySuccess)
	r.logger.Info("Run completed", "run_id", summary.RunID, "elapsed", time.Since(started))

	if w.cfg.ShutdownWhenDone {
		w.shutdown(ctx)
	}
}

func (w *worker) acquireKeepAwake() func() {
	if !w.cfg.KeepAwake || w.r.keepAwake == nil {
		return func() {}
	}
	release, err := w.r.keepAwake.Acquire("encoding media batch")
	if err != nil {
		w.r.logger.Warn("Failed to inhibit sleep", "error", err)
		return func() {}
	}
	var once sync.Once
	return func() { once.Do(release) }
}

func (w *worker) shutdown(ctx context.Context) {
	if w.r.power == nil {
		w.emit.log("Shutdown requested but no power controller is available", SeverityWarning)
		return
	}
	if err := w.r.power.PowerOff(context.WithoutCancel(ctx), ShutdownDelay); err != nil {
		w.emit.log("Shutdown failed: "+err.Error(), SeverityError)
		return
	}
	w.emit.log(fmt.Sprintf("Powering off in %s", ShutdownDelay), SeverityWarning)
}

// cooldown waits between tasks. It reports false if the run ended while
// waiting.
func (w *worker) cooldown(ctx context.Context) bool {
	if w.cfg.Cooldown <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(w.cfg.Cooldown)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (w *worker) phase(index int, p Phase) {
	w.emit.taskPhase(index, p)
	w.r.update(func(s *Status) { s.Phase = p })
}

// runTask executes one task. A non-nil error ends the run: errStopped, a
// context error, or an unexpected failure.
func (w *worker) runTask(ctx context.Context, index int, task job.MediaTask) (report job.TaskReport, err error) {
	report = job.TaskReport{Index: index, Task: task, Outcome: job.OutcomeCancelled}
	started := time.Now()
	defer func() { report.Duration = time.Since(started) }()

	total := len(w.tasks)
	name := task.BaseName + task.Extension
	overall := float64(index) / float64(total) * 100

	w.r.update(func(s *Status) {
		s.TaskIndex = index
		s.CurrentFile = task.SourcePath
		s.ProgressTotal = overall
		s.ProgressCurrent = 0
	})
	w.emit.taskStarted(index, total, task)
	w.emit.progressTotal(overall)
	w.emit.progressCurrent(0)
	w.emit.log(fmt.Sprintf("[%d/%d] %s", index+1, total, name), SeverityInfo)

	if err := w.control.WaitIfPaused(ctx); err != nil {
		return report, err
	}
	w.phase(index, PhaseProbing)
	info := w.pipeline.Prober.Probe(ctx, task.SourcePath)
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if info.AlreadyTarget(task) {
		report.Outcome = job.OutcomeSkipped
		w.emit.log(fmt.Sprintf("Skipping %s: already %s", name, strings.ToUpper(job.TargetCodec)), SeverityInfo)
		w.phase(index, PhaseDone)
		return report, nil
	}
	if info.Duration <= 0 {
		w.emit.log("Duration unknown, progress disabled for "+name, SeverityWarning)
	}

	if err := w.control.WaitIfPaused(ctx); err != nil {
		return report, err
	}
	w.phase(index, PhaseSearching)
	w.emit.log(fmt.Sprintf("Searching quality for VMAF %.1f", w.cfg.TargetQuality), SeverityInfo)
	sres, err := w.pipeline.Searcher.Run(ctx, search.Request{
		Source:        task.SourcePath,
		TargetQuality: w.cfg.TargetQuality,
		Preset:        w.cfg.Preset,
		Profile:       w.profile,
		CacheDir:      w.cfg.CacheDir,
	}, w.control, func(t search.Trial) {
		w.emit.log(fmt.Sprintf("Trial %s %d: VMAF %.2f", t.Param, t.QP, t.Score), SeverityInfo)
	})
	if err != nil {
		if errors.Is(err, search.ErrCancelled) {
			return report, ctx.Err()
		}
		return report, fmt.Errorf("quality search: %w", err)
	}
	if sres.Succeeded {
		w.emit.log(fmt.Sprintf("Selected QP %d (VMAF %.2f)", sres.QP, sres.Score), SeveritySuccess)
	} else {
		w.emit.log(fmt.Sprintf("Quality search failed (exit %d), using QP %d", sres.ExitCode, sres.QP), SeverityWarning)
		for _, line := range sres.Tail {
			w.emit.log("  "+line, SeverityWarning)
		}
	}
	report.QP = sres.QP
	report.Score = sres.Score

	if err := w.control.WaitIfPaused(ctx); err != nil {
		return report, err
	}
	w.phase(index, PhaseEncoding)
	tres := w.pipeline.Transcoder.Run(ctx, transcode.Request{
		Task:    task,
		Profile: w.profile,
		Video: encoders.Options{
			Preset:       w.cfg.Preset,
			QP:           sres.QP,
			PixelFormat:  encoders.EncodePixelFormat,
			PerceptualAQ: w.cfg.PerceptualAQ,
		},
		AudioBitrate:    w.cfg.AudioBitrate,
		AudioSampleRate: w.cfg.AudioSampleRate,
		AudioChannels:   info.AudioChannels,
		LoudnessFilter:  w.cfg.LoudnessFilter,
		Duration:        info.Duration,
		CacheDir:        w.cfg.CacheDir,
	}, w.control, transcode.Callbacks{
		Progress: func(pct float64) {
			w.emit.progressCurrent(pct)
			w.r.update(func(s *Status) { s.ProgressCurrent = pct })
		},
		Stats: func(snap ffmpeg.Snapshot) {
			w.emit.encodeStats(index, snap)
		},
	})

	switch tres.Kind {
	case transcode.Cancelled:
		return report, context.Canceled
	case transcode.Crashed:
		report.Outcome = job.OutcomeCrashed
		report.Err = errors.New(tres.Reason)
		w.phase(index, PhaseDone)
		return report, w.escalate(ctx, name, tres)
	}

	if fi, err := os.Stat(task.SourcePath); err == nil {
		report.InputBytes = fi.Size()
	}
	report.OutputBytes = tres.OutputBytes

	w.phase(index, PhaseCommitting)
	if other, ok := w.replacesSource(index, task); ok {
		w.emit.log(fmt.Sprintf("Saving %s replaces %s, which is also in this batch", name, other), SeverityWarning)
		w.r.logger.Warn("Destination is another batch source", "task", task.SourcePath, "replaces", other)
	}
	dest, err := w.pipeline.Committer.Commit(task, tres.TempPath, w.cfg.SaveMode, w.cfg.ExportDir)
	w.phase(index, PhaseDone)
	if err != nil {
		report.Outcome = job.OutcomeFailed
		report.Err = err
		w.emit.log(fmt.Sprintf("Failed to save %s: %v", name, err), SeverityError)
		return report, nil
	}
	report.Outcome = job.OutcomeCommitted
	report.Destination = dest
	w.emit.log("Saved "+dest, SeveritySuccess)
	return report, nil
}

// replacesSource reports whether the destination for task is the source of
// another task in the batch.
func (w *worker) replacesSource(index int, task job.MediaTask) (string, bool) {
	dest, err := commit.Destination(w.cfg.SaveMode, task, w.cfg.ExportDir)
	if err != nil {
		return "", false
	}
	dest = filepath.Clean(dest)
	for i, other := range w.tasks {
		if i != index && filepath.Clean(other.SourcePath) == dest {
			return other.SourcePath, true
		}
	}
	return "", false
}

// escalate surfaces a crash and waits for a decision. It returns errStopped
// on Stop and nil on Continue.
func (w *worker) escalate(ctx context.Context, name string, res transcode.Result) error {
	w.emit.log(fmt.Sprintf("Encoding %s crashed: %s", name, res.Reason), SeverityError)
	for _, line := range res.Tail {
		w.emit.log("  "+line, SeverityError)
	}

	timeout := w.cfg.DecisionTimeout
	title := "Encoding failed"
	message := fmt.Sprintf("%s: %s. Continue with the next file or stop the run?", name, res.Reason)
	w.emit.decisionRequested(title, message, timeout)
	w.r.logger.Warn("Awaiting crash decision", "file", name, "timeout", timeout)

	d, timedOut := w.control.AwaitDecision(ctx, timeout)
	if timedOut {
		w.emit.log(fmt.Sprintf("No decision within %s, continuing", timeout), SeverityWarning)
	}
	if d == DecisionStop {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errStopped
	}
	w.emit.log("Skipping "+name, SeverityWarning)
	return nil
}

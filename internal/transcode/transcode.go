// Package transcode runs the ffmpeg encode for one task.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/smazurov/av1forge/internal/commit"
	"github.com/smazurov/av1forge/internal/encoders"
	"github.com/smazurov/av1forge/internal/ffmpeg"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/process"
)

// TailSize is the number of diagnostic lines kept for a failed encode.
const TailSize = 20

// Kind classifies how an encode ended.
type Kind int

const (
	// Succeeded: exit 0 and a plausible output file.
	Succeeded Kind = iota
	// Crashed: non-zero exit, spawn failure, or missing/undersized output.
	Crashed
	// Cancelled: killed on request.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Crashed:
		return "crashed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Gate blocks while the run is paused.
type Gate interface {
	WaitIfPaused(ctx context.Context) error
}

// Request describes one encode.
type Request struct {
	Task            job.MediaTask
	Profile         encoders.Profile
	Video           encoders.Options
	AudioBitrate    string
	AudioSampleRate int
	AudioChannels   int // 0 = unknown
	LoudnessFilter  string
	Duration        float64 // 0 disables percentages
	CacheDir        string
}

// Result of an encode. TempPath only exists on disk when Kind is
// Succeeded; every other path has already removed it.
type Result struct {
	Kind        Kind
	TempPath    string
	ExitCode    int
	OutputBytes int64
	Tail        []string
	Reason      string
}

// Callbacks receive encode progress. Either may be nil.
type Callbacks struct {
	// Progress gets a percentage in [0, 100] that never decreases.
	Progress func(percent float64)
	// Stats gets each completed -progress block.
	Stats func(ffmpeg.Snapshot)
}

// Transcoder runs ffmpeg through the supervisor.
type Transcoder struct {
	sup    *process.Supervisor
	binary string
	logger logging.Logger
	output logging.Logger
	now    func() time.Time
}

// New creates a transcoder. output receives ffmpeg diagnostics.
func New(sup *process.Supervisor, binary string, logger, output logging.Logger) *Transcoder {
	return &Transcoder{sup: sup, binary: binary, logger: logger, output: output, now: time.Now}
}

// TempPath returns {base}_{unix}.temp.mkv inside cacheDir when it is an
// existing directory, otherwise beside the source.
func TempPath(task job.MediaTask, cacheDir string, now time.Time) string {
	dir := task.Dir()
	if cacheDir != "" {
		if info, err := os.Stat(cacheDir); err == nil && info.IsDir() {
			dir = cacheDir
		}
	}
	name := task.BaseName + "_" + strconv.FormatInt(now.Unix(), 10) + ".temp." + job.TargetExtension
	return filepath.Join(dir, name)
}

// BuildParams maps a request onto ffmpeg parameters.
func BuildParams(req Request, tempPath string) *ffmpeg.Params {
	return &ffmpeg.Params{
		Input:           req.Task.SourcePath,
		Output:          tempPath,
		GlobalArgs:      req.Profile.GlobalArgs(),
		VideoArgs:       req.Profile.VideoArgs(req.Video),
		AudioBitrate:    req.AudioBitrate,
		AudioSampleRate: req.AudioSampleRate,
		AudioChannels:   req.AudioChannels,
		AudioFilter:     req.LoudnessFilter,
		SubtitleCodec:   ffmpeg.SubtitleCodecFor(req.Task.Extension),
	}
}

// Run performs the encode. Cancellation through ctx kills the process tree
// and reports Cancelled.
func (t *Transcoder) Run(ctx context.Context, req Request, gate Gate, cb Callbacks) Result {
	tempPath := TempPath(req.Task, req.CacheDir, t.now())
	res := Result{TempPath: tempPath, ExitCode: -1}
	tail := process.NewTail(TailSize)

	args := ffmpeg.BuildTranscodeArgs(BuildParams(req, tempPath))
	h, err := t.sup.Spawn(ctx, t.binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			res.Kind = Cancelled
			return res
		}
		tail.Push(err.Error())
		return t.crash(res, tail, fmt.Sprintf("failed to start ffmpeg: %v", err))
	}
	defer h.Close()

	progress := newProgressTracker(req.Duration, cb.Progress)
	parser := ffmpeg.NewProgressParser()

	for {
		if gate != nil {
			if err := gate.WaitIfPaused(ctx); err != nil {
				return t.cancel(res, h)
			}
		}
		line, err := h.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return t.cancel(res, h)
		}

		if elapsed, ok := ffmpeg.ParseProgressTime(line); ok {
			progress.update(elapsed)
		}
		if ffmpeg.IsProgressLine(line) {
			if snap, ok := parser.Feed(line); ok && cb.Stats != nil {
				cb.Stats(snap)
			}
			continue
		}

		tail.Push(line)
		logLine(t.output, line)
	}

	res.ExitCode = h.Wait()
	if res.ExitCode != 0 {
		return t.crash(res, tail, fmt.Sprintf("ffmpeg exited with code %d", res.ExitCode))
	}
	size, err := commit.Verify(tempPath)
	if err != nil {
		return t.crash(res, tail, err.Error())
	}

	progress.finish()
	res.Kind = Succeeded
	res.OutputBytes = size
	return res
}

func (t *Transcoder) crash(res Result, tail *process.Tail, reason string) Result {
	res.Kind = Crashed
	res.Reason = reason
	res.Tail = tail.Lines()
	t.removeTemp(res.TempPath)
	return res
}

func (t *Transcoder) cancel(res Result, h *process.Handle) Result {
	h.Kill()
	res.ExitCode = h.Wait()
	res.Kind = Cancelled
	t.removeTemp(res.TempPath)
	return res
}

func (t *Transcoder) removeTemp(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		t.logger.Warn("Failed to remove temporary output", "path", path, "error", err)
	}
}

// logLine forwards an ffmpeg diagnostic line at the level ffmpeg tagged it.
func logLine(logger logging.Logger, line string) {
	level, msg := ffmpeg.ParseLogLevel(line)
	switch {
	case level >= slog.LevelError:
		logger.Error(msg)
	case level >= slog.LevelWarn:
		logger.Warn(msg)
	default:
		logger.Debug(msg)
	}
}

// progressTracker turns elapsed times into whole-percent steps that never go
// backwards. The stats line and the progress protocol report slightly
// different times, so only increases are emitted.
type progressTracker struct {
	duration float64
	emit     func(float64)
	last     float64
}

func newProgressTracker(duration float64, emit func(float64)) *progressTracker {
	return &progressTracker{duration: duration, emit: emit, last: -1}
}

func (p *progressTracker) update(elapsed float64) {
	pct, ok := ffmpeg.Percent(elapsed, p.duration)
	if !ok || p.emit == nil {
		return
	}
	step := float64(int(pct))
	if step <= p.last {
		return
	}
	p.last = step
	p.emit(step)
}

// finish reports 100% for a successful encode whose last marker fell short.
func (p *progressTracker) finish() {
	if p.duration > 0 && p.emit != nil && p.last < 100 {
		p.last = 100
		p.emit(100)
	}
}

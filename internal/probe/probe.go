// Package probe runs ffprobe queries against source files.
package probe

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/smazurov/av1forge/internal/ffmpeg"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/process"
)

// Result is what the pipeline needs to know about a source file. Zero
// values mean unknown.
type Result struct {
	Codec         string
	Duration      float64
	AudioChannels int
}

// AlreadyTarget reports whether the task is already AV1 in Matroska and
// can be skipped. The container matters as well as the codec: an AV1 MP4
// is still remuxed.
func (r Result) AlreadyTarget(task job.MediaTask) bool {
	return strings.Contains(r.Codec, job.TargetCodec) && task.Extension == "."+job.TargetExtension
}

// Prober runs the single-value queries. Every query is best-effort: a
// failure yields "unknown" and never blocks the others.
type Prober struct {
	sup     *process.Supervisor
	ffprobe string
	logger  logging.Logger
}

// New creates a prober running ffprobePath through the supervisor.
func New(sup *process.Supervisor, ffprobePath string, logger logging.Logger) *Prober {
	return &Prober{sup: sup, ffprobe: ffprobePath, logger: logger}
}

// Probe runs all three queries.
func (p *Prober) Probe(ctx context.Context, path string) Result {
	var r Result
	r.Codec, _ = p.Codec(ctx, path)
	r.Duration, _ = p.Duration(ctx, path)
	r.AudioChannels, _ = p.AudioChannels(ctx, path)
	return r
}

// Codec returns the lower-cased codec name of the first video stream.
func (p *Prober) Codec(ctx context.Context, path string) (string, bool) {
	v, ok := p.query(ctx, "codec", ffmpeg.CodecProbeArgs(path))
	if !ok {
		return "", false
	}
	return strings.ToLower(v), true
}

// Duration returns the container duration in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, bool) {
	v, ok := p.query(ctx, "duration", ffmpeg.DurationProbeArgs(path))
	if !ok {
		return 0, false
	}
	return ParseDuration(v)
}

// AudioChannels returns the channel count of the first audio stream.
func (p *Prober) AudioChannels(ctx context.Context, path string) (int, bool) {
	v, ok := p.query(ctx, "channels", ffmpeg.AudioChannelsProbeArgs(path))
	if !ok {
		return 0, false
	}
	return ParseChannels(v)
}

func (p *Prober) query(ctx context.Context, what string, args []string) (string, bool) {
	lines, code, err := p.sup.Output(ctx, p.ffprobe, args...)
	if err != nil {
		p.logger.Debug("Probe failed", "query", what, "error", err)
		return "", false
	}
	if code != 0 {
		p.logger.Debug("Probe exited with error", "query", what, "exit_code", code)
		return "", false
	}
	v := FirstValue(lines)
	return v, v != ""
}

// FirstValue returns the first non-empty trimmed line.
func FirstValue(lines []string) string {
	for _, l := range lines {
		if v := strings.TrimSpace(l); v != "" {
			return v
		}
	}
	return ""
}

// ParseDuration parses an ffprobe duration. "N/A", negative and non-finite
// values are unknown.
func ParseDuration(s string) (float64, bool) {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || d <= 0 || math.IsInf(d, 0) || math.IsNaN(d) {
		return 0, false
	}
	return d, true
}

// ParseChannels parses an ffprobe channel count.
func ParseChannels(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

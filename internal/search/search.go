// Package search runs ab-av1 crf-search to find the quantization value
// that meets a target VMAF score.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/smazurov/av1forge/internal/encoders"
	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/process"
)

// ErrCancelled is returned when the search was cancelled.
var ErrCancelled = errors.New("quality search cancelled")

// Fallback values when the search yields no trial.
const (
	FallbackQP = 24
	TailSize   = 5
)

// Gate blocks while the run is paused.
type Gate interface {
	WaitIfPaused(ctx context.Context) error
}

// Request describes one search.
type Request struct {
	Source        string
	TargetQuality float64
	Preset        int
	Profile       encoders.Profile
	CacheDir      string // --temp-dir when it is an existing directory
}

// Result of a search. When Succeeded is false, QP is FallbackQP and Tail
// holds the last output lines for diagnostics.
type Result struct {
	QP        int
	Score     float64
	Succeeded bool
	ExitCode  int
	Tail      []string
}

// Searcher runs ab-av1 through the supervisor.
type Searcher struct {
	sup    *process.Supervisor
	binary string
	logger logging.Logger
	output logging.Logger
}

// New creates a searcher. output receives the raw tool output at debug
// level.
func New(sup *process.Supervisor, binary string, logger, output logging.Logger) *Searcher {
	return &Searcher{sup: sup, binary: binary, logger: logger, output: output}
}

// BuildArgs returns the crf-search arguments.
func BuildArgs(req Request) []string {
	args := []string{"crf-search", "-i", req.Source}
	args = append(args, req.Profile.SearchArgs(req.Preset)...)
	args = append(args,
		"--min-vmaf", strconv.FormatFloat(req.TargetQuality, 'f', -1, 64),
		"--pix-format", encoders.SearchPixelFormat,
	)
	if req.CacheDir != "" {
		if info, err := os.Stat(req.CacheDir); err == nil && info.IsDir() {
			args = append(args, "--temp-dir", req.CacheDir)
		}
	}
	return args
}

// Run executes the search. onTrial, if set, is called for each completed
// trial in output order. The only error is a wrapped ErrCancelled; every
// tool failure is folded into a Result with Succeeded false.
func (s *Searcher) Run(ctx context.Context, req Request, gate Gate, onTrial func(Trial)) (Result, error) {
	result := Result{QP: FallbackQP, ExitCode: -1}
	tail := process.NewTail(TailSize)

	h, err := s.sup.Spawn(ctx, s.binary, BuildArgs(req)...)
	if err != nil {
		if ctx.Err() != nil {
			return result, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		s.logger.Warn("Failed to start quality search", "error", err)
		tail.Push(err.Error())
		result.Tail = tail.Lines()
		return result, nil
	}
	defer h.Close()

	cancel := func(cause error) (Result, error) {
		h.Kill()
		result.ExitCode = h.Wait()
		result.Tail = tail.Lines()
		return result, fmt.Errorf("%w: %w", ErrCancelled, cause)
	}

	var last Trial
	found := false
	for {
		if gate != nil {
			if err := gate.WaitIfPaused(ctx); err != nil {
				return cancel(err)
			}
		}
		line, err := h.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cancel(err)
		}

		tail.Push(line)
		s.output.Debug(line)

		if t, ok := ClassifyLine(line); ok {
			last, found = t, true
			if onTrial != nil {
				onTrial(t)
			}
		}
	}

	result.ExitCode = h.Wait()
	result.Tail = tail.Lines()
	if found {
		result.QP = last.QP
		result.Score = last.Score
		result.Succeeded = true
	}
	return result, nil
}

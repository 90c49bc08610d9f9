// Package commit moves finished encodes into their final location.
package commit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/logging"
)

// MinOutputSize is the smallest encode accepted as real output, in bytes.
const MinOutputSize = 1024

// OptimizedSuffix is appended to the base name in Remain mode.
const OptimizedSuffix = "-optimized"

// ErrDestinationIsSource rejects a non-overwriting commit onto the source.
var ErrDestinationIsSource = errors.New("destination is the source file")

// Stage names the commit step that failed.
type Stage string

const (
	StageVerify  Stage = "verify"
	StagePrepare Stage = "prepare"
	StageBackup  Stage = "backup"
	StageMove    Stage = "move"
)

// Error is a commit failure. Only a StageMove failure leaves the temporary
// file in place for inspection.
type Error struct {
	Stage Stage
	Path  string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("commit %s %s: %v", e.Stage, e.Path, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Verify checks that an encode produced a plausible file and returns its
// size.
func Verify(path string) (int64, error) {
	info, err := os.Stat(longPath(path))
	if err != nil {
		return 0, fmt.Errorf("output missing: %w", err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("output %s is a directory", path)
	}
	if info.Size() <= MinOutputSize {
		return info.Size(), fmt.Errorf("output too small: %d bytes", info.Size())
	}
	return info.Size(), nil
}

// Destination returns where a task's output goes. It depends only on the
// save mode, the source location and the export directory.
func Destination(mode job.SaveMode, task job.MediaTask, exportDir string) (string, error) {
	name := task.BaseName + "." + job.TargetExtension
	switch mode {
	case job.SaveOverwrite:
		return filepath.Join(task.Dir(), name), nil
	case job.SaveAs:
		if exportDir == "" {
			return "", errors.New("export directory not set")
		}
		abs, err := filepath.Abs(exportDir)
		if err != nil {
			return "", err
		}
		return filepath.Join(abs, name), nil
	case job.SaveRemain:
		return filepath.Join(task.Dir(), task.BaseName+OptimizedSuffix+"."+job.TargetExtension), nil
	default:
		return "", fmt.Errorf("unknown save mode %q", mode)
	}
}

// Manager commits encodes.
type Manager struct {
	logger logging.Logger
	now    func() time.Time
	move   func(src, dst string) error
}

// NewManager creates a commit manager.
func NewManager(logger logging.Logger) *Manager {
	return &Manager{logger: logger, now: time.Now, move: move}
}

// Commit moves tempPath to the task's destination under mode and returns
// the destination. On error the temporary file is removed unless the
// failure happened during the move itself.
func (m *Manager) Commit(task job.MediaTask, tempPath string, mode job.SaveMode, exportDir string) (string, error) {
	dest, err := Destination(mode, task, exportDir)
	if err != nil {
		m.discard(tempPath)
		return "", &Error{Stage: StagePrepare, Path: task.SourcePath, Cause: err}
	}
	if _, err := Verify(tempPath); err != nil {
		m.discard(tempPath)
		return "", &Error{Stage: StageVerify, Path: tempPath, Cause: err}
	}

	switch mode {
	case job.SaveAs:
		if err := os.MkdirAll(longPath(filepath.Dir(dest)), 0o755); err != nil {
			m.discard(tempPath)
			return "", &Error{Stage: StagePrepare, Path: filepath.Dir(dest), Cause: err}
		}
	case job.SaveOverwrite:
		if samePath(dest, task.SourcePath) {
			return m.replaceInPlace(task, tempPath, dest)
		}
	}

	// SaveAs into the source directory would otherwise delete the source
	if mode != job.SaveOverwrite && samePath(dest, task.SourcePath) {
		m.discard(tempPath)
		return "", &Error{Stage: StagePrepare, Path: dest, Cause: ErrDestinationIsSource}
	}

	if err := removeIfExists(dest); err != nil {
		m.discard(tempPath)
		return "", &Error{Stage: StagePrepare, Path: dest, Cause: err}
	}
	if err := m.move(tempPath, dest); err != nil {
		return "", &Error{Stage: StageMove, Path: dest, Cause: err}
	}

	if mode == job.SaveOverwrite && !samePath(dest, task.SourcePath) {
		if err := os.Remove(longPath(task.SourcePath)); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("Converted file is in place but the source could not be removed",
				"source", task.SourcePath, "error", err)
		}
	}
	return dest, nil
}

// replaceInPlace handles a destination equal to the source: the source is
// parked under a backup name until the new file is in place, so a failed
// move never destroys the only copy.
func (m *Manager) replaceInPlace(task job.MediaTask, tempPath, dest string) (string, error) {
	backup := BackupPath(task.SourcePath, m.now())
	if err := os.Rename(longPath(task.SourcePath), longPath(backup)); err != nil {
		m.discard(tempPath)
		return "", &Error{Stage: StageBackup, Path: task.SourcePath, Cause: err}
	}

	if err := m.move(tempPath, dest); err != nil {
		if rerr := os.Rename(longPath(backup), longPath(task.SourcePath)); rerr != nil {
			m.logger.Error("Failed to restore source from backup", "backup", backup, "error", rerr)
		}
		return "", &Error{Stage: StageMove, Path: dest, Cause: err}
	}

	if err := os.Remove(longPath(backup)); err != nil {
		m.logger.Warn("Converted file is in place but the backup could not be removed",
			"backup", backup, "error", err)
	}
	return dest, nil
}

// BackupPath returns the name the source is parked under during an in-place
// replace.
func BackupPath(source string, now time.Time) string {
	return source + ".av1forge-" + strconv.FormatInt(now.Unix(), 10) + ".bak"
}

func (m *Manager) discard(tempPath string) {
	if err := os.Remove(longPath(tempPath)); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("Failed to remove temporary output", "path", tempPath, "error", err)
	}
}

func removeIfExists(path string) error {
	err := os.Remove(longPath(path))
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

package job

import (
	"path/filepath"
	"strings"
	"time"
)

// Target format every task is converted to.
const (
	TargetCodec     = "av1"
	TargetExtension = "mkv"
)

// MediaTask is one source file to convert. It is created once by Enumerate
// and never modified afterwards.
type MediaTask struct {
	SourcePath string // absolute, cleaned
	BaseName   string // file name without extension
	Extension  string // lower-case, with leading dot
}

// NewMediaTask builds a task from an absolute source path.
func NewMediaTask(path string) MediaTask {
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	return MediaTask{
		SourcePath: path,
		BaseName:   strings.TrimSuffix(name, ext),
		Extension:  strings.ToLower(ext),
	}
}

// Dir returns the directory containing the source file.
func (t MediaTask) Dir() string {
	return filepath.Dir(t.SourcePath)
}

// Outcome is the terminal result of a task.
type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeCrashed   Outcome = "crashed"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// TaskReport describes a finished task.
type TaskReport struct {
	Index       int
	Task        MediaTask
	Outcome     Outcome
	Destination string
	QP          int
	Score       float64
	Duration    time.Duration
	InputBytes  int64
	OutputBytes int64
	Err         error
}

// BytesSaved returns the size difference between input and output, or 0 if
// either is unknown.
func (r TaskReport) BytesSaved() int64 {
	if r.InputBytes <= 0 || r.OutputBytes <= 0 {
		return 0
	}
	return r.InputBytes - r.OutputBytes
}

package events

// Event type constants for kelindar/event.
const (
	TypeRunState uint32 = iota + 1
	TypeTaskStarted
	TypeTaskPhase
	TypeTaskDone
	TypeProgress
	TypeRunLog
	TypeDecisionRequested
	TypeEncodeStats
	TypeRunFinished
	TypeLogEntry
	TypeRunStatus
	TypeRunEvent
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RunStateEvent is published when the run changes state.
type RunStateEvent struct {
	RunID     string `json:"run_id" example:"0b6f8c1e-2f7a-4c84-9a3e-1c2d3e4f5a6b" doc:"Run identifier"`
	State     string `json:"state" example:"paused" doc:"Run state: running, paused, completed, cancelled, fatal"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RunStateEvent.
func (e RunStateEvent) Type() uint32 { return TypeRunState }

// TaskStartedEvent is published when a file enters the pipeline.
type TaskStartedEvent struct {
	RunID     string `json:"run_id" doc:"Run identifier"`
	Index     int    `json:"index" example:"0" doc:"Zero-based task index"`
	Total     int    `json:"total" example:"12" doc:"Number of tasks in the run"`
	Path      string `json:"path" example:"/media/movies/clip.mp4" doc:"Source file"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TaskStartedEvent.
func (e TaskStartedEvent) Type() uint32 { return TypeTaskStarted }

// TaskPhaseEvent is published on every per-task state change.
type TaskPhaseEvent struct {
	RunID string `json:"run_id" doc:"Run identifier"`
	Index int    `json:"index" doc:"Zero-based task index"`
	Phase string `json:"phase" example:"encoding" doc:"probing, searching, encoding, committing or done"`
}

// Type returns the event type identifier for TaskPhaseEvent.
func (e TaskPhaseEvent) Type() uint32 { return TypeTaskPhase }

// TaskDoneEvent is published when a file reaches a terminal outcome.
type TaskDoneEvent struct {
	RunID           string  `json:"run_id" doc:"Run identifier"`
	Index           int     `json:"index" doc:"Zero-based task index"`
	Path            string  `json:"path" doc:"Source file"`
	Outcome         string  `json:"outcome" example:"committed" doc:"committed, skipped, crashed, failed or cancelled"`
	Destination     string  `json:"destination,omitempty" doc:"Committed file"`
	QP              int     `json:"qp,omitempty" example:"27" doc:"Quantization parameter used"`
	VMAF            float64 `json:"vmaf,omitempty" example:"93.4" doc:"Score of the selected search trial"`
	DurationSeconds float64 `json:"duration_seconds" doc:"Wall time spent on the task"`
	InputBytes      int64   `json:"input_bytes,omitempty" doc:"Source size"`
	OutputBytes     int64   `json:"output_bytes,omitempty" doc:"Encoded size"`
	Error           string  `json:"error,omitempty" doc:"Failure reason"`
}

// Type returns the event type identifier for TaskDoneEvent.
func (e TaskDoneEvent) Type() uint32 { return TypeTaskDone }

// Progress scopes.
const (
	ScopeTotal   = "total"
	ScopeCurrent = "current"
)

// ProgressEvent carries the overall or current-file percentage.
type ProgressEvent struct {
	RunID   string  `json:"run_id" doc:"Run identifier"`
	Scope   string  `json:"scope" example:"current" doc:"total or current"`
	Percent float64 `json:"percent" example:"42" doc:"Completion percentage in [0, 100]"`
}

// Type returns the event type identifier for ProgressEvent.
func (e ProgressEvent) Type() uint32 { return TypeProgress }

// RunLogEvent is a severity-tagged run message, in worker order.
type RunLogEvent struct {
	Seq       uint64 `json:"seq" example:"42" doc:"Monotonic sequence number"`
	RunID     string `json:"run_id" doc:"Run identifier"`
	Severity  string `json:"severity" example:"warning" doc:"info, success, warning or error"`
	Message   string `json:"message" doc:"Log message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00.123Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RunLogEvent.
func (e RunLogEvent) Type() uint32 { return TypeRunLog }

// DecisionRequestedEvent announces a crash escalation awaiting an answer.
type DecisionRequestedEvent struct {
	RunID          string  `json:"run_id" doc:"Run identifier"`
	Title          string  `json:"title" example:"Encoding failed" doc:"Prompt title"`
	Message        string  `json:"message" doc:"Prompt body"`
	TimeoutSeconds float64 `json:"timeout_seconds" example:"30" doc:"Seconds until continue is applied"`
	Deadline       string  `json:"deadline" example:"2025-01-27T10:30:30Z" doc:"When continue is applied"`
}

// Type returns the event type identifier for DecisionRequestedEvent.
func (e DecisionRequestedEvent) Type() uint32 { return TypeDecisionRequested }

// EncodeStatsEvent carries one ffmpeg progress block.
type EncodeStatsEvent struct {
	RunID   string  `json:"run_id"`
	Index   int     `json:"index"`
	Frame   int64   `json:"frame"`
	FPS     float64 `json:"fps"`
	Speed   float64 `json:"speed"`
	OutTime float64 `json:"out_time"`
}

// Type returns the event type identifier for EncodeStatsEvent.
func (e EncodeStatsEvent) Type() uint32 { return TypeEncodeStats }

// RunFinishedEvent is the last event of a run.
type RunFinishedEvent struct {
	RunID          string  `json:"run_id" doc:"Run identifier"`
	State          string  `json:"state" example:"completed" doc:"Terminal run state"`
	Total          int     `json:"total" doc:"Number of tasks"`
	Committed      int     `json:"committed" doc:"Files converted and saved"`
	Skipped        int     `json:"skipped" doc:"Files already in the target format"`
	Crashed        int     `json:"crashed" doc:"Files whose encode crashed"`
	Failed         int     `json:"failed" doc:"Files that could not be saved"`
	BytesSaved     int64   `json:"bytes_saved" doc:"Total size reduction"`
	ElapsedSeconds float64 `json:"elapsed_seconds" doc:"Run wall time"`
	Error          string  `json:"error,omitempty" doc:"Reason for a fatal run"`
	Timestamp      string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RunFinishedEvent.
func (e RunFinishedEvent) Type() uint32 { return TypeRunFinished }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"runner" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
	Line       string         `json:"line" doc:"The entry rendered as a single display line"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }

// RunStatusEvent is a periodic snapshot of the run for dashboards.
type RunStatusEvent struct {
	RunID            string  `json:"run_id" doc:"Run identifier"`
	State            string  `json:"state" example:"running" doc:"Run state"`
	TaskIndex        int     `json:"task_index" doc:"Zero-based index of the current task, -1 before the first"`
	TaskTotal        int     `json:"task_total" doc:"Number of tasks"`
	CurrentFile      string  `json:"current_file,omitempty" doc:"Source file being processed"`
	Phase            string  `json:"phase,omitempty" doc:"Per-task phase"`
	ProgressTotal    float64 `json:"progress_total" doc:"Overall percentage"`
	ProgressCurrent  float64 `json:"progress_current" doc:"Current file percentage"`
	AwaitingDecision bool    `json:"awaiting_decision" doc:"A crash decision is pending"`
	FPS              float64 `json:"fps,omitempty" doc:"Current encoding FPS"`
	Speed            float64 `json:"speed,omitempty" doc:"Current encoding speed multiplier"`
}

// Type returns the event type identifier for RunStatusEvent.
func (e RunStatusEvent) Type() uint32 { return TypeRunStatus }

// RunEvent wraps every event the run observer publishes, numbered in worker
// order. The bus delivers each event type on its own queue, so consumers
// that need the order across types subscribe to RunEvent instead.
type RunEvent struct {
	Seq   uint64
	Event Event
}

// Type returns the event type identifier for RunEvent.
func (e RunEvent) Type() uint32 { return TypeRunEvent }

package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit SHA"`
	BuildDate string `json:"build_date" example:"2024-12-15 14:30" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"a1b2c3d4" doc:"Unique build identifier"`
	GoVersion string `json:"go_version" example:"go1.21.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Compiler used"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Platform"`
}

type VersionResponse struct {
	Body VersionData
}

// RunStatusData is a snapshot of the batch run.
type RunStatusData struct {
	RunID            string  `json:"run_id" example:"0b6f8c1e-2f7a-4c84-9a3e-1c2d3e4f5a6b" doc:"Run identifier, empty before the first run"`
	State            string  `json:"state" example:"running" enum:"idle,running,paused,completed,cancelled,fatal" doc:"Run state"`
	TaskIndex        int     `json:"task_index" example:"3" doc:"Zero-based index of the current task, -1 before the first"`
	TaskTotal        int     `json:"task_total" example:"12" doc:"Number of tasks in the run"`
	CurrentFile      string  `json:"current_file,omitempty" example:"/media/movies/clip.mp4" doc:"Source file being processed"`
	Phase            string  `json:"phase,omitempty" example:"encoding" doc:"probing, searching, encoding, committing or done"`
	ProgressTotal    float64 `json:"progress_total" example:"25" doc:"Overall percentage"`
	ProgressCurrent  float64 `json:"progress_current" example:"61" doc:"Current file percentage"`
	AwaitingDecision bool    `json:"awaiting_decision" example:"false" doc:"A crash decision is pending"`
	StartedAt        string  `json:"started_at,omitempty" example:"2025-01-27T10:30:00Z" doc:"When the run started"`
}

type RunStatusResponse struct {
	Body RunStatusData
}

// RunActionData reports the result of a control request.
type RunActionData struct {
	Action  string `json:"action" example:"pause" doc:"Requested action"`
	Applied bool   `json:"applied" example:"true" doc:"Whether the run changed state"`
	State   string `json:"state,omitempty" example:"paused" doc:"Run state after the request"`
}

type RunActionResponse struct {
	Body RunActionData
}

// DecisionRequest answers a crash escalation.
type DecisionRequest struct {
	Body struct {
		Decision string `json:"decision" enum:"continue,stop" example:"continue" doc:"continue skips the crashed file, stop ends the run"`
	}
}

// EncoderData lists AV1 hardware encoders compiled into ffmpeg.
type EncoderData struct {
	Encoders []EncoderInfo `json:"encoders" doc:"AV1 hardware encoders reported by ffmpeg"`
	Count    int           `json:"count" example:"2" doc:"Number of encoders"`
}

type EncoderInfo struct {
	Name        string `json:"name" example:"av1_qsv" doc:"ffmpeg encoder name"`
	Backend     string `json:"backend" example:"qsv" doc:"Backend selectable in the config"`
	Description string `json:"description" example:"AV1 (Intel Quick Sync Video acceleration)" doc:"Description from ffmpeg"`
}

type EncodersResponse struct {
	Body EncoderData
}

package job

import (
	"fmt"
	"strings"
	"time"

	"github.com/smazurov/av1forge/internal/encoders"
)

// SaveMode decides where a converted file goes and whether the source stays.
type SaveMode string

const (
	SaveOverwrite SaveMode = "overwrite"
	SaveAs        SaveMode = "saveas"
	SaveRemain    SaveMode = "remain"
)

// ParseSaveMode parses a save mode name, case-insensitively.
func ParseSaveMode(s string) (SaveMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "overwrite", "replace":
		return SaveOverwrite, nil
	case "saveas", "save_as", "save-as", "export":
		return SaveAs, nil
	case "remain", "keep":
		return SaveRemain, nil
	default:
		return "", fmt.Errorf("unknown save mode %q", s)
	}
}

// Defaults used when a value is not configured.
const (
	DefaultTargetQuality   = 93.0
	DefaultAudioBitrate    = "96k"
	DefaultAudioSampleRate = 48000
	DefaultPreset          = 4
	DefaultLoudnessFilter  = "loudnorm=I=-16:TP=-1.5:LRA=11,aresample=48000"
	DefaultCooldown        = 3 * time.Second
	DefaultDecisionTimeout = 30 * time.Second
)

// Tools holds the executables the pipeline drives.
type Tools struct {
	FFmpeg  string
	FFprobe string
	AbAV1   string
}

// JobConfig is captured once at run start and not modified during the run.
type JobConfig struct {
	Backend         encoders.Backend
	TargetQuality   float64
	AudioBitrate    string
	AudioSampleRate int
	Preset          int
	LoudnessFilter  string
	SaveMode        SaveMode
	ExportDir       string
	CacheDir        string
	PerceptualAQ    bool

	Tools Tools

	// Cooldown is the pause between tasks while the encoder settles.
	Cooldown time.Duration
	// DecisionTimeout bounds the wait for a crash decision.
	DecisionTimeout time.Duration
	// SuspendOnPause stops the child process group while paused instead
	// of only halting output consumption.
	SuspendOnPause bool
	// KeepAwake holds a sleep inhibitor for the whole run.
	KeepAwake bool
	// ShutdownWhenDone powers the machine off after a completed run.
	ShutdownWhenDone bool
}

// DefaultConfig returns a QSV configuration with the stock defaults.
func DefaultConfig() JobConfig {
	return JobConfig{
		Backend:         encoders.BackendQSV,
		TargetQuality:   DefaultTargetQuality,
		AudioBitrate:    DefaultAudioBitrate,
		AudioSampleRate: DefaultAudioSampleRate,
		Preset:          DefaultPreset,
		LoudnessFilter:  DefaultLoudnessFilter,
		SaveMode:        SaveOverwrite,
		Tools:           Tools{FFmpeg: "ffmpeg", FFprobe: "ffprobe", AbAV1: "ab-av1"},
		Cooldown:        DefaultCooldown,
		DecisionTimeout: DefaultDecisionTimeout,
		KeepAwake:       true,
	}
}

// Validate checks the configuration before a run starts.
func (c *JobConfig) Validate() error {
	if _, err := encoders.ProfileFor(c.Backend); err != nil {
		return invalidConfig("%v", err)
	}
	if c.TargetQuality <= 0 || c.TargetQuality > 100 {
		return invalidConfig("target quality %.2f out of range (0, 100]", c.TargetQuality)
	}
	if c.Preset < encoders.MinPreset || c.Preset > encoders.MaxPreset {
		return invalidConfig("preset %d out of range [%d, %d]", c.Preset, encoders.MinPreset, encoders.MaxPreset)
	}
	if c.AudioBitrate == "" {
		return invalidConfig("audio bitrate is empty")
	}
	if c.AudioSampleRate <= 0 {
		return invalidConfig("audio sample rate %d must be positive", c.AudioSampleRate)
	}
	switch c.SaveMode {
	case SaveOverwrite, SaveRemain:
	case SaveAs:
		if strings.TrimSpace(c.ExportDir) == "" {
			return invalidConfig("save mode %q requires an export directory", c.SaveMode)
		}
	default:
		return invalidConfig("unknown save mode %q", c.SaveMode)
	}
	if c.Tools.FFmpeg == "" || c.Tools.FFprobe == "" || c.Tools.AbAV1 == "" {
		return invalidConfig("tool paths must not be empty")
	}
	if c.Cooldown < 0 || c.DecisionTimeout < 0 {
		return invalidConfig("durations must not be negative")
	}
	return nil
}

package cmd

import (
	"time"

	"github.com/smazurov/av1forge/internal/encoders"
	"github.com/smazurov/av1forge/internal/job"
)

// RunOptions is the flat option set of the run command. Each field is a
// flag (see config.BindFlags), an AV1FORGE_ environment variable and a key
// in the TOML file, in that order of precedence.
type RunOptions struct {
	Config string `help:"Path to configuration file" short:"c" default:"av1forge.toml"`

	// Encoder settings
	Backend         string  `help:"AV1 hardware encoder (qsv, nvenc, amf)" short:"b" default:"qsv" toml:"encoder.backend" env:"BACKEND"`
	Preset          int     `help:"Encoder preset, 1 (slowest) to 7 (fastest)" default:"4" toml:"encoder.preset" env:"PRESET"`
	PerceptualQuant bool    `help:"Enable perceptual adaptive quantization" toml:"encoder.perceptual_aq" env:"PERCEPTUAL_AQ"`
	TargetQuality   float64 `help:"Target VMAF score for the quality search" short:"q" default:"93" toml:"quality.target_vmaf" env:"TARGET_QUALITY"`

	// Audio settings
	AudioBitrate    string `help:"Opus audio bitrate" default:"96k" toml:"audio.bitrate" env:"AUDIO_BITRATE"`
	AudioSampleRate int    `help:"Audio sample rate in Hz" default:"48000" toml:"audio.sample_rate" env:"AUDIO_SAMPLE_RATE"`
	Loudnorm        string `help:"Audio filter chain applied before encoding" default:"loudnorm=I=-16:TP=-1.5:LRA=11,aresample=48000" toml:"audio.filter" env:"LOUDNORM"`

	// Output settings
	SaveMode  string `help:"Where results go (overwrite, saveas, remain)" short:"m" default:"overwrite" toml:"output.save_mode" env:"SAVE_MODE"`
	ExportDir string `help:"Export directory for saveas mode" short:"o" toml:"output.export_dir" env:"EXPORT_DIR"`
	CacheDir  string `help:"Directory for ab-av1 sample cache" toml:"output.cache_dir" env:"CACHE_DIR"`

	// Run settings
	Cooldown         time.Duration `help:"Pause between files" default:"3s" toml:"run.cooldown" env:"COOLDOWN"`
	DecisionTimeout  time.Duration `help:"How long a crash prompt waits before continuing" default:"30s" toml:"run.decision_timeout" env:"DECISION_TIMEOUT"`
	SuspendOnPause   bool          `help:"Stop the encoder process while paused" toml:"run.suspend_on_pause" env:"SUSPEND_ON_PAUSE"`
	KeepAwake        bool          `help:"Inhibit sleep while the run is active" default:"true" toml:"power.keep_awake" env:"KEEP_AWAKE"`
	ShutdownWhenDone bool          `help:"Power off after a completed run" toml:"power.shutdown_when_done" env:"SHUTDOWN_WHEN_DONE"`

	// Tools
	Ffmpeg         string `help:"ffmpeg executable" default:"ffmpeg" toml:"tools.ffmpeg" env:"FFMPEG"`
	Ffprobe        string `help:"ffprobe executable" default:"ffprobe" toml:"tools.ffprobe" env:"FFPROBE"`
	Abav1          string `help:"ab-av1 executable" default:"ab-av1" toml:"tools.ab_av1" env:"ABAV1"`
	LegacyCodepage string `help:"Codepage for tool output that is not UTF-8 (platform default when empty)" toml:"tools.codepage" env:"LEGACY_CODEPAGE"`
	SkipPreflight  bool   `help:"Do not check ffmpeg for the selected encoder before starting" toml:"tools.skip_preflight" env:"SKIP_PREFLIGHT"`

	// API settings
	Listen       string `help:"Serve the control API on this address (disabled when empty)" short:"l" toml:"api.listen" env:"LISTEN"`
	AuthUsername string `help:"Basic auth username for the API" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password for the API" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Console settings
	Interactive   bool   `help:"Read commands from stdin even when it is not a terminal" short:"i" toml:"console.interactive" env:"INTERACTIVE"`
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

// JobConfig converts the options into the configuration a run is started
// with. It does not validate ranges; the runner does that on Start.
func (o *RunOptions) JobConfig() (job.JobConfig, error) {
	cfg := job.DefaultConfig()

	backend, err := encoders.ParseBackend(o.Backend)
	if err != nil {
		return cfg, err
	}
	mode, err := job.ParseSaveMode(o.SaveMode)
	if err != nil {
		return cfg, err
	}

	cfg.Backend = backend
	cfg.Preset = o.Preset
	cfg.PerceptualAQ = o.PerceptualQuant
	cfg.TargetQuality = o.TargetQuality
	cfg.AudioBitrate = o.AudioBitrate
	cfg.AudioSampleRate = o.AudioSampleRate
	cfg.LoudnessFilter = o.Loudnorm
	cfg.SaveMode = mode
	cfg.ExportDir = o.ExportDir
	cfg.CacheDir = o.CacheDir
	cfg.Cooldown = o.Cooldown
	cfg.DecisionTimeout = o.DecisionTimeout
	cfg.SuspendOnPause = o.SuspendOnPause
	cfg.KeepAwake = o.KeepAwake
	cfg.ShutdownWhenDone = o.ShutdownWhenDone
	cfg.Tools = job.Tools{FFmpeg: o.Ffmpeg, FFprobe: o.Ffprobe, AbAV1: o.Abav1}
	return cfg, nil
}

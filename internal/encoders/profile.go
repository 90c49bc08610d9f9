package encoders

import (
	"fmt"
	"strconv"
	"strings"
)

// Backend identifies a hardware AV1 encoder family.
type Backend string

const (
	BackendQSV   Backend = "qsv"
	BackendNVENC Backend = "nvenc"
	BackendAMF   Backend = "amf"
)

// Preset levels run from 1 (slowest, best) to 7 (fastest).
const (
	MinPreset = 1
	MaxPreset = 7
)

// Pixel formats used for 10-bit output. The search tool takes the software
// name, ffmpeg hardware encoders take the packed one.
const (
	SearchPixelFormat = "yuv420p10le"
	EncodePixelFormat = "p010le"
)

// ParseBackend accepts the backend name or the ffmpeg encoder name.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "qsv", "av1_qsv", "intel":
		return BackendQSV, nil
	case "nvenc", "av1_nvenc", "nvidia":
		return BackendNVENC, nil
	case "amf", "av1_amf", "amd":
		return BackendAMF, nil
	default:
		return "", fmt.Errorf("unknown encoder backend %q", s)
	}
}

// Options are the backend-neutral video settings for one encode.
type Options struct {
	Preset       int
	QP           int
	PixelFormat  string
	PerceptualAQ bool
}

// Profile maps Options onto one backend's ffmpeg and ab-av1 flags.
type Profile interface {
	Backend() Backend
	// Encoder is the ffmpeg encoder name.
	Encoder() string
	// GlobalArgs go before the first input.
	GlobalArgs() []string
	// VideoArgs select and configure the video encoder.
	VideoArgs(opts Options) []string
	// SearchArgs are the encoder-specific ab-av1 crf-search flags.
	SearchArgs(preset int) []string
}

// ProfileFor returns the profile for a backend.
func ProfileFor(b Backend) (Profile, error) {
	switch b {
	case BackendQSV:
		return qsvProfile{}, nil
	case BackendNVENC:
		return nvencProfile{}, nil
	case BackendAMF:
		return amfProfile{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder backend %q", b)
	}
}

// ClampPreset forces a preset level into the supported range.
func ClampPreset(level int) int {
	return max(MinPreset, min(MaxPreset, level))
}

func pixelFormat(opts Options) string {
	if opts.PixelFormat != "" {
		return opts.PixelFormat
	}
	return EncodePixelFormat
}

// qsvProfile drives Intel Quick Sync. QSV presets are numeric 1-7 already.
type qsvProfile struct{}

func (qsvProfile) Backend() Backend { return BackendQSV }
func (qsvProfile) Encoder() string  { return "av1_qsv" }

func (qsvProfile) GlobalArgs() []string {
	return []string{"-init_hw_device", "qsv=hw"}
}

func (p qsvProfile) VideoArgs(opts Options) []string {
	args := []string{
		"-c:v", p.Encoder(),
		"-preset", strconv.Itoa(ClampPreset(opts.Preset)),
		"-global_quality:v", strconv.Itoa(opts.QP),
		"-pix_fmt", pixelFormat(opts),
		"-async_depth", "1",
	}
	if opts.PerceptualAQ {
		args = append(args, "-extbrc", "1", "-look_ahead_depth", "40", "-adaptive_i", "1", "-adaptive_b", "1")
	}
	return args
}

func (p qsvProfile) SearchArgs(preset int) []string {
	return []string{"--encoder", p.Encoder(), "--preset", strconv.Itoa(ClampPreset(preset))}
}

// nvencProfile drives NVIDIA NVENC. NVENC counts p1 (fastest) to p7
// (slowest), the inverse of our level scale.
type nvencProfile struct{}

func (nvencProfile) Backend() Backend { return BackendNVENC }
func (nvencProfile) Encoder() string  { return "av1_nvenc" }
func (nvencProfile) GlobalArgs() []string {
	return nil
}

func nvencPreset(level int) string {
	return "p" + strconv.Itoa(MaxPreset+1-ClampPreset(level))
}

func (p nvencProfile) VideoArgs(opts Options) []string {
	args := []string{
		"-c:v", p.Encoder(),
		"-preset", nvencPreset(opts.Preset),
		"-tune", "hq",
		"-rc", "vbr",
		"-cq", strconv.Itoa(opts.QP),
		"-b:v", "0",
		"-pix_fmt", pixelFormat(opts),
	}
	if opts.PerceptualAQ {
		args = append(args, "-spatial-aq", "1", "-temporal-aq", "1")
	}
	return args
}

func (p nvencProfile) SearchArgs(preset int) []string {
	return []string{"--encoder", p.Encoder(), "--preset", nvencPreset(preset)}
}

// amfProfile drives AMD AMF, which only knows three quality presets.
type amfProfile struct{}

func (amfProfile) Backend() Backend { return BackendAMF }
func (amfProfile) Encoder() string  { return "av1_amf" }
func (amfProfile) GlobalArgs() []string {
	return nil
}

func amfQuality(level int) string {
	switch l := ClampPreset(level); {
	case l <= 2:
		return "quality"
	case l <= 5:
		return "balanced"
	default:
		return "speed"
	}
}

func (p amfProfile) VideoArgs(opts Options) []string {
	qp := strconv.Itoa(opts.QP)
	args := []string{
		"-c:v", p.Encoder(),
		"-quality", amfQuality(opts.Preset),
		"-rc", "cqp",
		"-qp_i", qp,
		"-qp_p", qp,
		"-pix_fmt", pixelFormat(opts),
	}
	if opts.PerceptualAQ {
		args = append(args, "-preanalysis", "1", "-aq_mode", "caq")
	}
	return args
}

// ab-av1 has no preset mapping for AMF, so the quality is passed through
// as a raw encoder option.
func (p amfProfile) SearchArgs(preset int) []string {
	return []string{"--encoder", p.Encoder(), "--enc", "quality=" + amfQuality(preset)}
}

package ffmpeg

import (
	"regexp"
	"strconv"
	"strings"
)

// timeRegex matches both the stats line ("time=00:01:02.50") and the
// progress protocol key ("out_time=00:01:02.500000"). Negative start
// values such as "out_time=-577014:32:22.77" do not match.
var timeRegex = regexp.MustCompile(`time=(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseProgressTime extracts the elapsed output time in seconds.
func ParseProgressTime(line string) (float64, bool) {
	m := timeRegex.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, err1 := strconv.Atoi(m[1])
	mins, err2 := strconv.Atoi(m[2])
	secs, err3 := strconv.ParseFloat(m[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return float64(h)*3600 + float64(mins)*60 + secs, true
}

// Percent converts elapsed time to a completion percentage clamped to
// [0, 100]. It reports false when the duration is unknown.
func Percent(elapsed, duration float64) (float64, bool) {
	if duration <= 0 {
		return 0, false
	}
	return max(0, min(100, elapsed/duration*100)), true
}

// progressKeys are the keys ffmpeg writes with -progress.
var progressKeys = map[string]bool{
	"frame":           true,
	"fps":             true,
	"bitrate":         true,
	"total_size":      true,
	"out_time_us":     true,
	"out_time_ms":     true,
	"out_time":        true,
	"dup_frames":      true,
	"drop_frames":     true,
	"speed":           true,
	"progress":        true,
	"stream_0_0_q":    true,
	"stream_0_0_psnr": true,
}

// IsProgressLine reports whether a line belongs to the progress protocol
// or the periodic stats output rather than to diagnostics.
func IsProgressLine(line string) bool {
	line = strings.TrimSpace(line)
	if strings.Contains(line, "frame=") {
		return true
	}
	key, _, ok := strings.Cut(line, "=")
	if !ok || strings.ContainsAny(key, " \t[") {
		return false
	}
	return progressKeys[key] || strings.HasPrefix(key, "stream_")
}

// Snapshot is one completed -progress block.
type Snapshot struct {
	Frame   int64
	FPS     float64
	Speed   float64
	OutTime float64 // seconds, -1 when not reported yet
	Done    bool    // progress=end
}

// ProgressParser accumulates key=value progress lines into snapshots.
type ProgressParser struct {
	data map[string]string
}

// NewProgressParser creates an empty parser.
func NewProgressParser() *ProgressParser {
	return &ProgressParser{data: make(map[string]string)}
}

// Feed consumes one line and returns a snapshot when a block completes.
func (p *ProgressParser) Feed(line string) (Snapshot, bool) {
	line = strings.TrimSpace(line)
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return Snapshot{}, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	p.data[key] = value
	if key != "progress" {
		return Snapshot{}, false
	}

	s := Snapshot{OutTime: -1, Done: value == "end"}
	if v, err := strconv.ParseInt(p.data["frame"], 10, 64); err == nil {
		s.Frame = v
	}
	if v, err := strconv.ParseFloat(p.data["fps"], 64); err == nil {
		s.FPS = v
	}
	if v, err := strconv.ParseFloat(strings.TrimSuffix(p.data["speed"], "x"), 64); err == nil {
		s.Speed = v
	}
	if t, ok := ParseProgressTime("time=" + p.data["out_time"]); ok {
		s.OutTime = t
	}
	p.data = make(map[string]string)
	return s, true
}

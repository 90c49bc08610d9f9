package ffmpeg

// Single-value ffprobe queries print one bare value per line.
var plainValue = []string{"-of", "default=noprint_wrappers=1:nokey=1"}

// CodecProbeArgs asks ffprobe for the first video stream's codec name.
func CodecProbeArgs(path string) []string {
	return probeArgs(path, "-select_streams", "v:0", "-show_entries", "stream=codec_name")
}

// DurationProbeArgs asks ffprobe for the container duration in seconds.
func DurationProbeArgs(path string) []string {
	return probeArgs(path, "-show_entries", "format=duration")
}

// AudioChannelsProbeArgs asks ffprobe for the first audio stream's channel
// count.
func AudioChannelsProbeArgs(path string) []string {
	return probeArgs(path, "-select_streams", "a:0", "-show_entries", "stream=channels")
}

// InspectArgs asks ffprobe for the full JSON description of a file.
func InspectArgs(path string) []string {
	return []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-show_chapters",
		path,
	}
}

func probeArgs(path string, query ...string) []string {
	args := append([]string{"-v", "error"}, query...)
	args = append(args, plainValue...)
	return append(args, path)
}

package ffmpeg

import (
	"cmp"
	"strconv"
)

// BuildTranscodeArgs builds the ffmpeg argument list (without the binary)
// for one transcode. The first video stream, the first audio stream and all
// subtitle streams are mapped; each map is optional so sources without
// audio or video do not fail.
func BuildTranscodeArgs(p *Params) []string {
	args := []string{"-y", "-hide_banner", "-nostdin", "-loglevel", "level+info"}

	args = append(args, p.GlobalArgs...)
	args = append(args, "-i", p.Input)

	// Video
	args = append(args, p.VideoArgs...)
	args = append(args, "-vf", cmp.Or(p.VideoFilter, EvenDimensionsFilter))

	// Audio
	channels := p.AudioChannels
	if channels <= 0 {
		channels = DefaultAudioChannels
	}
	args = append(args, "-c:a", AudioCodec)
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	if p.AudioSampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.AudioSampleRate))
	}
	args = append(args, "-ac", strconv.Itoa(channels))
	if p.AudioFilter != "" {
		args = append(args, "-af", p.AudioFilter)
	}

	// Subtitles
	args = append(args, "-c:s", cmp.Or(p.SubtitleCodec, SubtitleCopy))

	args = append(args,
		"-map", "0:v:0?",
		"-map", "0:a:0?",
		"-map", "0:s?",
	)

	args = append(args, "-progress", cmp.Or(p.ProgressURL, DefaultProgressURL))
	args = append(args, p.Output)
	return args
}

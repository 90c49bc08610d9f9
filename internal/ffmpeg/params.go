package ffmpeg

// Params holds everything needed to build one transcode command line.
type Params struct {
	Input  string
	Output string

	// Encoder profile output
	GlobalArgs []string // before -i: hardware device setup
	VideoArgs  []string // -c:v and encoder tuning

	VideoFilter string // empty = EvenDimensionsFilter

	// Audio
	AudioBitrate    string // 96k
	AudioSampleRate int    // 48000
	AudioChannels   int    // 0 = DefaultAudioChannels
	AudioFilter     string // loudness normalization, empty = none

	SubtitleCodec string // copy or subrip

	ProgressURL string // empty = pipe:1
}

// Fixed transcode settings.
const (
	EvenDimensionsFilter = "scale=trunc(iw/2)*2:trunc(ih/2)*2"
	AudioCodec           = "libopus"
	DefaultAudioChannels = 2
	DefaultProgressURL   = "pipe:1"
)

// Subtitle codecs.
const (
	SubtitleCopy   = "copy"
	SubtitleSubRip = "subrip"
)

// SubtitleCodecFor returns the subtitle codec for a source extension.
// MP4-family containers carry mov_text, which Matroska cannot store, so
// those subtitles are converted to SubRip.
func SubtitleCodecFor(ext string) string {
	switch ext {
	case ".mp4", ".mov", ".m4v":
		return SubtitleSubRip
	default:
		return SubtitleCopy
	}
}

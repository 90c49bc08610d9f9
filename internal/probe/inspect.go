package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/smazurov/av1forge/internal/ffmpeg"
)

// Report is the subset of `ffprobe -print_format json` output we present.
type Report struct {
	Format   Format    `json:"format"`
	Streams  []Stream  `json:"streams"`
	Chapters []Chapter `json:"chapters"`
}

// Format describes the container.
type Format struct {
	Filename       string            `json:"filename"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags"`
}

// Stream describes one elementary stream.
type Stream struct {
	Index          int               `json:"index"`
	CodecType      string            `json:"codec_type"`
	CodecName      string            `json:"codec_name"`
	CodecLongName  string            `json:"codec_long_name"`
	Profile        string            `json:"profile"`
	Level          int               `json:"level"`
	Width          int               `json:"width"`
	Height         int               `json:"height"`
	PixFmt         string            `json:"pix_fmt"`
	RFrameRate     string            `json:"r_frame_rate"`
	AvgFrameRate   string            `json:"avg_frame_rate"`
	ColorPrimaries string            `json:"color_primaries"`
	ColorTransfer  string            `json:"color_transfer"`
	BitRate        string            `json:"bit_rate"`
	SampleRate     string            `json:"sample_rate"`
	Channels       int               `json:"channels"`
	ChannelLayout  string            `json:"channel_layout"`
	Tags           map[string]string `json:"tags"`
}

// Chapter is one chapter marker.
type Chapter struct {
	ID        int64             `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Inspect runs ffprobe for the full description of a file.
func (p *Prober) Inspect(ctx context.Context, path string) (*Report, error) {
	lines, code, err := p.sup.Output(ctx, p.ffprobe, ffmpeg.InspectArgs(path)...)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}
	if code != 0 {
		return nil, fmt.Errorf("ffprobe exited with code %d", code)
	}
	return ParseReport([]byte(strings.Join(lines, "\n")))
}

// ParseReport decodes ffprobe JSON output.
func ParseReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &r, nil
}

// Render writes a human-readable report.
func (r *Report) Render(w io.Writer) error {
	var b strings.Builder
	rule := strings.Repeat("-", 60)

	fmt.Fprintf(&b, "Report: %s\n", filepath.Base(r.Format.Filename))
	b.WriteString(strings.Repeat("=", 60) + "\n")

	b.WriteString("Container\n")
	field(&b, "Format", orNA(r.Format.FormatLongName))
	field(&b, "Size", fmt.Sprintf("%.2f MB", atof(r.Format.Size)/1024/1024))
	field(&b, "Duration", fmt.Sprintf("%.2f s", atof(r.Format.Duration)))
	field(&b, "Bitrate", kbps(r.Format.BitRate))
	if len(r.Format.Tags) > 0 {
		field(&b, "Tags", formatTags(r.Format.Tags))
	}
	b.WriteString(rule + "\n")

	for _, s := range r.Streams {
		codec := s.CodecLongName
		if codec == "" {
			codec = orNA(s.CodecName)
		}
		switch s.CodecType {
		case "video":
			fmt.Fprintf(&b, "Stream #%d - Video\n", s.Index)
			field(&b, "Codec", codec)
			field(&b, "Resolution", fmt.Sprintf("%d x %d", s.Width, s.Height))
			field(&b, "Frame rate", fmt.Sprintf("%s (avg %s)", orNA(s.RFrameRate), orNA(s.AvgFrameRate)))
			field(&b, "Pixel format", orNA(s.PixFmt))
			field(&b, "Profile", fmt.Sprintf("%s (level %d)", orNA(s.Profile), s.Level))
			field(&b, "Color", orNA(s.ColorPrimaries)+" / "+orNA(s.ColorTransfer))
			if s.BitRate != "" {
				field(&b, "Bitrate", kbps(s.BitRate))
			}
		case "audio":
			fmt.Fprintf(&b, "Stream #%d - Audio\n", s.Index)
			field(&b, "Codec", codec)
			field(&b, "Sample rate", orNA(s.SampleRate)+" Hz")
			field(&b, "Channels", fmt.Sprintf("%d (%s)", s.Channels, orNA(s.ChannelLayout)))
			if s.BitRate != "" {
				field(&b, "Bitrate", kbps(s.BitRate))
			}
		case "subtitle":
			fmt.Fprintf(&b, "Stream #%d - Subtitle\n", s.Index)
			field(&b, "Codec", codec)
			if lang := s.Tags["language"]; lang != "" {
				field(&b, "Language", lang)
			}
		default:
			fmt.Fprintf(&b, "Stream #%d - %s\n", s.Index, orNA(s.CodecType))
			field(&b, "Codec", codec)
		}
		b.WriteString(rule + "\n")
	}

	if len(r.Chapters) > 0 {
		fmt.Fprintf(&b, "Chapters (%d)\n", len(r.Chapters))
		for _, c := range r.Chapters {
			field(&b, fmt.Sprintf("%.2f s", atof(c.StartTime)), orNA(c.Tags["title"]))
		}
		b.WriteString(rule + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func field(b *strings.Builder, name, value string) {
	fmt.Fprintf(b, "   %-14s %s\n", name+":", value)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func kbps(bitrate string) string {
	if bitrate == "" {
		return "N/A"
	}
	return fmt.Sprintf("%.0f kbps", atof(bitrate)/1000)
}

func formatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + tags[k]
	}
	return strings.Join(parts, ", ")
}

package probe

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript creates an executable shell script standing in for ffprobe.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func newTestProber(t *testing.T, script string) *Prober {
	t.Helper()
	sup := process.NewSupervisor(testLogger(), nil)
	return New(sup, writeScript(t, script), testLogger())
}

func TestProbe(t *testing.T) {
	p := newTestProber(t, `
case "$*" in
  *stream=codec_name*) echo "AV1" ;;
  *format=duration*) printf '\n 120.5\n' ;;
  *stream=channels*) echo "no such stream" >&2; exit 1 ;;
esac
`)

	r := p.Probe(context.Background(), "/media/a.mkv")
	if r.Codec != "av1" {
		t.Errorf("Codec = %q, want av1", r.Codec)
	}
	if r.Duration != 120.5 {
		t.Errorf("Duration = %v, want 120.5", r.Duration)
	}
	if r.AudioChannels != 0 {
		t.Errorf("AudioChannels = %d, want 0 (unknown)", r.AudioChannels)
	}
}

func TestProbeUnknownValues(t *testing.T) {
	p := newTestProber(t, `
case "$*" in
  *format=duration*) echo "N/A" ;;
  *stream=channels*) echo "6" ;;
esac
`)

	if _, ok := p.Codec(context.Background(), "x"); ok {
		t.Error("Codec reported known for empty output")
	}
	if _, ok := p.Duration(context.Background(), "x"); ok {
		t.Error("Duration reported known for N/A")
	}
	if n, ok := p.AudioChannels(context.Background(), "x"); !ok || n != 6 {
		t.Errorf("AudioChannels = %d, %v; want 6, true", n, ok)
	}
}

func TestProbeMissingBinary(t *testing.T) {
	sup := process.NewSupervisor(testLogger(), nil)
	p := New(sup, "/nonexistent/ffprobe", testLogger())
	r := p.Probe(context.Background(), "x")
	if r != (Result{}) {
		t.Errorf("Probe() = %+v, want zero result", r)
	}
}

func TestAlreadyTarget(t *testing.T) {
	tests := []struct {
		codec string
		file  string
		want  bool
	}{
		{"av1", "/m/a.mkv", true},
		{"av1", "/m/a.mp4", false},
		{"hevc", "/m/a.mkv", false},
		{"", "/m/a.mkv", false},
	}
	for _, tt := range tests {
		got := Result{Codec: tt.codec}.AlreadyTarget(job.NewMediaTask(tt.file))
		if got != tt.want {
			t.Errorf("AlreadyTarget(%q, %q) = %v, want %v", tt.codec, tt.file, got, tt.want)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"5400.040000", 5400.04, true},
		{" 1 ", 1, true},
		{"N/A", 0, false},
		{"0", 0, false},
		{"-3", 0, false},
		{"inf", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseDuration(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_long_name": "H.264 / AVC", "codec_type": "video",
     "profile": "High", "level": 41, "width": 1920, "height": 1080, "pix_fmt": "yuv420p",
     "r_frame_rate": "24000/1001", "avg_frame_rate": "24000/1001", "bit_rate": "8000000"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000",
     "channels": 6, "channel_layout": "5.1"},
    {"index": 2, "codec_name": "subrip", "codec_type": "subtitle", "tags": {"language": "eng"}}
  ],
  "chapters": [
    {"id": 0, "start_time": "0.000000", "end_time": "300.0", "tags": {"title": "Opening"}}
  ],
  "format": {"filename": "/media/movie.mkv", "format_name": "matroska,webm",
    "format_long_name": "Matroska / WebM", "duration": "5400.040000", "size": "1048576000",
    "bit_rate": "1553000", "tags": {"title": "Movie"}}
}`

func TestInspect(t *testing.T) {
	jsonPath := filepath.Join(t.TempDir(), "probe.json")
	if err := os.WriteFile(jsonPath, []byte(sampleJSON), 0o644); err != nil {
		t.Fatal(err)
	}
	p := newTestProber(t, "cat "+jsonPath+"\n")

	report, err := p.Inspect(context.Background(), "/media/movie.mkv")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(report.Streams) != 3 || report.Streams[1].Channels != 6 {
		t.Fatalf("streams = %+v", report.Streams)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"Report: movie.mkv",
		"Matroska / WebM",
		"1000.00 MB",
		"Stream #0 - Video",
		"1920 x 1080",
		"8000 kbps",
		"6 (5.1)",
		"Stream #2 - Subtitle",
		"eng",
		"Opening",
		"title=Movie",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestInspectFailure(t *testing.T) {
	p := newTestProber(t, "exit 1\n")
	if _, err := p.Inspect(context.Background(), "x"); err == nil {
		t.Error("expected error for failing ffprobe")
	}

	p = newTestProber(t, "echo not json\n")
	if _, err := p.Inspect(context.Background(), "x"); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

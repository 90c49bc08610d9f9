package transcode

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/smazurov/av1forge/internal/encoders"
	"github.com/smazurov/av1forge/internal/ffmpeg"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/process"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeScript creates a fake ffmpeg. $out holds the last argument.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\nfor out; do :; done\n" + body
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

type fixture struct {
	tr      *Transcoder
	sup     *process.Supervisor
	request Request
	cache   string
}

func newFixture(t *testing.T, script string) *fixture {
	t.Helper()
	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "movie.mp4")
	if err := os.WriteFile(src, []byte("source"), 0o644); err != nil {
		t.Fatal(err)
	}
	profile, _ := encoders.ProfileFor(encoders.BackendQSV)

	sup := process.NewSupervisor(testLogger(), nil)
	tr := New(sup, writeScript(t, script), testLogger(), testLogger())
	tr.now = func() time.Time { return time.Unix(1700000000, 0) }

	cache := t.TempDir()
	return &fixture{
		tr:  tr,
		sup: sup,
		request: Request{
			Task:            job.NewMediaTask(src),
			Profile:         profile,
			Video:           encoders.Options{Preset: 4, QP: 26},
			AudioBitrate:    "96k",
			AudioSampleRate: 48000,
			Duration:        10,
			CacheDir:        cache,
		},
		cache: cache,
	}
}

func TestRunSuccess(t *testing.T) {
	f := newFixture(t, `
echo "[info] Input #0, mov,mp4,m4a,3gp,3g2,mj2"
echo "out_time=00:00:05.000000"
echo "fps=30.0"
echo "progress=continue"
echo "[info] frame=  10 fps=5 time=00:00:07.50 speed=1x" >&2
echo "out_time=00:00:04.000000"
echo "progress=continue"
echo "out_time=00:00:12.000000"
echo "progress=end"
head -c 4096 /dev/zero > "$out"
`)

	var percents []float64
	var snaps []ffmpeg.Snapshot
	res := f.tr.Run(context.Background(), f.request, nil, Callbacks{
		Progress: func(p float64) { percents = append(percents, p) },
		Stats:    func(s ffmpeg.Snapshot) { snaps = append(snaps, s) },
	})

	if res.Kind != Succeeded {
		t.Fatalf("Kind = %v (%s), tail %q", res.Kind, res.Reason, res.Tail)
	}
	if want := filepath.Join(f.cache, "movie_1700000000.temp.mkv"); res.TempPath != want {
		t.Errorf("TempPath = %q, want %q", res.TempPath, want)
	}
	if res.OutputBytes != 4096 {
		t.Errorf("OutputBytes = %d, want 4096", res.OutputBytes)
	}
	if want := []float64{50, 75, 100}; !reflect.DeepEqual(percents, want) {
		t.Errorf("percents = %v, want %v", percents, want)
	}
	if len(snaps) != 3 || !snaps[2].Done || snaps[0].FPS != 30 {
		t.Errorf("snapshots = %+v", snaps)
	}
	// Diagnostics only, progress lines excluded
	if len(res.Tail) != 0 {
		t.Errorf("success result should not carry a tail, got %q", res.Tail)
	}
}

func TestRunWithoutDurationEmitsNoProgress(t *testing.T) {
	f := newFixture(t, `
echo "out_time=00:00:05.000000"
echo "progress=end"
head -c 4096 /dev/zero > "$out"
`)
	f.request.Duration = 0

	called := false
	res := f.tr.Run(context.Background(), f.request, nil, Callbacks{Progress: func(float64) { called = true }})
	if res.Kind != Succeeded {
		t.Fatalf("Kind = %v", res.Kind)
	}
	if called {
		t.Error("progress reported without a known duration")
	}
}

func TestRunCrash(t *testing.T) {
	f := newFixture(t, `
i=0
while [ $i -lt 25 ]; do echo "[info] diag $i"; i=$((i+1)); done
echo "frame=  1 fps=0 time=00:00:00.04" >&2
echo "[error] Error while opening encoder" >&2
head -c 4096 /dev/zero > "$out"
exit 1
`)

	res := f.tr.Run(context.Background(), f.request, nil, Callbacks{})
	if res.Kind != Crashed {
		t.Fatalf("Kind = %v, want Crashed", res.Kind)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if len(res.Tail) != TailSize {
		t.Errorf("tail has %d lines, want %d", len(res.Tail), TailSize)
	}
	if res.Tail[len(res.Tail)-1] != "[error] Error while opening encoder" {
		t.Errorf("last tail line = %q", res.Tail[len(res.Tail)-1])
	}
	if slices.ContainsFunc(res.Tail, ffmpeg.IsProgressLine) {
		t.Error("progress lines leaked into the tail")
	}
	if _, err := os.Stat(res.TempPath); !os.IsNotExist(err) {
		t.Error("temp file must be removed after a crash")
	}
}

func TestRunUndersizedOutput(t *testing.T) {
	f := newFixture(t, `printf 'tiny' > "$out"`)

	res := f.tr.Run(context.Background(), f.request, nil, Callbacks{})
	if res.Kind != Crashed {
		t.Fatalf("Kind = %v, want Crashed", res.Kind)
	}
	if _, err := os.Stat(res.TempPath); !os.IsNotExist(err) {
		t.Error("undersized temp file must be removed")
	}
}

func TestRunSpawnFailure(t *testing.T) {
	f := newFixture(t, "")
	f.tr.binary = "/nonexistent/ffmpeg"

	res := f.tr.Run(context.Background(), f.request, nil, Callbacks{})
	if res.Kind != Crashed || len(res.Tail) != 1 {
		t.Errorf("Run() = %+v, want Crashed with the start error", res)
	}
}

func TestRunCancel(t *testing.T) {
	f := newFixture(t, `
head -c 4096 /dev/zero > "$out"
echo "out_time=00:00:01.000000"
echo "progress=continue"
sleep 30
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Result, 1)
	go func() {
		done <- f.tr.Run(ctx, f.request, nil, Callbacks{Progress: func(float64) { cancel() }})
	}()

	select {
	case res := <-done:
		if res.Kind != Cancelled {
			t.Errorf("Kind = %v, want Cancelled", res.Kind)
		}
		if _, err := os.Stat(res.TempPath); !os.IsNotExist(err) {
			t.Error("temp file must be removed after cancel")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("cancelled transcode did not return")
	}
	if f.sup.Active() != 0 {
		t.Errorf("Active() = %d after cancel", f.sup.Active())
	}
}

func TestTempPath(t *testing.T) {
	srcDir := t.TempDir()
	task := job.NewMediaTask(filepath.Join(srcDir, "a b.ts"))
	now := time.Unix(42, 0)

	cache := t.TempDir()
	if got := TempPath(task, cache, now); got != filepath.Join(cache, "a b_42.temp.mkv") {
		t.Errorf("TempPath with cache = %q", got)
	}
	if got := TempPath(task, filepath.Join(cache, "missing"), now); got != filepath.Join(srcDir, "a b_42.temp.mkv") {
		t.Errorf("TempPath with invalid cache = %q", got)
	}
	if got := TempPath(task, "", now); filepath.Dir(got) != srcDir {
		t.Errorf("TempPath without cache = %q", got)
	}
}

func TestBuildParams(t *testing.T) {
	f := newFixture(t, "")
	f.request.AudioChannels = 6
	f.request.LoudnessFilter = job.DefaultLoudnessFilter

	p := BuildParams(f.request, "/tmp/out.temp.mkv")
	if p.SubtitleCodec != ffmpeg.SubtitleSubRip {
		t.Errorf("SubtitleCodec = %q for an mp4 source", p.SubtitleCodec)
	}
	if p.AudioChannels != 6 || p.AudioFilter != job.DefaultLoudnessFilter {
		t.Errorf("audio params = %+v", p)
	}
	if !slices.Contains(p.VideoArgs, "26") || !slices.Contains(p.GlobalArgs, "qsv=hw") {
		t.Errorf("profile args not applied: %+v", p)
	}
}

func TestProgressTrackerMonotonic(t *testing.T) {
	var got []float64
	p := newProgressTracker(100, func(v float64) { got = append(got, v) })
	for _, e := range []float64{10, 10.5, 9, 30, 250, 120} {
		p.update(e)
	}
	p.finish()
	if want := []float64{10, 30, 100}; !reflect.DeepEqual(got, want) {
		t.Errorf("emitted %v, want %v", got, want)
	}
}

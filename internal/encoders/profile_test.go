package encoders

import (
	"reflect"
	"slices"
	"testing"
)

func TestParseBackend(t *testing.T) {
	tests := []struct {
		input   string
		want    Backend
		wantErr bool
	}{
		{"qsv", BackendQSV, false},
		{"AV1_QSV", BackendQSV, false},
		{" nvenc ", BackendNVENC, false},
		{"amd", BackendAMF, false},
		{"libsvtav1", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBackend(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseBackend(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseBackend(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVideoArgs(t *testing.T) {
	tests := []struct {
		name    string
		backend Backend
		opts    Options
		want    []string
	}{
		{
			name:    "qsv",
			backend: BackendQSV,
			opts:    Options{Preset: 4, QP: 27},
			want: []string{
				"-c:v", "av1_qsv", "-preset", "4", "-global_quality:v", "27",
				"-pix_fmt", "p010le", "-async_depth", "1",
			},
		},
		{
			name:    "nvenc inverts preset",
			backend: BackendNVENC,
			opts:    Options{Preset: 1, QP: 30},
			want: []string{
				"-c:v", "av1_nvenc", "-preset", "p7", "-tune", "hq", "-rc", "vbr",
				"-cq", "30", "-b:v", "0", "-pix_fmt", "p010le",
			},
		},
		{
			name:    "amf speed",
			backend: BackendAMF,
			opts:    Options{Preset: 7, QP: 22, PixelFormat: "nv12"},
			want: []string{
				"-c:v", "av1_amf", "-quality", "speed", "-rc", "cqp",
				"-qp_i", "22", "-qp_p", "22", "-pix_fmt", "nv12",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ProfileFor(tt.backend)
			if err != nil {
				t.Fatalf("ProfileFor(%q): %v", tt.backend, err)
			}
			if got := p.VideoArgs(tt.opts); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("VideoArgs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPerceptualAQFlags(t *testing.T) {
	tests := []struct {
		backend Backend
		flag    string
	}{
		{BackendQSV, "-extbrc"},
		{BackendNVENC, "-spatial-aq"},
		{BackendAMF, "-preanalysis"},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			p, _ := ProfileFor(tt.backend)
			if slices.Contains(p.VideoArgs(Options{Preset: 4, QP: 24}), tt.flag) {
				t.Errorf("%s present without perceptual AQ", tt.flag)
			}
			if !slices.Contains(p.VideoArgs(Options{Preset: 4, QP: 24, PerceptualAQ: true}), tt.flag) {
				t.Errorf("%s missing with perceptual AQ", tt.flag)
			}
		})
	}
}

func TestPresetClamping(t *testing.T) {
	p, _ := ProfileFor(BackendQSV)
	args := p.VideoArgs(Options{Preset: 12, QP: 20})
	if args[3] != "7" {
		t.Errorf("preset = %s, want 7", args[3])
	}

	if got := nvencPreset(0); got != "p7" {
		t.Errorf("nvencPreset(0) = %s, want p7", got)
	}

	amfTests := map[int]string{1: "quality", 2: "quality", 3: "balanced", 5: "balanced", 6: "speed", 9: "speed"}
	for level, want := range amfTests {
		if got := amfQuality(level); got != want {
			t.Errorf("amfQuality(%d) = %s, want %s", level, got, want)
		}
	}
}

func TestSearchArgs(t *testing.T) {
	tests := []struct {
		backend Backend
		want    []string
	}{
		{BackendQSV, []string{"--encoder", "av1_qsv", "--preset", "4"}},
		{BackendNVENC, []string{"--encoder", "av1_nvenc", "--preset", "p4"}},
		{BackendAMF, []string{"--encoder", "av1_amf", "--enc", "quality=balanced"}},
	}

	for _, tt := range tests {
		p, _ := ProfileFor(tt.backend)
		if got := p.SearchArgs(4); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%s SearchArgs(4) = %v, want %v", tt.backend, got, tt.want)
		}
	}
}

func TestGlobalArgs(t *testing.T) {
	qsv, _ := ProfileFor(BackendQSV)
	if got := qsv.GlobalArgs(); !reflect.DeepEqual(got, []string{"-init_hw_device", "qsv=hw"}) {
		t.Errorf("qsv GlobalArgs() = %v", got)
	}
	nvenc, _ := ProfileFor(BackendNVENC)
	if got := nvenc.GlobalArgs(); len(got) != 0 {
		t.Errorf("nvenc GlobalArgs() = %v, want none", got)
	}
}

package encoders

import "testing"

const sampleEncoders = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 V..... av1_nvenc            NVIDIA NVENC av1 encoder (codec av1)
 V..... av1_qsv              AV1 (Intel Quick Sync Video acceleration) (codec av1)
 A....D libopus              libopus Opus (codec opus)
 S..... subrip               SubRip subtitle
`

func TestParseEncoderList(t *testing.T) {
	list, err := ParseEncoderList(sampleEncoders)
	if err != nil {
		t.Fatalf("ParseEncoderList: %v", err)
	}
	if len(list) != 5 {
		t.Fatalf("got %d encoders, want 5: %+v", len(list), list)
	}
	if list[0].Name != "libx264" || !list[0].Video {
		t.Errorf("first encoder = %+v", list[0])
	}
	if list[3].Name != "libopus" || list[3].Video {
		t.Errorf("libopus entry = %+v", list[3])
	}
}

func TestSupports(t *testing.T) {
	list, _ := ParseEncoderList(sampleEncoders)

	tests := []struct {
		backend Backend
		want    bool
	}{
		{BackendQSV, true},
		{BackendNVENC, true},
		{BackendAMF, false},
	}
	for _, tt := range tests {
		p, _ := ProfileFor(tt.backend)
		if got := Supports(list, p); got != tt.want {
			t.Errorf("Supports(%s) = %v, want %v", tt.backend, got, tt.want)
		}
	}
}

package process

import (
	"testing"
)

func TestDecode(t *testing.T) {
	gbk, err := NewDecoder("gbk")
	if err != nil {
		t.Fatalf("NewDecoder(gbk): %v", err)
	}

	tests := []struct {
		name string
		dec  *Decoder
		in   []byte
		want string
	}{
		{"utf8 passthrough", gbk, []byte("crf 24 VMAF 95.1 ✓"), "crf 24 VMAF 95.1 ✓"},
		{"gbk fallback", gbk, []byte{0xd6, 0xd0, 0xce, 0xc4}, "中文"},
		{"lossy without fallback", &Decoder{}, []byte{'a', 0xff, 'b'}, "a�b"},
		{"empty", gbk, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.dec.Decode(tt.in); got != tt.want {
				t.Errorf("Decode(%x) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewDecoderLabels(t *testing.T) {
	d, err := NewDecoder("Shift_JIS")
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	if d.Label() != "shift_jis" {
		t.Errorf("Label() = %q, want shift_jis", d.Label())
	}

	if _, err := NewDecoder("klingon"); err == nil {
		t.Error("expected error for unknown codepage")
	}

	if DefaultDecoder() == nil {
		t.Error("DefaultDecoder() returned nil")
	}
}

func TestTail(t *testing.T) {
	tail := NewTail(3)
	if got := tail.Lines(); len(got) != 0 {
		t.Errorf("empty tail = %q", got)
	}

	for _, l := range []string{"1", "2"} {
		tail.Push(l)
	}
	if got := tail.Lines(); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("partial tail = %q", got)
	}

	for _, l := range []string{"3", "4", "5"} {
		tail.Push(l)
	}
	got := tail.Lines()
	want := []string{"3", "4", "5"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Lines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if tail.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tail.Len())
	}
}

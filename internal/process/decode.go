package process

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Decoder turns raw child output into valid UTF-8. It never fails: bytes
// that are neither UTF-8 nor valid in the legacy codepage are replaced.
type Decoder struct {
	label    string
	fallback encoding.Encoding
}

// NewDecoder creates a decoder with the named legacy codepage as fallback.
// Any WHATWG encoding label is accepted ("gbk", "shift_jis",
// "windows-1252", ...). An empty label selects the platform default.
func NewDecoder(label string) (*Decoder, error) {
	if strings.TrimSpace(label) == "" {
		label = platformCodepage()
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown codepage %q: %w", label, err)
	}
	name, _ := htmlindex.Name(enc)
	return &Decoder{label: name, fallback: enc}, nil
}

// DefaultDecoder returns a decoder for the platform codepage, falling back
// to lossy UTF-8 only if that codepage is unknown.
func DefaultDecoder() *Decoder {
	d, err := NewDecoder("")
	if err != nil {
		return &Decoder{label: "utf-8"}
	}
	return d
}

// Label returns the canonical name of the fallback codepage.
func (d *Decoder) Label() string {
	return d.label
}

// Decode converts one line of output.
func (d *Decoder) Decode(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	if d.fallback != nil {
		if out, err := d.fallback.NewDecoder().Bytes(b); err == nil && utf8.Valid(out) {
			return string(out)
		}
	}
	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

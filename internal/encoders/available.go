package encoders

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Encoder is one entry of `ffmpeg -encoders`.
type Encoder struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Video       bool   `json:"video"`
}

var encoderLineRegex = regexp.MustCompile(`^\s*([VASF\.DXB]{6})\s+(\S+)\s+(.+)$`)

// ParseEncoderList parses the output of `ffmpeg -hide_banner -encoders`.
func ParseEncoderList(output string) ([]Encoder, error) {
	var result []Encoder
	scanner := bufio.NewScanner(strings.NewReader(output))

	// The list starts after the " ------" separator below the legend
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.HasPrefix(strings.TrimSpace(line), "------") {
				started = true
			}
			continue
		}
		matches := encoderLineRegex.FindStringSubmatch(line)
		if len(matches) != 4 {
			continue
		}
		result = append(result, Encoder{
			Name:        matches[2],
			Description: strings.TrimSpace(matches[3]),
			Video:       strings.HasPrefix(matches[1], "V"),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading encoder list: %w", err)
	}
	return result, nil
}

// ListEncoders runs ffmpeg and returns the encoders it was built with.
func ListEncoders(ctx context.Context, ffmpegPath string) ([]Encoder, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath, "-hide_banner", "-encoders")
	hideWindow(cmd)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list ffmpeg encoders: %w", err)
	}
	return ParseEncoderList(string(output))
}

// Supports reports whether the encoder list contains the profile's encoder.
func Supports(list []Encoder, p Profile) bool {
	for _, e := range list {
		if e.Name == p.Encoder() {
			return true
		}
	}
	return false
}

package search

import (
	"math"
	"regexp"
	"strconv"
)

// Trial is one completed search iteration.
type Trial struct {
	Param string  // parameter token as printed: crf, icq, cq, qp, global_quality
	QP    int     // rounded parameter value
	Raw   float64 // parameter value as printed
	Score float64 // VMAF score
}

var (
	paramRegex = regexp.MustCompile(`(?i)\b(global_quality|crf|icq|cq|qp)\s*[=:]?\s*(\d+(?:\.\d+)?)`)
	scoreRegex = regexp.MustCompile(`(?i)\bvmaf\s*[=:]?\s*(\d+(?:\.\d+)?)`)
)

// ClassifyLine reports a trial when the line carries both a quantization
// token and a VMAF score. Lines with only one of them are not trials.
func ClassifyLine(line string) (Trial, bool) {
	pm := paramRegex.FindStringSubmatch(line)
	if pm == nil {
		return Trial{}, false
	}
	sm := scoreRegex.FindStringSubmatch(line)
	if sm == nil {
		return Trial{}, false
	}
	raw, err := strconv.ParseFloat(pm[2], 64)
	if err != nil {
		return Trial{}, false
	}
	score, err := strconv.ParseFloat(sm[1], 64)
	if err != nil {
		return Trial{}, false
	}
	return Trial{Param: pm[1], QP: int(math.Round(raw)), Raw: raw, Score: score}, true
}

// Replay classifies a fixed log and returns the last trial.
func Replay(lines []string) (Trial, bool) {
	var (
		last  Trial
		found bool
	)
	for _, l := range lines {
		if t, ok := ClassifyLine(l); ok {
			last, found = t, true
		}
	}
	return last, found
}

package ffmpeg

import (
	"log/slog"
	"strings"
)

// levelTags maps the tags printed under -loglevel level+... to slog levels.
// ffmpeg's info is chatter during an encode, so it logs at debug.
var levelTags = map[string]slog.Level{
	"quiet":   slog.LevelDebug,
	"panic":   slog.LevelError,
	"fatal":   slog.LevelError,
	"error":   slog.LevelError,
	"warning": slog.LevelWarn,
	"info":    slog.LevelDebug,
	"verbose": slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"trace":   slog.LevelDebug,
}

// ParseLogLevel classifies one diagnostic line. Lines look like
// "[error] message" or "[av1_qsv @ 0x...] [warning] message"; the level tag
// is stripped and a component prefix kept. Untagged lines are debug.
func ParseLogLevel(line string) (slog.Level, string) {
	tag, rest, ok := cutTag(line)
	if !ok {
		return slog.LevelDebug, line
	}
	if level, known := levelTags[tag]; known {
		return level, rest
	}

	// [component @ 0x...] [level] message
	if next, msg, found := cutTag(rest); found {
		if level, known := levelTags[next]; known {
			return level, line[:len(line)-len(rest)] + msg
		}
	}
	return slog.LevelDebug, line
}

// cutTag splits "[tag] rest".
func cutTag(s string) (tag, rest string, ok bool) {
	if len(s) < 3 || s[0] != '[' {
		return "", s, false
	}
	end := strings.Index(s, "] ")
	if end == -1 {
		return "", s, false
	}
	return s[1:end], s[end+2:], true
}

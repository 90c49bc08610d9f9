package logging

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"
)

// LogCallback receives every entry after it is stored. cmd/run uses it to
// publish entries on the event bus for the API log stream.
type LogCallback func(entry LogEntry)

// BufferHandler is a slog.Handler that keeps structured entries in a
// RingBuffer. The "module" attribute becomes LogEntry.Module; everything
// else is flattened into Attributes with dotted group keys.
type BufferHandler struct {
	buffer   *RingBuffer // nil with dynamic: the package buffer
	callback LogCallback
	dynamic  bool

	level  slog.Leveler
	module string
	attrs  map[string]any
	groups []string
}

// NewBufferHandler writes to the package ring buffer and log callback.
// Both are resolved per record so handlers built before Initialize or
// SetLogCallback still reach them.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level, dynamic: true, module: "app"}
}

// NewBufferHandlerFor binds the handler to buffer and callback.
func NewBufferHandlerFor(buffer *RingBuffer, level slog.Leveler, callback LogCallback) *BufferHandler {
	return &BufferHandler{buffer: buffer, level: level, callback: callback, module: "app"}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *BufferHandler) targets() (*RingBuffer, LogCallback) {
	if !h.dynamic {
		return h.buffer, h.callback
	}
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer, logCallback
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{
		Timestamp: r.Time,
		Level:     levelToString(r.Level),
		Module:    h.module,
		Message:   r.Message,
	}
	if len(h.attrs) > 0 || r.NumAttrs() > 0 {
		entry.Attributes = maps.Clone(h.attrs)
		if entry.Attributes == nil {
			entry.Attributes = make(map[string]any, r.NumAttrs())
		}
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "module" && len(h.groups) == 0 {
				entry.Module = a.Value.String()
				return true
			}
			flattenAttr(entry.Attributes, h.groups, a)
			return true
		})
		if len(entry.Attributes) == 0 {
			entry.Attributes = nil
		}
	}

	buffer, callback := h.targets()
	if buffer != nil {
		entry = buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

// flattenAttr stores a into attrs under its dotted group path.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		inner := groups
		if a.Key != "" {
			inner = append(slices.Clip(groups), a.Key)
		}
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, inner, ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}

func (h *BufferHandler) clone() *BufferHandler {
	c := *h
	c.attrs = maps.Clone(h.attrs)
	c.groups = slices.Clip(h.groups)
	return &c
}

// WithAttrs implements slog.Handler. Attributes are flattened once here
// rather than on every record.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	if c.attrs == nil {
		c.attrs = make(map[string]any, len(attrs))
	}
	for _, a := range attrs {
		if a.Key == "module" && len(c.groups) == 0 {
			c.module = a.Value.String()
			continue
		}
		flattenAttr(c.attrs, c.groups, a)
	}
	return c
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

// FormatLogLine renders entry as one line: time, level, module, message,
// then attributes sorted by key.
func FormatLogLine(entry LogEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s [%s] [%s] %s",
		entry.Timestamp.Format(time.RFC3339Nano), strings.ToUpper(entry.Level), entry.Module, entry.Message)
	for _, k := range slices.Sorted(maps.Keys(entry.Attributes)) {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Attributes[k])
	}
	return sb.String()
}

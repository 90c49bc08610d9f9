package api

import (
	"log/slog"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/smazurov/av1forge/internal/logging"
)

// isStream reports whether the request opens an SSE stream. Those stay open
// for the life of the client, so they are logged when they begin.
func isStream(ctx huma.Context) bool {
	return strings.Contains(ctx.Header("Accept"), "text/event-stream") ||
		strings.HasSuffix(ctx.URL().Path, "/stream") || ctx.URL().Path == "/api/events"
}

// HTTPLoggingMiddleware logs each request at a level chosen by its status.
// Polling GETs of the run status log at debug.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path
	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := ctx.URL().RawQuery; query != "" && !strings.Contains(query, "auth=") {
		attrs = append(attrs, slog.String("query", query))
	}

	if isStream(ctx) {
		logger.LogAttrs(ctx.Context(), slog.LevelInfo, "HTTP stream opened", attrs...)
		next(ctx)
		attrs = append(attrs, slog.Duration("duration", time.Since(start)))
		logger.LogAttrs(ctx.Context(), slog.LevelDebug, "HTTP stream closed", attrs...)
		return
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case method == "OPTIONS", method == "GET" && path == "/api/run":
		level = slog.LevelDebug
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}

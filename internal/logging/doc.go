// Package logging provides structured logging with per-module log level configuration.
//
// # Overview
//
// The logging system uses Go's slog package with automatic output routing:
//   - Logs to systemd journal when available (Linux systems with journald)
//   - Logs to the console stream (stdout or stderr) when it is connected
//   - Logs to both when both are available
//   - Keeps recent entries in a ring buffer for the API log stream
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",      // Global log level: debug, info, warn, error
//		Format: "text",      // Output format: text or json
//		Output: "stderr",    // Console stream: stdout or stderr
//		Modules: map[string]string{
//			"ffmpeg": "debug",  // Per-module overrides
//			"api":    "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("mymodule")
//	logger.Info("Starting up", "port", 8080)
//	logger.Debug("Details", "config", cfg)
//	logger.Warn("Something unusual", "error", err)
//	logger.Error("Failed", "error", err)
//
// Add contextual attributes:
//
//	logger := logging.GetLogger("runner").With("file", path)
//	logger.Info("Stream started")  // Includes file in all logs
//
// # Log Levels
//
//	debug - Verbose debugging information
//	info  - General operational messages
//	warn  - Warning conditions
//	error - Error conditions
//
// # Output Destinations
//
// The system automatically detects available outputs:
//
//	Journal and console available → MultiHandler (both)
//	Journal available only        → JournalHandler
//	Console available only        → TextHandler or JSONHandler
//
// Journal availability is checked via [github.com/coreos/go-systemd/v22/journal.Enabled].
//
// # Viewing Logs
//
// When running as a systemd service or on a system with journald:
//
//	journalctl -t av1forge              # All av1forge logs
//	journalctl -t av1forge -f           # Follow live
//	journalctl -t av1forge --since "5m" # Last 5 minutes
//	journalctl -t av1forge -p err       # Errors only
//
// Filter by structured fields:
//
//	journalctl -t av1forge MODULE=runner
//	journalctl -t av1forge FILE=/media/clip.mp4
//	journalctl -t av1forge CODE_FUNC=...   # Source location of the call
//
// # Configuration
//
// Log levels can be set globally or per-module. Module-specific levels
// override the global level for that module only.
//
// Example TOML configuration. Keys other than level, format and output
// name modules:
//
//	[logging]
//	level = "info"
//	format = "text"
//	ffmpeg = "debug"
//	"ab-av1" = "debug"
//	api = "warn"
//
// Changes to the [logging] table are applied while a run is in progress.
package logging

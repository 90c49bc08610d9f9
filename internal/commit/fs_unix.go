//go:build unix

package commit

import (
	"errors"
	"runtime"

	"golang.org/x/sys/unix"
)

// macOS volumes are case-insensitive by default.
var caseInsensitiveFS = runtime.GOOS == "darwin"

func longPath(p string) string {
	return p
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}

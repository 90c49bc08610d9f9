//go:build windows

package commit

import (
	"errors"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows"
)

const caseInsensitiveFS = true

// longPath prefixes absolute paths with \\?\ so paths beyond MAX_PATH work.
func longPath(p string) string {
	if p == "" || strings.HasPrefix(p, `\\?\`) || !filepath.IsAbs(p) {
		return p
	}
	p = filepath.Clean(p)
	if strings.HasPrefix(p, `\\`) {
		return `\\?\UNC\` + p[2:]
	}
	return `\\?\` + p
}

func isCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}

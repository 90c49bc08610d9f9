package job

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// mediaExtensions is the container allow-list (lower-case, leading dot).
var mediaExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".ts":   true,
}

// tempSuffix marks in-progress encoder output.
const tempSuffix = ".temp." + TargetExtension

// IsMediaFile reports whether the path has an allow-listed extension and is
// not an in-progress temporary output.
func IsMediaFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, tempSuffix) {
		return false
	}
	return mediaExtensions[filepath.Ext(name)]
}

// Enumerate expands files and directories into an ordered, duplicate-free
// task list. Directories are walked recursively in lexical order; the
// selection order of the inputs is kept. Paths that cannot be read are
// returned in skipped, one UNREADABLE_PATH error each, and do not stop the
// others. err is set, with code NO_INPUT, only when nothing was found.
func Enumerate(paths []string) (tasks []MediaTask, skipped []error, err error) {
	var errs []error
	seen := make(map[string]bool)

	add := func(path string) {
		if !IsMediaFile(path) {
			return
		}
		key := dedupKey(path)
		if seen[key] {
			return
		}
		seen[key] = true
		tasks = append(tasks, NewMediaTask(path))
	}

	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			errs = append(errs, &Error{Code: ErrCodeUnreadable, Message: p, Cause: err})
			continue
		}
		info, err := os.Stat(abs)
		if err != nil {
			errs = append(errs, &Error{Code: ErrCodeUnreadable, Message: abs, Cause: err})
			continue
		}
		if !info.IsDir() {
			add(abs)
			continue
		}
		walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Unreadable subdirectory: note it and keep walking siblings
				errs = append(errs, &Error{Code: ErrCodeUnreadable, Message: path, Cause: err})
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				add(path)
			}
			return nil
		})
		if walkErr != nil {
			errs = append(errs, &Error{Code: ErrCodeUnreadable, Message: abs, Cause: walkErr})
		}
	}

	if len(tasks) == 0 {
		return nil, errs, &Error{Code: ErrCodeNoInput, Message: "no media files found", Cause: errors.Join(errs...)}
	}
	return tasks, errs, nil
}

func dedupKey(path string) string {
	key := filepath.Clean(path)
	if runtime.GOOS == "windows" {
		key = strings.ToLower(key)
	}
	return key
}

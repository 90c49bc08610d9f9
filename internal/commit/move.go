package commit

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// move renames src to dst, copying when they sit on different volumes.
func move(src, dst string) error {
	err := os.Rename(longPath(src), longPath(dst))
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(longPath(src))
}

// copyFile copies through a sibling temporary name so a partial copy never
// appears under dst.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(longPath(src))
	if err != nil {
		return err
	}
	defer in.Close()

	partial := dst + ".partial"
	out, err := os.OpenFile(longPath(partial), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			out.Close()
			os.Remove(longPath(partial))
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	if err = out.Sync(); err != nil {
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Rename(longPath(partial), longPath(dst))
}

// samePath compares two paths after cleaning, case-insensitively where the
// filesystem usually is.
func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if caseInsensitiveFS {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// CleanCache removes leftover temporary encodes from dir and returns how
// many were deleted.
func CleanCache(dir string) (int, error) {
	entries, err := os.ReadDir(longPath(dir))
	if err != nil {
		return 0, err
	}
	var (
		count int
		errs  []error
	)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".temp.mkv") {
			continue
		}
		if err := os.Remove(longPath(filepath.Join(dir, e.Name()))); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}

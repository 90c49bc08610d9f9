//go:build !unix && !windows

package commit

const caseInsensitiveFS = false

func longPath(p string) string {
	return p
}

func isCrossDevice(error) bool {
	return false
}

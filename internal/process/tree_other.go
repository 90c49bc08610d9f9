//go:build !unix && !windows

package process

import (
	"os"
	"os/exec"
)

func configureCommand(*exec.Cmd) {}

// killTree can only reach the root process here.
func killTree(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func suspendTree(int) error { return ErrUnsupported }
func resumeTree(int) error  { return ErrUnsupported }

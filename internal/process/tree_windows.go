//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/windows"
)

func hiddenAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{HideWindow: true, CreationFlags: windows.CREATE_NO_WINDOW}
}

// configureCommand keeps console tools from flashing a window.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = hiddenAttr()
}

// killTree uses taskkill, which walks the tree itself, and falls back to
// killing the root directly.
func killTree(pid int) error {
	cmd := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
	cmd.SysProcAttr = hiddenAttr()
	if err := cmd.Run(); err != nil {
		p, perr := gopsprocess.NewProcess(int32(pid))
		if perr != nil {
			return err
		}
		return p.Kill()
	}
	return nil
}

func suspendTree(pid int) error {
	return eachInTree(pid, (*gopsprocess.Process).Suspend)
}

func resumeTree(pid int) error {
	return eachInTree(pid, (*gopsprocess.Process).Resume)
}

func eachInTree(pid int, fn func(*gopsprocess.Process) error) error {
	root, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	queue := []*gopsprocess.Process{root}
	var firstErr error
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if err := fn(p); err != nil && firstErr == nil {
			firstErr = err
		}
		if children, err := p.Children(); err == nil {
			queue = append(queue, children...)
		}
	}
	return firstErr
}

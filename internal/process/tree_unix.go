//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

// configureCommand puts the child in its own process group so the whole
// tree can be signalled at once.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killTree kills the process group, then any descendant that moved to a
// group of its own. Descendants are collected first since they are
// re-parented once the group dies.
func killTree(pid int) error {
	stray := descendants(pid)

	err := unix.Kill(-pid, unix.SIGKILL)
	if errors.Is(err, unix.ESRCH) {
		err = nil
	}
	for _, child := range stray {
		_ = unix.Kill(child, unix.SIGKILL)
	}
	return err
}

func suspendTree(pid int) error {
	return unix.Kill(-pid, unix.SIGSTOP)
}

func resumeTree(pid int) error {
	return unix.Kill(-pid, unix.SIGCONT)
}

// descendants walks the process tree below pid.
func descendants(pid int) []int {
	root, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return nil
	}
	var out []int
	queue := []*gopsprocess.Process{root}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		children, err := p.Children()
		if err != nil {
			continue
		}
		for _, c := range children {
			out = append(out, int(c.Pid))
			queue = append(queue, c)
		}
	}
	return out
}

package process

import (
	"context"
	"errors"
	"io"
)

// Output runs a short-lived command to completion and returns its merged
// output lines and exit code. If ctx ends first the process tree is killed
// and ctx.Err() is returned.
func (s *Supervisor) Output(ctx context.Context, name string, args ...string) ([]string, int, error) {
	h, err := s.Spawn(ctx, name, args...)
	if err != nil {
		return nil, -1, err
	}
	defer h.Close()

	var lines []string
	for {
		line, err := h.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			h.Kill()
			h.Wait()
			return lines, KilledExitCode, err
		}
		lines = append(lines, line)
	}
	return lines, h.Wait(), nil
}

// Package process runs the external encoder tools.
//
// A Supervisor spawns one child at a time and refuses a second while one is
// active (ErrBusy). Each Handle streams the child's stdout and stderr as
// decoded lines:
//   - Output that is not valid UTF-8 is decoded with a legacy codepage
//   - Kill terminates the whole process tree, not just the direct child
//   - Suspend and Resume stop and continue the process group
//   - Wait reports the exit code, KilledExitCode after a Kill
//
// Example:
//
//	sup := process.NewSupervisor(logger, process.DefaultDecoder())
//	h, err := sup.Spawn(ctx, "ffprobe", "-version")
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//	for {
//	    line, err := h.ReadLine(ctx)
//	    if err != nil {
//	        break // io.EOF once the output is drained
//	    }
//	    fmt.Println(line)
//	}
//	code := h.Wait()
package process

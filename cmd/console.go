package cmd

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/smazurov/av1forge/internal/api"
	"github.com/smazurov/av1forge/internal/ffmpeg"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/runner"
)

// console prints run events for a human. With live set, progress redraws
// a single status line; otherwise only milestones are printed.
type console struct {
	mu   sync.Mutex
	out  io.Writer
	live bool

	total    float64
	current  float64
	file     string
	index    int
	count    int
	phase    runner.Phase
	fps      float64
	speed    float64
	dirty    bool // a status line is on screen without a newline
	lastMark float64
}

func newConsole(out io.Writer, live bool) *console {
	return &console{out: out, live: live, index: -1}
}

// println writes a full line, clearing any status line first.
func (c *console) println(format string, args ...any) {
	if c.dirty {
		fmt.Fprint(c.out, "\r\033[K")
		c.dirty = false
	}
	fmt.Fprintf(c.out, format+"\n", args...)
	c.redraw()
}

func (c *console) redraw() {
	if !c.live || c.index < 0 || c.phase == runner.PhaseDone {
		return
	}
	line := fmt.Sprintf("[%d/%d] %s %s %3.0f%% | total %3.0f%%", c.index+1, c.count, c.phase, c.file, c.current, c.total)
	if c.phase == runner.PhaseEncoding && c.fps > 0 {
		line += fmt.Sprintf(" | %.1f fps %.2fx", c.fps, c.speed)
	}
	fmt.Fprint(c.out, "\r\033[K"+line)
	c.dirty = true
}

// Printf prints a line between status redraws. Safe for use by the
// command reader while the run is active.
func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println(format, args...)
}

func severityTag(s runner.Severity) string {
	switch s {
	case runner.SeveritySuccess:
		return "OK  "
	case runner.SeverityWarning:
		return "WARN"
	case runner.SeverityError:
		return "FAIL"
	default:
		return "INFO"
	}
}

func (c *console) OnLog(message string, severity runner.Severity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println("%s %s", severityTag(severity), message)
}

func (c *console) OnProgressTotal(percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total = percent
	c.redraw()
}

func (c *console) OnProgressCurrent(percent float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = percent
	if c.live {
		c.redraw()
		return
	}
	// Without a terminal, report every quarter.
	if percent >= c.lastMark+25 || (percent == 100 && c.lastMark < 100) {
		c.lastMark = percent - float64(int(percent)%25)
		c.println("     %s %s %.0f%%", c.phase, c.file, percent)
	}
}

func (c *console) OnErrorDecisionRequested(title, message string, timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.println("\n%s\n%s", title, message)
	c.println("Type c to continue with the next file or s to stop the run (continuing in %s).", timeout)
}

func (c *console) OnRunFinished(s runner.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = -1
	c.println("")
	c.println("Run %s after %s: %d committed, %d skipped, %d crashed, %d failed of %d",
		s.State, s.Elapsed.Round(time.Second), s.Committed, s.Skipped, s.Crashed, s.Failed, s.Total)
	if s.BytesSaved != 0 {
		c.println("Space saved: %s", formatSaved(s.BytesSaved))
	}
	if s.Err != nil {
		c.println("Error: %v", s.Err)
	}
}

func (c *console) OnTaskStarted(index, total int, task job.MediaTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index, c.count = index, total
	c.file = filepath.Base(task.SourcePath)
	c.current, c.fps, c.speed, c.lastMark = 0, 0, 0, 0
	c.phase = runner.PhaseProbing
	c.println("[%d/%d] %s", index+1, total, task.SourcePath)
}

func (c *console) OnTaskPhase(_ int, phase runner.Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.phase = phase
	c.current, c.lastMark = 0, 0
	c.redraw()
}

func (c *console) OnEncodeStats(_ int, s ffmpeg.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps, c.speed = s.FPS, s.Speed
	c.redraw()
}

func (c *console) OnTaskDone(r job.TaskReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch r.Outcome {
	case job.OutcomeCommitted:
		c.println("     -> %s (qp %d, vmaf %.2f, %s -> %s, %s)", r.Destination, r.QP, r.Score,
			humanize.IBytes(uint64(max(r.InputBytes, 0))), humanize.IBytes(uint64(max(r.OutputBytes, 0))),
			r.Duration.Round(time.Second))
	case job.OutcomeSkipped:
		c.println("     skipped")
	default:
		if r.Err != nil {
			c.println("     %s: %v", r.Outcome, r.Err)
		} else {
			c.println("     %s", r.Outcome)
		}
	}
}

// formatSaved renders a byte delta; a negative value means the output
// grew.
func formatSaved(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

const consoleHelp = "Commands: p pause, r resume, q cancel, s status, h help"

// readCommands applies console commands read line by line from in until
// EOF. While a crash decision is pending, c/continue and s/stop answer it.
func readCommands(in io.Reader, ctl api.RunController, c *console) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		input := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if input == "" {
			continue
		}

		if ctl.Status().AwaitingDecision {
			if d, err := runner.ParseDecision(input); err == nil {
				if err := ctl.SupplyDecision(d); err != nil {
					c.Printf("Decision not applied: %v", err)
				}
				continue
			}
		}

		switch input {
		case "p", "pause":
			if !ctl.Pause() {
				c.Printf("Nothing to pause")
			}
		case "r", "resume":
			if !ctl.Resume() {
				c.Printf("Run is not paused")
			}
		case "q", "quit", "cancel":
			ctl.Cancel()
		case "s", "status":
			st := ctl.Status()
			c.Printf("%s: file %d/%d %s %s %.0f%%, total %.0f%%", st.State, st.TaskIndex+1, st.TaskTotal,
				st.Phase, st.CurrentFile, st.ProgressCurrent, st.ProgressTotal)
		case "h", "help", "?":
			c.Printf(consoleHelp)
		default:
			c.Printf("Unknown command %q. %s", input, consoleHelp)
		}
	}
	return scanner.Err()
}

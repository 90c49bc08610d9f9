package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smazurov/av1forge/internal/api"
	"github.com/smazurov/av1forge/internal/config"
	"github.com/smazurov/av1forge/internal/encoders"
	"github.com/smazurov/av1forge/internal/events"
	"github.com/smazurov/av1forge/internal/job"
	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/metrics/collectors"
	"github.com/smazurov/av1forge/internal/metrics/exporters"
	"github.com/smazurov/av1forge/internal/process"
	"github.com/smazurov/av1forge/internal/runner"
	"github.com/smazurov/av1forge/internal/systemd"
)

// Exit codes of the run command.
const (
	ExitTaskErrors = 1   // run completed but some files crashed or failed
	ExitFatal      = 2   // run aborted on an error
	ExitCancelled  = 130 // run cancelled by the user
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// exitFor maps a finished run to the command result.
func exitFor(s runner.Summary) error {
	switch s.State {
	case runner.StateCompleted:
		if n := s.Crashed + s.Failed; n > 0 {
			return &ExitError{Code: ExitTaskErrors, Err: fmt.Errorf("%d of %d files were not converted", n, s.Total)}
		}
		return nil
	case runner.StateCancelled:
		return &ExitError{Code: ExitCancelled, Err: errors.New("run cancelled")}
	default:
		err := s.Err
		if err == nil {
			err = fmt.Errorf("run ended in state %s", s.State)
		}
		return &ExitError{Code: ExitFatal, Err: err}
	}
}

// CreateRunCmd creates the command that converts files and directories.
func CreateRunCmd() *cobra.Command {
	opts := &RunOptions{}
	cmd := &cobra.Command{
		Use:   "run [flags] PATH...",
		Short: "Convert media files to AV1",
		Long: `Convert each media file to AV1 video with Opus audio in a Matroska container.
Directories are scanned recursively. For every file the quality search picks the
lowest bitrate that reaches the target VMAF, then ffmpeg encodes with it.

While running, type p to pause, r to resume, q to cancel and s for status.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := config.LoadConfig(opts, cmd)
			if err == nil {
				err = runBatch(cmd.Context(), opts, args)
			}
			var exit *ExitError
			if err != nil && !errors.As(err, &exit) {
				err = &ExitError{Code: ExitFatal, Err: err}
			}
			return err
		},
	}
	if err := config.BindFlags(cmd.Flags(), opts); err != nil {
		panic(err)
	}
	return cmd
}

// initLogging sends logs to stderr so stdout stays with the console, and
// merges per-module levels from the config file.
func initLogging(opts *RunOptions) {
	fileCfg := config.LoadLoggingConfig(opts.Config)
	logging.Initialize(logging.Config{
		Level:   opts.LoggingLevel,
		Format:  opts.LoggingFormat,
		Output:  "stderr",
		Modules: fileCfg.Modules,
	})
}

func runBatch(parent context.Context, opts *RunOptions, paths []string) error {
	initLogging(opts)
	logger := logging.GetLogger("main")

	cfg, err := opts.JobConfig()
	if err != nil {
		return err
	}
	tasks, skipped, err := job.Enumerate(paths)
	for _, e := range skipped {
		logger.Warn("Skipping unreadable path", "error", e)
	}
	if err != nil {
		return err
	}
	if len(skipped) > 0 {
		fmt.Fprintf(os.Stderr, "Skipped %d unreadable path(s), converting %d file(s)\n", len(skipped), len(tasks))
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !opts.SkipPreflight {
		if err := preflight(ctx, cfg); err != nil {
			return err
		}
	}

	decoder, err := process.NewDecoder(opts.LegacyCodepage)
	if err != nil {
		return err
	}
	sup := process.NewSupervisor(logging.GetLogger("process"), decoder)

	bus := events.New()
	var r *runner.Runner
	observer := events.NewObserver(bus, func() string { return r.Status().RunID })
	out := newConsole(os.Stdout, isatty.IsTerminal(os.Stdout.Fd()))

	var runnerOpts []runner.Option
	if cfg.KeepAwake {
		runnerOpts = append(runnerOpts, runner.WithKeepAwake(systemd.NewInhibitor("av1forge")))
	}
	var power *systemd.Manager
	if cfg.ShutdownWhenDone {
		if power, err = systemd.NewManager(ctx); err != nil {
			logger.Warn("Power control unavailable, the machine will stay on", "error", err)
			power = nil
		} else {
			defer power.Close()
			runnerOpts = append(runnerOpts, runner.WithPowerController(power))
		}
	}
	r = runner.New(sup, runner.MultiObserver{out, observer}, runnerOpts...)

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	serveCtx, stopServing := context.WithCancel(gctx)
	defer stopServing()

	collector := collectors.NewRunCollector(bus)
	if err := collector.Start(serveCtx); err != nil {
		return err
	}
	defer collector.Stop()

	if opts.Listen != "" {
		logging.SetLogCallback(func(entry logging.LogEntry) { bus.Publish(api.LogEvent(entry)) })
		defer logging.SetLogCallback(nil)

		heartbeat := exporters.NewSSEExporter(bus, r)
		heartbeat.Start(serveCtx)
		defer heartbeat.Stop()

		apiOpts := &api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Run:               r,
			EventBus:          bus,
			FFmpegPath:        cfg.Tools.FFmpeg,
			PrometheusHandler: exporters.HTTPHandler(),
		}
		if power != nil {
			apiOpts.Power = power
		}
		server := api.NewServer(apiOpts)
		g.Go(func() error { return server.Serve(serveCtx, opts.Listen) })
	}

	if _, statErr := os.Stat(opts.Config); statErr == nil {
		watcher := config.WatchLogging(opts.Config, "stderr", logger)
		g.Go(func() error { return watcher.Run(serveCtx) })
	}

	if err := r.Start(ctx, cfg, tasks); err != nil {
		stopServing()
		_ = g.Wait()
		return err
	}
	logger.Info("Run started", "run_id", r.Status().RunID, "files", len(tasks), "backend", cfg.Backend)

	if opts.Interactive || isatty.IsTerminal(os.Stdin.Fd()) {
		out.Printf(consoleHelp)
		// Not part of the group: a blocked stdin read cannot be interrupted.
		go func() {
			if err := readCommands(os.Stdin, r, out); err != nil {
				logger.Warn("Console input failed", "error", err)
			}
		}()
	}

	summary := r.Wait()

	if summary.State == runner.StateCompleted && cfg.ShutdownWhenDone && power != nil {
		awaitPowerOff(ctx, power, out)
	}

	stopServing()
	if err := g.Wait(); err != nil {
		logger.Error("Background service failed", "error", err)
	}
	return exitFor(summary)
}

// awaitPowerOff keeps the process alive through the shutdown grace period
// so an interrupt can still abort the scheduled power-off.
func awaitPowerOff(ctx context.Context, power *systemd.Manager, out *console) {
	out.Printf("Powering off in %s. Press Ctrl+C to abort.", runner.ShutdownDelay)
	select {
	case <-ctx.Done():
		if power.CancelPowerOff() {
			out.Printf("Power-off cancelled")
		}
	case <-time.After(runner.ShutdownDelay + time.Second):
	}
}

// preflight checks that ffmpeg was built with the selected encoder. A
// failure to list encoders only warns; the run itself will report it.
func preflight(ctx context.Context, cfg job.JobConfig) error {
	profile, err := encoders.ProfileFor(cfg.Backend)
	if err != nil {
		return err
	}
	list, err := encoders.ListEncoders(ctx, cfg.Tools.FFmpeg)
	if err != nil {
		logging.GetLogger("encoders").Warn("Could not list ffmpeg encoders", "error", err)
		return nil
	}
	if !encoders.Supports(list, profile) {
		return fmt.Errorf("%s does not provide %s; pick another backend or pass --skip-preflight", cfg.Tools.FFmpeg, profile.Encoder())
	}
	return nil
}

// Package app wires configuration, logging, and the session pipeline into
// the whisperkey process entry point.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rbright/whisperkey/internal/audio"
	"github.com/rbright/whisperkey/internal/cli"
	"github.com/rbright/whisperkey/internal/config"
	"github.com/rbright/whisperkey/internal/logging"
	"github.com/rbright/whisperkey/internal/output"
	"github.com/rbright/whisperkey/internal/session"
	"github.com/rbright/whisperkey/internal/trigger"
	"github.com/rbright/whisperkey/internal/typist"
	"github.com/rbright/whisperkey/internal/version"
	"github.com/rbright/whisperkey/internal/wire"
)

const binaryName = "whisperkey"

// Runner carries the process I/O surfaces. Logger overrides the file logger
// when set, which tests use.
type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Execute runs the CLI with default wiring and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

// Execute parses arguments and dispatches to the requested mode.
func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}
	if parsed.ShowVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}
	if parsed.ListDevices {
		return r.listDevices(ctx)
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	loaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range loaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("service start",
		"config", loaded.Path,
		"log", logRuntime.Path,
		"server", loaded.Config.ServerURL,
		"hotkey", loaded.Config.Hotkey.Combo,
		"session_type", os.Getenv("XDG_SESSION_TYPE"),
	)

	return r.runService(ctx, loaded.Config, logger)
}

// runService starts the resident dictation service and blocks until the
// context ends or startup fails.
func (r Runner) runService(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	trig, err := trigger.New(cfg.Hotkey, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("hotkey setup failed", "error", err.Error())
		return 1
	}

	// The capture device is opened when a session starts, so an absent or
	// busy microphone fails that session without taking the service down.
	source := audio.NewSource(cfg.Audio, logger)
	defer source.Shutdown()

	client := wire.NewClient(cfg.ServerURL, logger)
	reconciler := typist.New(output.NewCommandTyper(cfg.Typing.Cmd, logger), cfg.Typing.Delay, logger)
	controller := session.NewController(cfg, source, client, reconciler, logger)

	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	triggerErr := make(chan error, 1)
	go func() { triggerErr <- trig.Run(serviceCtx) }()

	controllerDone := make(chan struct{})
	go func() {
		controller.Run(serviceCtx, trig.Toggles())
		close(controllerDone)
	}()

	fmt.Fprintf(r.Stdout, "%s ready: press %s to dictate\n", binaryName, cfg.Hotkey.Combo)

	exit := 0
	select {
	case err := <-triggerErr:
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			logger.Error("trigger listener failed", "error", err.Error())
			exit = 1
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	cancel()
	<-controllerDone
	return exit
}

// listDevices prints available input devices, marking the default with '*'.
func (r Runner) listDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

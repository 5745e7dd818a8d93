// Package app wires parsed commands to sessions, the service container, and
// process-level concerns like logging and the metrics endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/hark/internal/cli"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/doctor"
	"github.com/rbright/hark/internal/logging"
	"github.com/rbright/hark/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("hark"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("hark"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	level, err := logging.ParseLevel(parsed.LogLevel)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	logger := r.Logger
	if logger == nil {
		logRuntime, err := logging.New(level)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
			return 1
		}
		defer func() { _ = logRuntime.Close() }()
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		version.Attr(),
	)

	if parsed.Command == cli.CommandDoctor {
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	}

	services := newInjector(cfgLoaded, logger)
	defer services.Shutdown()

	started := time.Now()
	code := r.withMetricsServer(ctx, services, func(ctx context.Context) error {
		return r.dispatch(ctx, parsed, services)
	})
	logCommandResult(logger, parsed.Command, started, code)
	return code
}

func (r Runner) dispatch(ctx context.Context, parsed cli.Parsed, inj injector) error {
	switch parsed.Command {
	case cli.CommandDecode:
		return r.commandDecode(ctx, parsed, inj)
	case cli.CommandStream:
		return r.commandStream(ctx, parsed, inj)
	case cli.CommandSpot:
		return r.commandSpot(ctx, parsed, inj)
	case cli.CommandTTS:
		return r.commandTTS(ctx, parsed, inj)
	case cli.CommandDenoise:
		return r.commandDenoise(ctx, parsed, inj)
	case cli.CommandServe:
		return r.commandServe(ctx, parsed, inj)
	default:
		return fmt.Errorf("%w: %q", errUnsupported, parsed.Command)
	}
}

var errUnsupported = errors.New("unsupported command")

func logCommandResult(logger *slog.Logger, cmd cli.Command, started time.Time, code int) {
	fields := []any{
		"command", cmd,
		"exit_code", code,
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if code != 0 {
		logger.Error("command failed", fields...)
		return
	}
	logger.Info("command complete", fields...)
}

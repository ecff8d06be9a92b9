package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rbright/kamay/internal/audio"
	"github.com/rbright/kamay/internal/cli"
	"github.com/rbright/kamay/internal/config"
	"github.com/rbright/kamay/internal/doctor"
	"github.com/rbright/kamay/internal/ipc"
	"github.com/rbright/kamay/internal/lesson"
	"github.com/rbright/kamay/internal/logging"
	"github.com/rbright/kamay/internal/report"
	"github.com/rbright/kamay/internal/version"
)

type Runner struct {
	// Stdin feeds quiz answers; nil means os.Stdin.
	Stdin  io.Reader
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
		fmt.Fprint(r.Stderr, cli.HelpText())
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, parsed.Help)
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
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
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		rep := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, rep.String())
		if rep.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandLessons:
		return r.commandLessons(ctx, cfgLoaded.Config, parsed.Language)
	case cli.CommandQuiz:
		return r.commandQuiz(ctx, cfgLoaded.Config, parsed.Lesson, parsed.Language, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandSelect:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandSelect, Item: parsed.Item})
	case cli.CommandDeselect:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandDeselect})
	case cli.CommandRetry:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandRetry})
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandStop})
	case cli.CommandPractice:
		return r.commandPractice(ctx, cfgLoaded.Config, parsed.Practice, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}
	fmt.Fprint(r.Stdout, report.Devices(devices))
	return 0
}

func (r Runner) commandLessons(ctx context.Context, cfg config.Config, language string) int {
	if language == "" {
		language = cfg.Language
	}
	store, err := lesson.Open(ctx, language)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	modules, err := store.CurrentModules(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	profile, err := store.Profile(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	board, err := store.Leaderboard(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprint(r.Stdout, report.Modules(modules))
	fmt.Fprintln(r.Stdout)
	fmt.Fprint(r.Stdout, report.Profile(profile, board))
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	resp, handled, err := tryForward(ctx, ipc.RuntimeSocketPath(), ipc.Request{Command: ipc.CommandStatus})
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	state := resp.State
	if state == "" {
		state = "idle"
	}
	fmt.Fprint(r.Stdout, report.Status(state, resp.Status))
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	resp, handled, err := tryForward(ctx, ipc.RuntimeSocketPath(), req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active kamay session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward sends req to a running session. handled is false when no
// session is listening.
func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 500*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}
	if ipc.IsNoSession(err) {
		return ipc.Response{}, false, nil
	}
	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

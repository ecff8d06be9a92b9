// Package feedback renders practice session changes to the learner on the
// console, as desktop notifications, or through a user command.
package feedback

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/rbright/kamay/internal/config"
	"github.com/rbright/kamay/internal/practice"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// Notifier is the practice.Feedback implementation used by runtime sessions.
type Notifier struct {
	cfg      config.FeedbackConfig
	out      io.Writer
	color    bool
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	last                  string
	desktopNotificationID uint32
	soundMu               sync.Mutex

	cue func(context.Context, cueKind) error
}

// New builds a notifier for cfg writing console output to out.
func New(cfg config.FeedbackConfig, out io.Writer, logger *slog.Logger) *Notifier {
	if out == nil {
		out = io.Discard
	}
	return &Notifier{
		cfg:      cfg,
		out:      out,
		color:    useColor(cfg.Color, out),
		logger:   logger,
		messages: messagesFromEnv(),
		cue:      emitCue,
	}
}

func useColor(mode string, out io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (n *Notifier) ShowPrompt(ctx context.Context, item practice.Item) {
	text := fmt.Sprintf("%s: %s", n.messages.prompt, item.ExpectedLabel)
	n.emit(ctx, event{kind: "prompt", item: item, text: text, color: ansiBlue, timeoutMS: 0})
}

// ShowResult reports one recognizer outcome. Repeats of the previous result
// for the same item are suppressed.
func (n *Notifier) ShowResult(ctx context.Context, item practice.Item, outcome practice.Outcome, detected string) {
	key := item.ID + "\x00" + string(outcome) + "\x00" + detected
	n.mu.Lock()
	repeat := key == n.last
	n.last = key
	n.mu.Unlock()
	if repeat {
		return
	}

	switch outcome {
	case practice.OutcomeCorrect:
		n.playCue(ctx, cueCorrect)
		text := fmt.Sprintf("%s %s", n.messages.correct, item.ExpectedLabel)
		n.emit(ctx, event{kind: "correct", item: item, detected: detected, text: text, color: ansiGreen, timeoutMS: 1500})
	case practice.OutcomeIncorrect:
		text := fmt.Sprintf("%s: %q (%s %s)", n.messages.incorrect, detected, n.messages.expected, item.ExpectedLabel)
		n.emit(ctx, event{kind: "incorrect", item: item, detected: detected, text: text, color: ansiYellow, timeoutMS: 1500})
	}
}

func (n *Notifier) ShowError(ctx context.Context, message string) {
	if message == "" {
		message = n.messages.errorText
	}
	n.clearLast()
	n.emit(ctx, event{kind: "error", text: message, color: ansiYellow, timeoutMS: 2500})
}

// ShowBlocking displays a device error that halts practice until retried.
func (n *Notifier) ShowBlocking(ctx context.Context, message string) {
	n.clearLast()
	n.playCue(ctx, cueBlocked)
	text := message + " " + n.messages.retryHint
	n.emit(ctx, event{kind: "blocking", text: text, color: ansiRed + ansiBold, timeoutMS: 0})
}

func (n *Notifier) ShowComplete(ctx context.Context, progress int) {
	n.playCue(ctx, cueComplete)
	text := fmt.Sprintf("%s (%d%%)", n.messages.complete, progress)
	n.emit(ctx, event{kind: "complete", text: text, color: ansiGreen + ansiBold, timeoutMS: 4000, progress: progress})
}

// Hide dismisses any notification still on screen.
func (n *Notifier) Hide(ctx context.Context) {
	n.clearLast()
	if n.cfg.Backend != "desktop" {
		return
	}
	n.run(ctx, n.dismissDesktop)
}

type event struct {
	kind      string
	item      practice.Item
	detected  string
	text      string
	color     string
	timeoutMS int
	progress  int
}

func (n *Notifier) clearLast() {
	n.mu.Lock()
	n.last = ""
	n.mu.Unlock()
}

// emit dispatches one event through the configured backend.
func (n *Notifier) emit(ctx context.Context, ev event) {
	switch n.cfg.Backend {
	case "desktop":
		n.run(ctx, func(ctx context.Context) error { return n.notifyDesktop(ctx, ev.timeoutMS, ev.text) })
	case "command":
		n.run(ctx, func(ctx context.Context) error { return n.runCommand(ctx, ev) })
	default:
		n.writeConsole(ev)
	}
}

func (n *Notifier) writeConsole(ev event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.color {
		_, _ = fmt.Fprintf(n.out, "%s%s%s\n", ev.color, ev.text, ansiReset)
		return
	}
	_, _ = fmt.Fprintln(n.out, ev.text)
}

// runCommand executes the configured argv with the event in its environment.
func (n *Notifier) runCommand(ctx context.Context, ev event) error {
	argv := n.cfg.Command.Argv
	if len(argv) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		"KAMAY_EVENT="+ev.kind,
		"KAMAY_ITEM="+ev.item.ID,
		"KAMAY_EXPECTED="+ev.item.ExpectedLabel,
		"KAMAY_DETECTED="+ev.detected,
		"KAMAY_MESSAGE="+ev.text,
		"KAMAY_PROGRESS="+strconv.Itoa(ev.progress),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return fmt.Errorf("feedback command failed: %w", err)
		}
		return fmt.Errorf("feedback command failed: %w (%s)", err, trimmed)
	}
	return nil
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "kamay"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes a backend operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("feedback dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.Sound {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := n.cue(ctx, kind); err != nil {
			n.log("feedback audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}

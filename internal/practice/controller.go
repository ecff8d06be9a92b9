package practice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/kamay/internal/capture"
	"github.com/rbright/kamay/internal/clock"
	"github.com/rbright/kamay/internal/fsm"
	"github.com/rbright/kamay/internal/ipc"
	"github.com/rbright/kamay/internal/poll"
	"github.com/rbright/kamay/internal/recognize"
	"github.com/rbright/kamay/internal/snapshot"
)

type actionKind int

const (
	actionRetry actionKind = iota + 1
	actionStop
	actionDeviceLost
	actionComplete
)

type action struct {
	kind actionKind
	err  error
}

// Options configures one practice session.
type Options struct {
	SessionID   string
	LessonID    string
	SubLessonID string
	Mode        Mode
	Route       recognize.Route

	Interval     time.Duration
	AdvanceDelay time.Duration
	ErrorDisplay time.Duration
	StartTimeout time.Duration
	XPPerItem    int
}

// Dumper receives every payload sent and every annotated frame received.
type Dumper interface {
	Payload(recognize.Payload) error
	Annotated(dataURL string) error
}

// Deps are the collaborators a Controller drives. Device, Encoder and
// Recognizer are required.
type Deps struct {
	Device     Device
	Encoder    Encoder
	Recognizer recognize.Recognizer
	Reporter   ProgressReporter
	Feedback   Feedback
	Observer   Observer
	Dumper     Dumper
	Clock      clock.Clock
	Logger     *slog.Logger
}

// Result summarizes one Run.
type Result struct {
	SessionID  string
	State      fsm.State
	Progress   int
	Correct    int
	Total      int
	Done       bool
	XP         int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller owns the capture device, poller and session for one practice
// run. All session mutation happens under mu; capture and recognition run
// on the poller's tick goroutine without it.
type Controller struct {
	opts       Options
	device     Device
	encoder    Encoder
	recognizer recognize.Recognizer
	reporter   ProgressReporter
	feedback   Feedback
	observer   Observer
	dumper     Dumper
	clock      clock.Clock
	logger     *slog.Logger
	poller     *poll.Poller
	actions    chan action

	mu          sync.Mutex
	phase       fsm.State
	session     *Session
	blocking    string
	stopping    bool
	runCtx      context.Context
	startCancel context.CancelFunc
	advance     clock.Timer
	errClear    clock.Timer
	lastCorrect string
}

// DefaultInterval is the poll cadence for mode when none is configured.
func DefaultInterval(mode Mode) time.Duration {
	switch mode {
	case ModeSequence:
		return 250 * time.Millisecond
	case ModeSpeech:
		return 500 * time.Millisecond
	default:
		return time.Second
	}
}

// NewController builds an idle controller over items.
func NewController(opts Options, deps Deps, items []Item) (*Controller, error) {
	if deps.Device == nil || deps.Encoder == nil || deps.Recognizer == nil {
		return nil, errors.New("practice controller requires a device, encoder and recognizer")
	}
	session, err := NewSession(items)
	if err != nil {
		return nil, err
	}

	if opts.Mode == "" {
		opts.Mode = ModeStatic
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval(opts.Mode)
	}
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 10 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Feedback == nil {
		deps.Feedback = noopFeedback{}
	}
	if deps.Observer == nil {
		deps.Observer = noopObserver{}
	}
	if deps.Dumper == nil {
		deps.Dumper = (*snapshot.Dumper)(nil)
	}

	c := &Controller{
		opts:       opts,
		device:     deps.Device,
		encoder:    deps.Encoder,
		recognizer: deps.Recognizer,
		reporter:   deps.Reporter,
		feedback:   deps.Feedback,
		observer:   deps.Observer,
		dumper:     deps.Dumper,
		clock:      deps.Clock,
		logger:     deps.Logger,
		actions:    make(chan action, 8),
		phase:      fsm.StateIdle,
		session:    session,
		runCtx:     context.Background(),
	}
	c.poller = poll.New(deps.Clock, opts.Interval, c.tick)
	return c, nil
}

// State returns the current session phase.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Snapshot returns a copy of the session read model.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Snapshot()
}

// PollerState exposes the poller's tagged state.
func (c *Controller) PollerState() poll.State {
	return c.poller.State()
}

// Run drives the session until it completes, is stopped, or ctx ends.
// The device, poller and timers are released on every exit path.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{SessionID: c.opts.SessionID, StartedAt: c.clock.Now()}

	if err := c.transition(fsm.EventStart); err != nil {
		return c.finish(ctx, result, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.runCtx = runCtx
	c.mu.Unlock()

	defer func() {
		c.release()
		cancel()
	}()

	c.startDevice(runCtx)

	for {
		// a stop whose signal was dropped on a full queue still ends the run
		if c.stopRequested() {
			_ = c.transition(fsm.EventStop)
			return c.finish(ctx, result, nil)
		}
		select {
		case <-ctx.Done():
			_ = c.transition(fsm.EventStop)
			return c.finish(ctx, result, nil)
		case a := <-c.actions:
			switch a.kind {
			case actionStop:
				_ = c.transition(fsm.EventStop)
				return c.finish(ctx, result, nil)
			case actionRetry:
				if err := c.transition(fsm.EventRetry); err != nil {
					c.logger.Debug("ignoring retry", "error", err)
					continue
				}
				c.startDevice(runCtx)
			case actionDeviceLost:
				c.deviceFailed(a.err)
			case actionComplete:
				if err := c.transition(fsm.EventComplete); err != nil {
					c.logger.Debug("ignoring completion", "error", err)
					continue
				}
				c.mu.Lock()
				progress := c.session.Progress()
				c.mu.Unlock()
				c.feedback.ShowComplete(runCtx, progress)
				return c.finish(ctx, result, nil)
			}
		}
	}
}

// DeviceLost reports that the capture device disappeared, e.g. on unplug.
func (c *Controller) DeviceLost(err error) {
	if !c.signal(action{kind: actionDeviceLost, err: err}) {
		c.logger.Warn("device loss dropped; action queue full", "error", err)
	}
}

func (c *Controller) stopRequested() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopping
}

func (c *Controller) signal(a action) bool {
	select {
	case c.actions <- a:
		return true
	default:
		return false
	}
}

func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitionLocked(event)
}

func (c *Controller) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(c.phase, event)
	if err != nil {
		return err
	}
	c.phase = next
	c.observer.Phase(next)
	return nil
}

func (c *Controller) media() capture.Media {
	if c.opts.Mode == ModeSpeech {
		return capture.Microphone
	}
	return capture.Camera
}

func (c *Controller) startDevice(runCtx context.Context) {
	startCtx, cancel := context.WithTimeout(runCtx, c.opts.StartTimeout)
	c.mu.Lock()
	c.startCancel = cancel
	c.mu.Unlock()

	err := c.device.Start(startCtx)
	cancel()

	c.mu.Lock()
	c.startCancel = nil
	stopping := c.stopping
	c.mu.Unlock()

	if runCtx.Err() != nil || stopping {
		return
	}
	if err != nil {
		c.deviceFailed(err)
		return
	}

	c.mu.Lock()
	if err := c.transitionLocked(fsm.EventReady); err != nil {
		c.mu.Unlock()
		c.logger.Warn("device ready in unexpected phase", "error", err)
		return
	}
	c.blocking = ""
	var prompt *Item
	if c.session.Selected() == "" {
		if id, ok := c.session.NextUnfinished(c.lastCorrect); ok {
			if _, err := c.session.SelectItem(id); err == nil {
				item, _ := c.session.Item(id)
				prompt = &item
			}
		}
	}
	c.reconcileLocked(true)
	c.mu.Unlock()

	c.logger.Info("capture ready", "mode", string(c.opts.Mode))
	if prompt != nil {
		c.feedback.ShowPrompt(runCtx, *prompt)
	}
}

func (c *Controller) deviceFailed(err error) {
	if err == nil {
		err = errors.New("capture device lost")
	}
	de := capture.Classify(c.media(), "", err)

	c.mu.Lock()
	if c.phase != fsm.StateStarting && c.phase != fsm.StatePracticing {
		c.mu.Unlock()
		return
	}
	_ = c.transitionLocked(fsm.EventFail)
	c.poller.Stop()
	stopTimer(&c.advance)
	c.blocking = de.Message()
	ctx := c.runCtx
	c.mu.Unlock()

	if serr := c.device.Stop(); serr != nil {
		c.logger.Warn("release failed device", "error", serr)
	}
	c.logger.Warn("capture device error", "kind", string(de.Kind), "error", err)
	c.feedback.ShowBlocking(ctx, de.Message())
}

// reconcileLocked runs the poller iff an item is selected and the device is
// ready. restart re-arms from scratch, cancelling any in-flight tick.
func (c *Controller) reconcileLocked(restart bool) {
	want := c.phase == fsm.StatePracticing && c.session.Selected() != "" && c.device.Ready()
	switch {
	case !want:
		c.poller.Stop()
	case restart || !c.poller.Running():
		c.poller.Start(c.runCtx)
	}
}

func (c *Controller) tick(ctx context.Context) {
	c.mu.Lock()
	ticket, ok := c.session.Current()
	practicing := c.phase == fsm.StatePracticing
	c.mu.Unlock()
	if !ok || !practicing {
		return
	}
	c.observer.Tick(c.opts.Mode)

	payload, err := c.encoder.Capture(ctx)
	if err != nil {
		c.captureFailed(ctx, err)
		return
	}
	if err := c.dumper.Payload(payload); err != nil {
		c.logger.Debug("debug dump failed", "error", err)
	}

	res, err := c.recognizer.Recognize(ctx, payload, c.opts.Route)
	if ctx.Err() != nil {
		c.logger.Debug("dropping response for cancelled tick", "item", ticket.ItemID)
		return
	}
	c.apply(ticket, res, err)
}

func (c *Controller) captureFailed(ctx context.Context, err error) {
	switch {
	case errors.Is(err, snapshot.ErrEmptyCapture):
		c.observer.EmptyCapture(c.opts.Mode)
		c.logger.Debug("empty capture skipped", "error", err)
	case ctx.Err() != nil:
	case errors.Is(err, capture.ErrNotReady):
		c.logger.Debug("capture not ready")
	default:
		if _, ok := capture.AsDeviceError(err); ok {
			c.DeviceLost(err)
			return
		}
		c.logger.Warn("capture failed", "error", err)
	}
}

func (c *Controller) apply(ticket Ticket, res recognize.Result, rerr error) {
	c.mu.Lock()
	outcome := c.session.Apply(ticket, res, rerr)
	item, _ := c.session.Item(ticket.ItemID)
	snap := c.session.Snapshot()
	ctx := c.runCtx

	switch outcome {
	case OutcomeStale:
		c.mu.Unlock()
		c.logger.Debug("dropping stale response", "item", ticket.ItemID)
		return
	case OutcomeError:
		if c.opts.ErrorDisplay > 0 {
			seq := c.session.ErrorSeq()
			stopTimer(&c.errClear)
			c.errClear = c.clock.AfterFunc(c.opts.ErrorDisplay, func() {
				c.mu.Lock()
				defer c.mu.Unlock()
				c.session.ClearError(seq)
			})
		}
	case OutcomeCorrect:
		c.lastCorrect = ticket.ItemID
		c.reconcileLocked(false)
		stopTimer(&c.advance)
		c.advance = c.clock.AfterFunc(c.opts.AdvanceDelay, c.autoAdvance)
	}
	c.mu.Unlock()

	c.observer.Outcome(c.opts.Mode, outcome)
	if outcome == OutcomeError {
		c.logger.Info("recognition failed", "item", item.ID, "error", rerr)
		c.feedback.ShowError(ctx, snap.LastError)
		return
	}

	c.logger.Info("recognition result", "item", item.ID, "label", res.Label, "outcome", string(outcome))
	c.feedback.ShowResult(ctx, item, outcome, snap.Detected)
	if err := c.dumper.Annotated(res.AnnotatedImage); err != nil {
		c.logger.Debug("annotated dump failed", "error", err)
	}
}

func (c *Controller) autoAdvance() {
	c.mu.Lock()
	c.advance = nil
	if c.phase != fsm.StatePracticing || c.session.Selected() != "" {
		c.mu.Unlock()
		return
	}
	if c.session.Done() {
		c.mu.Unlock()
		c.signal(action{kind: actionComplete})
		return
	}
	id, ok := c.session.NextUnfinished(c.lastCorrect)
	if !ok {
		c.mu.Unlock()
		return
	}
	if _, err := c.session.SelectItem(id); err != nil {
		c.mu.Unlock()
		c.logger.Warn("auto-advance failed", "item", id, "error", err)
		return
	}
	item, _ := c.session.Item(id)
	c.reconcileLocked(true)
	ctx := c.runCtx
	c.mu.Unlock()

	c.feedback.ShowPrompt(ctx, item)
}

// release is the single cleanup step run when Run returns.
func (c *Controller) release() {
	c.mu.Lock()
	c.poller.Stop()
	stopTimer(&c.advance)
	stopTimer(&c.errClear)
	c.mu.Unlock()

	if err := c.device.Stop(); err != nil {
		c.logger.Warn("release capture device", "error", err)
	}
	c.feedback.Hide(context.Background())
}

func (c *Controller) finish(ctx context.Context, result Result, err error) Result {
	c.mu.Lock()
	result.State = c.phase
	result.Progress = c.session.Progress()
	result.Correct = c.session.CorrectCount()
	result.Total = len(c.session.items)
	result.Done = c.session.Done()
	c.mu.Unlock()

	result.Err = err
	if err == nil {
		result.XP, result.Err = c.report(context.WithoutCancel(ctx), result)
	}
	result.FinishedAt = c.clock.Now()
	return result
}

func (c *Controller) report(ctx context.Context, result Result) (int, error) {
	if c.reporter == nil || c.opts.LessonID == "" || result.Correct == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := c.reporter.UpdateLessonProgress(ctx, c.opts.LessonID, result.Progress); err != nil {
		return 0, fmt.Errorf("update lesson progress: %w", err)
	}
	if result.Done && c.opts.SubLessonID != "" {
		if err := c.reporter.CompleteSubLesson(ctx, c.opts.LessonID, c.opts.SubLessonID); err != nil {
			return 0, fmt.Errorf("complete sub-lesson: %w", err)
		}
	}
	xp := c.opts.XPPerItem * result.Correct
	if xp > 0 {
		if err := c.reporter.AddXP(ctx, xp); err != nil {
			return 0, fmt.Errorf("add xp: %w", err)
		}
	}
	return xp, nil
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// Handle serves one IPC command against the running session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return c.statusResponse("status")
	case ipc.CommandSelect:
		return c.handleSelect(req.Item)
	case ipc.CommandDeselect:
		return c.handleDeselect()
	case ipc.CommandRetry:
		return c.handleRetry()
	case ipc.CommandStop:
		return c.handleStop()
	default:
		return c.errorResponse(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

func (c *Controller) handleSelect(ref string) ipc.Response {
	c.mu.Lock()
	if c.phase != fsm.StatePracticing {
		phase := c.phase
		c.mu.Unlock()
		return c.errorResponse(fmt.Sprintf("cannot select from state %s", phase))
	}
	id, ok := c.session.Resolve(ref)
	if !ok {
		c.mu.Unlock()
		return c.errorResponse(fmt.Sprintf("%v: %s", ErrUnknownItem, ref))
	}
	stopTimer(&c.advance)
	ticket, err := c.session.SelectItem(id)
	if err != nil {
		c.mu.Unlock()
		return c.errorResponse(err.Error())
	}
	c.reconcileLocked(true)
	item, _ := c.session.Item(id)
	ctx := c.runCtx
	c.mu.Unlock()

	if !ticket.Active() {
		return c.statusResponse("deselected " + id)
	}
	c.feedback.ShowPrompt(ctx, item)
	return c.statusResponse("selected " + id)
}

func (c *Controller) handleDeselect() ipc.Response {
	c.mu.Lock()
	stopTimer(&c.advance)
	c.session.Deselect()
	c.reconcileLocked(false)
	c.mu.Unlock()
	return c.statusResponse("deselected")
}

func (c *Controller) handleRetry() ipc.Response {
	if phase := c.State(); phase != fsm.StateDeviceError {
		return c.errorResponse(fmt.Sprintf("cannot retry from state %s", phase))
	}
	if !c.signal(action{kind: actionRetry}) {
		return c.statusResponse("retry already requested")
	}
	return c.statusResponse("retry requested")
}

func (c *Controller) handleStop() ipc.Response {
	c.mu.Lock()
	phase := c.phase
	if phase == fsm.StateStopped || phase == fsm.StateComplete {
		c.mu.Unlock()
		return c.errorResponse(fmt.Sprintf("cannot stop from state %s", phase))
	}
	c.stopping = true
	if c.startCancel != nil {
		c.startCancel()
	}
	c.mu.Unlock()

	if !c.signal(action{kind: actionStop}) {
		c.logger.Debug("stop signal dropped; action queue full")
	}
	return c.statusResponse("stop requested")
}

func (c *Controller) errorResponse(msg string) ipc.Response {
	return ipc.Response{OK: false, State: string(c.State()), Error: msg}
}

func (c *Controller) statusResponse(msg string) ipc.Response {
	c.mu.Lock()
	snap := c.session.Snapshot()
	phase := c.phase
	blocking := c.blocking
	c.mu.Unlock()

	status := &ipc.Status{
		SessionID: c.opts.SessionID,
		Lesson:    c.opts.LessonID,
		Mode:      string(c.opts.Mode),
		Selected:  snap.Selected,
		Detected:  snap.Detected,
		LastError: snap.LastError,
		Blocking:  blocking,
		Progress:  snap.Progress,
		Done:      snap.Done,
		Sentence:  snap.Sentence,
		Items:     make([]ipc.ItemStatus, 0, len(snap.Items)),
	}
	for _, it := range snap.Items {
		status.Items = append(status.Items, ipc.ItemStatus{ID: it.ID, Expected: it.ExpectedLabel, Status: it.Status})
	}
	return ipc.Response{OK: true, State: string(phase), Message: strings.TrimSpace(msg), Status: status}
}

package practice

import (
	"context"

	"github.com/rbright/kamay/internal/fsm"
	"github.com/rbright/kamay/internal/recognize"
)

// Device is the lifecycle half of a capture source.
type Device interface {
	Start(ctx context.Context) error
	Stop() error
	Ready() bool
}

// Encoder produces one payload from the device's current state.
type Encoder interface {
	Capture(ctx context.Context) (recognize.Payload, error)
}

// EncoderFunc adapts a capture method such as FrameEncoder.CaptureFrame.
type EncoderFunc func(ctx context.Context) (recognize.Payload, error)

func (f EncoderFunc) Capture(ctx context.Context) (recognize.Payload, error) {
	return f(ctx)
}

// ProgressReporter receives lesson progress when a session ends.
type ProgressReporter interface {
	UpdateLessonProgress(ctx context.Context, lessonID string, progress int) error
	CompleteSubLesson(ctx context.Context, lessonID, subLessonID string) error
	AddXP(ctx context.Context, amount int) error
}

// Feedback renders session changes to the learner.
type Feedback interface {
	ShowPrompt(ctx context.Context, item Item)
	ShowResult(ctx context.Context, item Item, outcome Outcome, detected string)
	ShowError(ctx context.Context, message string)
	ShowBlocking(ctx context.Context, message string)
	ShowComplete(ctx context.Context, progress int)
	Hide(ctx context.Context)
}

// Observer counts loop activity for metrics.
type Observer interface {
	Tick(mode Mode)
	EmptyCapture(mode Mode)
	Outcome(mode Mode, outcome Outcome)
	Phase(state fsm.State)
}

type noopFeedback struct{}

func (noopFeedback) ShowPrompt(context.Context, Item)                  {}
func (noopFeedback) ShowResult(context.Context, Item, Outcome, string) {}
func (noopFeedback) ShowError(context.Context, string)                 {}
func (noopFeedback) ShowBlocking(context.Context, string)              {}
func (noopFeedback) ShowComplete(context.Context, int)                 {}
func (noopFeedback) Hide(context.Context)                              {}

type noopObserver struct{}

func (noopObserver) Tick(Mode)             {}
func (noopObserver) EmptyCapture(Mode)     {}
func (noopObserver) Outcome(Mode, Outcome) {}
func (noopObserver) Phase(fsm.State)       {}

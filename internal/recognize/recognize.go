// Package recognize sends captured payloads to external sign and speech recognizers.
package recognize

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// Kind distinguishes image from audio payloads.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// Payload is one encoded capture ready to send.
type Payload struct {
	Kind   Kind
	MIME   string
	Data   []byte
	Width  int
	Height int
	// SampleRate is set for audio payloads.
	SampleRate int
}

// DataURL renders the payload in the canonical data URL form,
// e.g. "data:image/jpeg;base64,/9j/4AAQ...".
func (p Payload) DataURL() string {
	return "data:" + p.MIME + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// Route selects the recognizer endpoint and the per-session hints sent with each request.
type Route struct {
	Endpoint string
	Language string
	ClientID string
}

// Result is one recognition outcome. Only Label is guaranteed.
type Result struct {
	Label          string
	Confidence     *float64
	AnnotatedImage string
	Sentence       []string
}

// Recognizer performs one round trip per call with no retries or caching.
type Recognizer interface {
	Recognize(ctx context.Context, payload Payload, route Route) (Result, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(context.Context, Payload, Route) (Result, error)

func (f RecognizerFunc) Recognize(ctx context.Context, payload Payload, route Route) (Result, error) {
	return f(ctx, payload, route)
}

// ErrorKind classifies recognition failures. None of them are fatal to a session.
type ErrorKind string

const (
	ErrorNetwork  ErrorKind = "network"
	ErrorServer   ErrorKind = "server"
	ErrorNoSignal ErrorKind = "no_signal"
)

// Error is a classified recognition failure.
type Error struct {
	Kind   ErrorKind
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("recognize %s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("recognize %s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// UserMessage is a short transient message suitable for on-screen feedback.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case ErrorNetwork:
		return "Recognition service unreachable"
	case ErrorServer:
		return "Recognition service error"
	case ErrorNoSignal:
		return "No sign detected"
	default:
		return "Recognition failed"
	}
}

// KindOf returns the classified kind of err, or "" when err is not a recognition error.
func KindOf(err error) ErrorKind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return ""
}

package recognize

import (
	"context"
	"fmt"
	"strings"
)

// Transcriber turns a WAV clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte, sampleRate int, language string) (string, error)
}

// SpeechRecognizer adapts a speech-to-text engine to the Recognizer contract:
// the transcript becomes the label and Route.Language is the language hint.
type SpeechRecognizer struct {
	transcriber Transcriber
}

func NewSpeechRecognizer(t Transcriber) *SpeechRecognizer {
	return &SpeechRecognizer{transcriber: t}
}

func (s *SpeechRecognizer) Recognize(ctx context.Context, payload Payload, route Route) (Result, error) {
	if payload.Kind != KindAudio {
		return Result{}, fmt.Errorf("speech recognizer cannot handle %s payloads", payload.Kind)
	}

	text, err := s.transcriber.Transcribe(ctx, payload.Data, payload.SampleRate, route.Language)
	if err != nil {
		if KindOf(err) != "" {
			return Result{}, err
		}
		return Result{}, &Error{Kind: ErrorNetwork, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, &Error{Kind: ErrorNoSignal, Msg: "no speech detected"}
	}
	return Result{Label: text}, nil
}

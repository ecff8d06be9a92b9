package recognize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeTranscriber struct {
	text     string
	err      error
	language string
	rate     int
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ []byte, sampleRate int, language string) (string, error) {
	f.language = language
	f.rate = sampleRate
	return f.text, f.err
}

func audioPayload() Payload {
	return Payload{Kind: KindAudio, MIME: "audio/wav", Data: []byte("RIFF"), SampleRate: 16000}
}

func TestSpeechRecognizerUsesTranscript(t *testing.T) {
	ft := &fakeTranscriber{text: "  thank you "}
	res, err := NewSpeechRecognizer(ft).Recognize(context.Background(), audioPayload(), Route{Language: "fil"})
	require.NoError(t, err)
	require.Equal(t, "thank you", res.Label)
	require.Equal(t, "fil", ft.language)
	require.Equal(t, 16000, ft.rate)
}

func TestSpeechRecognizerEmptyTranscriptIsNoSignal(t *testing.T) {
	_, err := NewSpeechRecognizer(&fakeTranscriber{}).Recognize(context.Background(), audioPayload(), Route{})
	require.Equal(t, ErrorNoSignal, KindOf(err))
}

func TestSpeechRecognizerEngineFailureIsNetwork(t *testing.T) {
	_, err := NewSpeechRecognizer(&fakeTranscriber{err: errors.New("unavailable")}).Recognize(context.Background(), audioPayload(), Route{})
	require.Equal(t, ErrorNetwork, KindOf(err))

	classified := &Error{Kind: ErrorServer, Msg: "bad audio"}
	_, err = NewSpeechRecognizer(&fakeTranscriber{err: classified}).Recognize(context.Background(), audioPayload(), Route{})
	require.Equal(t, ErrorServer, KindOf(err))
}

func TestSpeechRecognizerRejectsImages(t *testing.T) {
	_, err := NewSpeechRecognizer(&fakeTranscriber{}).Recognize(context.Background(), imagePayload(), Route{})
	require.Error(t, err)
}

package audio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/kamay/internal/capture"
)

func fakeSource(t *testing.T) (*Source, func() *Stream) {
	t.Helper()
	var stream *Stream
	src := NewSource(SourceOptions{Input: "default", LockDir: t.TempDir()})
	src.selectDevice = func(context.Context, string, string) (Selection, error) {
		return Selection{Device: Device{ID: "usb-mic", Available: true, Default: true}}, nil
	}
	src.openStream = func(_ context.Context, d Device) (*Stream, error) {
		stream = newStream(d)
		go func() { _, _ = stream.onPCM(make([]byte, chunkSizeBytes)) }()
		return stream, nil
	}
	return src, func() *Stream { return stream }
}

func (s *Source) recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec != nil
}

func TestSourceStartWaitsForFirstChunk(t *testing.T) {
	src, _ := fakeSource(t)
	require.False(t, src.Ready())
	require.NoError(t, src.Start(context.Background()))
	require.True(t, src.Ready())
	require.NoError(t, src.Start(context.Background()))

	require.NoError(t, src.Stop())
	require.False(t, src.Ready())
	require.NoError(t, src.Stop())
}

func TestSourceStopBeforeStart(t *testing.T) {
	require.NoError(t, NewSource(SourceOptions{}).Stop())
}

func TestSourceRecordStopsAtLimit(t *testing.T) {
	src, stream := fakeSource(t)
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	type result struct {
		pcm []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		pcm, err := src.Record(context.Background(), 100*time.Millisecond)
		done <- result{pcm, err}
	}()
	require.Eventually(t, src.recording, time.Second, time.Millisecond)

	// 100ms is 3200 bytes; feed more than that.
	_, err := stream().onPCM(make([]byte, 4*chunkSizeBytes))
	require.NoError(t, err)
	_, err = stream().onPCM(make([]byte, 4*chunkSizeBytes))
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.pcm, 3200)
}

func TestSourceRecordHonorsContext(t *testing.T) {
	src, _ := fakeSource(t)
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := src.Record(ctx, 5*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, src.recording())
}

func TestSourceRecordBeforeStart(t *testing.T) {
	_, err := NewSource(SourceOptions{}).Record(context.Background(), time.Second)
	require.ErrorIs(t, err, capture.ErrNotReady)
}

func TestSourceStreamLossIsDeviceError(t *testing.T) {
	src, stream := fakeSource(t)
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	require.NoError(t, stream().Stop())
	require.Eventually(t, func() bool { return !src.Ready() }, time.Second, time.Millisecond)

	_, err := src.Record(context.Background(), time.Second)
	de, ok := capture.AsDeviceError(err)
	require.True(t, ok)
	require.Equal(t, capture.DeviceNotFound, de.Kind)
	require.Equal(t, capture.Microphone, de.Media)
}

func TestSourceStartClassifiesFailures(t *testing.T) {
	src := NewSource(SourceOptions{LockDir: t.TempDir()})
	src.selectDevice = func(context.Context, string, string) (Selection, error) {
		return Selection{}, ErrPulseUnavailable
	}
	de, ok := capture.AsDeviceError(src.Start(context.Background()))
	require.True(t, ok)
	require.Equal(t, capture.Unsupported, de.Kind)

	src.selectDevice = func(context.Context, string, string) (Selection, error) {
		return Selection{}, errors.New("no microphones found")
	}
	de, ok = capture.AsDeviceError(src.Start(context.Background()))
	require.True(t, ok)
	require.Equal(t, capture.DeviceNotFound, de.Kind)
	require.Equal(t, "No microphone found. Please connect a microphone and try again.", de.Message())
}

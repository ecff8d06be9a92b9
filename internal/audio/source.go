package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/kamay/internal/capture"
)

// ErrRecording is returned when a clip is requested while another records.
var ErrRecording = errors.New("clip recording already in progress")

// SourceOptions configures a microphone Source.
type SourceOptions struct {
	Input    string
	Fallback string
	LockDir  string
	Logger   *slog.Logger
}

// Source owns one microphone for a practice session. The record stream stays
// open between clips; PCM outside a Record call is discarded.
type Source struct {
	opts SourceOptions

	selectDevice func(ctx context.Context, input, fallback string) (Selection, error)
	openStream   func(ctx context.Context, device Device) (*Stream, error)

	mu       sync.Mutex
	stream   *Stream
	lock     *capture.DeviceLock
	ready    bool
	stopping bool
	lastErr  error
	rec      *recording
	drained  chan struct{}
}

type recording struct {
	buf   []byte
	limit int
	full  chan struct{}
}

func NewSource(opts SourceOptions) *Source {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Source{opts: opts, selectDevice: SelectDevice, openStream: OpenStream}
}

// Start selects the microphone, opens the record stream and waits for the
// first PCM chunk.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stream != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sel, err := s.selectDevice(ctx, s.opts.Input, s.opts.Fallback)
	if err != nil {
		return micError("", err)
	}
	if sel.Warning != "" {
		s.opts.Logger.Warn(sel.Warning)
	}

	lock := capture.NewDeviceLock(s.opts.LockDir, capture.Microphone, sel.Device.ID)
	if err := lock.Acquire(); err != nil {
		return err
	}

	stream, err := s.openStream(ctx, sel.Device)
	if err != nil {
		_ = lock.Release()
		return micError(sel.Device.ID, err)
	}

	select {
	case _, ok := <-stream.Chunks():
		if !ok {
			err = errors.New("record stream closed before delivering audio")
		}
	case <-ctx.Done():
		err = fmt.Errorf("wait for first microphone chunk: %w", ctx.Err())
	}
	if err != nil {
		_ = stream.Stop()
		_ = lock.Release()
		if ctx.Err() != nil {
			return err
		}
		return micError(sel.Device.ID, err)
	}

	drained := make(chan struct{})
	s.mu.Lock()
	s.stream = stream
	s.lock = lock
	s.ready = true
	s.stopping = false
	s.lastErr = nil
	s.drained = drained
	s.mu.Unlock()

	go s.drain(stream, sel.Device.ID, drained)

	s.opts.Logger.Info("microphone ready", "device", sel.Device.ID)
	return nil
}

func micError(device string, err error) error {
	if de, ok := capture.AsDeviceError(err); ok {
		return de
	}
	kind := capture.DeviceNotFound
	if errors.Is(err, ErrPulseUnavailable) {
		kind = capture.Unsupported
	}
	return &capture.DeviceError{Kind: kind, Media: capture.Microphone, Device: device, Err: err}
}

func (s *Source) drain(stream *Stream, device string, done chan struct{}) {
	defer close(done)
	for chunk := range stream.Chunks() {
		s.mu.Lock()
		if rec := s.rec; rec != nil {
			room := rec.limit - len(rec.buf)
			if len(chunk) > room {
				chunk = chunk[:room]
			}
			rec.buf = append(rec.buf, chunk...)
			if len(rec.buf) >= rec.limit {
				close(rec.full)
				s.rec = nil
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	if !s.stopping {
		s.lastErr = &capture.DeviceError{
			Kind:   capture.DeviceNotFound,
			Media:  capture.Microphone,
			Device: device,
			Err:    errors.New("record stream ended"),
		}
		s.opts.Logger.Warn("microphone stream ended", "device", device)
	}
}

func (s *Source) Stop() error {
	s.mu.Lock()
	stream, lock, drained := s.stream, s.lock, s.drained
	s.stream, s.lock, s.drained = nil, nil, nil
	s.ready = false
	s.stopping = true
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	err := stream.Stop()
	<-drained
	if lerr := lock.Release(); err == nil {
		err = lerr
	}
	return err
}

func (s *Source) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Record collects up to maxLen of audio and returns raw PCM. It stops early
// when ctx ends, returning ctx's error.
func (s *Source) Record(ctx context.Context, maxLen time.Duration) ([]byte, error) {
	limit := int(maxLen.Milliseconds()) * bytesPerSecond / 1000
	limit -= limit % 2
	if limit <= 0 {
		return nil, fmt.Errorf("invalid clip length %s", maxLen)
	}

	s.mu.Lock()
	if !s.ready {
		err := s.lastErr
		s.mu.Unlock()
		if err == nil {
			err = capture.ErrNotReady
		}
		return nil, err
	}
	if s.rec != nil {
		s.mu.Unlock()
		return nil, ErrRecording
	}
	rec := &recording{limit: limit, buf: make([]byte, 0, limit), full: make(chan struct{})}
	s.rec = rec
	drained := s.drained
	s.mu.Unlock()

	// Pulse delivers in real time; the timer only guards a stalled stream.
	timer := time.NewTimer(maxLen + time.Second)
	defer timer.Stop()

	var err error
	select {
	case <-rec.full:
	case <-timer.C:
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	if s.rec == rec {
		s.rec = nil
	}
	pcm := rec.buf
	lastErr := s.lastErr
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return pcm, nil
}

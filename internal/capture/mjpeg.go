package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

const maxPartBytes = 16 << 20

// MJPEGSource reads a multipart/x-mixed-replace JPEG stream from a network
// camera and keeps the most recent decoded frame.
type MJPEGSource struct {
	url    string
	client *http.Client
	lock   *DeviceLock
	logger *slog.Logger

	mu      sync.Mutex
	latest  Frame
	ready   bool
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMJPEGSource builds a source for url. lock may be nil.
func NewMJPEGSource(url string, client *http.Client, lock *DeviceLock, logger *slog.Logger) *MJPEGSource {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &MJPEGSource{url: url, client: client, lock: lock, logger: logger}
}

func (s *MJPEGSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.lock.Acquire(); err != nil {
		return err
	}

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	// Abort the initial handshake if the caller gives up; the stream itself
	// outlives ctx once the first frame is in.
	stopAfter := context.AfterFunc(ctx, cancel)

	var first Frame
	reader, body, err := s.open(streamCtx)
	if err == nil {
		first, err = s.readFrame(reader, 1)
		if err != nil {
			_ = body.Close()
		}
	}
	if !stopAfter() && err == nil {
		_ = body.Close()
		err = ctx.Err()
	}
	if err != nil {
		cancel()
		_ = s.lock.Release()
		if ctx.Err() != nil {
			return fmt.Errorf("wait for first camera frame: %w", ctx.Err())
		}
		return Classify(Camera, s.url, err)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.latest = first
	s.ready = true
	s.lastErr = nil
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.readLoop(streamCtx, reader, body, done)

	s.logger.Info("camera stream ready", "url", s.url, "width", first.Width(), "height", first.Height())
	return nil
}

func (s *MJPEGSource) open(ctx context.Context) (*multipart.Reader, io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, nil, &DeviceError{Kind: Unsupported, Media: Camera, Device: s.url, Err: err}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, nil, classifyStatus(s.url, resp.StatusCode)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		_ = resp.Body.Close()
		return nil, nil, &DeviceError{
			Kind:   Unsupported,
			Media:  Camera,
			Device: s.url,
			Err:    fmt.Errorf("unexpected stream content type %q", resp.Header.Get("Content-Type")),
		}
	}
	return multipart.NewReader(resp.Body, params["boundary"]), resp.Body, nil
}

// readFrame returns the next part that decodes to a non-empty image.
func (s *MJPEGSource) readFrame(r *multipart.Reader, seq uint64) (Frame, error) {
	for {
		part, err := r.NextPart()
		if err != nil {
			return Frame{}, fmt.Errorf("read stream part: %w", err)
		}
		raw, err := io.ReadAll(io.LimitReader(part, maxPartBytes))
		_ = part.Close()
		if err != nil {
			return Frame{}, fmt.Errorf("read stream part: %w", err)
		}
		img, err := jpeg.Decode(bytes.NewReader(raw))
		if err != nil {
			s.logger.Debug("skipping undecodable stream part", "error", err)
			continue
		}
		if img.Bounds().Empty() {
			continue
		}
		return Frame{Image: img, Seq: seq, At: time.Now()}, nil
	}
}

func (s *MJPEGSource) readLoop(ctx context.Context, r *multipart.Reader, body io.ReadCloser, done chan struct{}) {
	defer close(done)
	defer body.Close()

	seq := uint64(1)
	for {
		seq++
		frame, err := s.readFrame(r, seq)
		if err != nil {
			s.mu.Lock()
			s.ready = false
			if ctx.Err() == nil {
				s.lastErr = Classify(Camera, s.url, err)
			}
			s.mu.Unlock()
			if ctx.Err() == nil {
				s.logger.Warn("camera stream ended", "url", s.url, "error", err)
			}
			return
		}
		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
	}
}

func (s *MJPEGSource) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.ready = false
	s.latest = Frame{}
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return s.lock.Release()
}

func (s *MJPEGSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Frame returns the latest frame. After the stream drops it returns the
// DeviceError that ended it.
func (s *MJPEGSource) Frame(context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		return Frame{}, s.lastErr
	}
	if !s.ready {
		return Frame{}, ErrNotReady
	}
	return s.latest, nil
}

var _ Source = (*MJPEGSource)(nil)

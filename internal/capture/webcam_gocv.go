//go:build gocv

package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// WebcamSource reads a local V4L2 camera through OpenCV.
type WebcamSource struct {
	device int
	path   string
	lock   *DeviceLock

	mu    sync.Mutex
	cap   *gocv.VideoCapture
	mat   gocv.Mat
	seq   uint64
	ready bool
}

// NewWebcamSource opens camera index device; path names it in errors and
// hotplug events. lock may be nil.
func NewWebcamSource(device int, path string, lock *DeviceLock) *WebcamSource {
	return &WebcamSource{device: device, path: path, lock: lock}
}

func (s *WebcamSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cap != nil {
		return nil
	}

	if err := s.lock.Acquire(); err != nil {
		return err
	}

	vc, err := gocv.OpenVideoCapture(s.device)
	if err != nil {
		_ = s.lock.Release()
		return Classify(Camera, s.path, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		_ = s.lock.Release()
		return &DeviceError{Kind: DeviceNotFound, Media: Camera, Device: s.path, Err: errors.New("capture did not open")}
	}

	mat := gocv.NewMat()
	for {
		if vc.Read(&mat) && !mat.Empty() {
			break
		}
		if ctx.Err() != nil {
			_ = mat.Close()
			_ = vc.Close()
			_ = s.lock.Release()
			return fmt.Errorf("wait for first camera frame: %w", ctx.Err())
		}
		time.Sleep(20 * time.Millisecond)
	}

	s.cap = vc
	s.mat = mat
	s.ready = true
	return nil
}

func (s *WebcamSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cap == nil {
		return nil
	}
	s.ready = false
	_ = s.mat.Close()
	err := s.cap.Close()
	s.cap = nil
	if rerr := s.lock.Release(); err == nil {
		err = rerr
	}
	return err
}

func (s *WebcamSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Frame grabs a fresh frame. An empty read yields a zero-sized Frame.
func (s *WebcamSource) Frame(context.Context) (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return Frame{}, ErrNotReady
	}
	if !s.cap.Read(&s.mat) || s.mat.Empty() {
		return Frame{At: time.Now()}, nil
	}
	img, err := s.mat.ToImage()
	if err != nil {
		return Frame{}, fmt.Errorf("convert camera frame: %w", err)
	}
	s.seq++
	return Frame{Image: img, Seq: s.seq, At: time.Now()}, nil
}

var _ Source = (*WebcamSource)(nil)

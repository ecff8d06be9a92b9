//go:build !gocv

package capture

import (
	"context"
	"errors"
)

var errNoOpenCV = errors.New("built without gocv support")

// WebcamSource is unavailable in builds without the gocv tag.
type WebcamSource struct {
	path string
}

func NewWebcamSource(_ int, path string, _ *DeviceLock) *WebcamSource {
	return &WebcamSource{path: path}
}

func (s *WebcamSource) Start(context.Context) error {
	return &DeviceError{Kind: Unsupported, Media: Camera, Device: s.path, Err: errNoOpenCV}
}

func (s *WebcamSource) Stop() error { return nil }

func (s *WebcamSource) Ready() bool { return false }

func (s *WebcamSource) Frame(context.Context) (Frame, error) { return Frame{}, ErrNotReady }

var _ Source = (*WebcamSource)(nil)

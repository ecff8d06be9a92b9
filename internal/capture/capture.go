// Package capture owns live camera devices for a practice session.
package capture

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrNotReady is returned by Frame before the first decodable frame arrives.
var ErrNotReady = errors.New("capture source not ready")

// Frame is one decoded video frame.
type Frame struct {
	Image image.Image
	Seq   uint64
	At    time.Time
}

// Width and Height report zero for an empty frame.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Source is exclusively owned by one practice controller.
//
// Start returns once the device is streaming and a first frame with non-zero
// dimensions has been decoded. Stop is idempotent and safe before Start.
type Source interface {
	Start(ctx context.Context) error
	Stop() error
	Ready() bool
	Frame(ctx context.Context) (Frame, error)
}

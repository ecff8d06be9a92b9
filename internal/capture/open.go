package capture

import (
	"log/slog"
	"net/http"

	"github.com/rbright/kamay/internal/config"
)

// Opened is the camera source selected by configuration. Device is the path
// hotplug events are matched against and is empty for network cameras.
type Opened struct {
	Source   Source
	Device   string
	LockPath string
}

// OpenCamera builds the configured camera source without starting it.
func OpenCamera(cfg config.CameraConfig, logger *slog.Logger) Opened {
	if cfg.Source == "webcam" {
		lock := NewDeviceLock(cfg.LockDir, Camera, cfg.DevicePath)
		return Opened{
			Source:   NewWebcamSource(cfg.Device, cfg.DevicePath, lock),
			Device:   cfg.DevicePath,
			LockPath: lock.Path(),
		}
	}
	lock := NewDeviceLock(cfg.LockDir, Camera, cfg.URL)
	return Opened{
		Source:   NewMJPEGSource(cfg.URL, &http.Client{}, lock, logger),
		LockPath: lock.Path(),
	}
}

package capture

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// DeviceLock is an advisory per-device lock shared by kamay processes.
// A nil *DeviceLock is a no-op.
type DeviceLock struct {
	media  Media
	device string
	path   string
	lock   *flock.Flock
}

// NewDeviceLock places the lock file for device under dir.
func NewDeviceLock(dir string, media Media, device string) *DeviceLock {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "kamay")
	}
	path := filepath.Join(dir, string(media)+"-"+lockName(device))
	return &DeviceLock{media: media, device: device, path: path, lock: flock.New(path)}
}

func lockName(device string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "?", "_", "&", "_", "=", "_")
	name := strings.Trim(r.Replace(device), "_.")
	if name == "" {
		name = "default"
	}
	return name + ".lock"
}

// Path is the lock file location.
func (l *DeviceLock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Acquire takes the lock without blocking. A lock held elsewhere is DeviceBusy.
func (l *DeviceLock) Acquire() error {
	if l == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire device lock: %w", err)
	}
	if !ok {
		return &DeviceError{
			Kind:   DeviceBusy,
			Media:  l.media,
			Device: l.device,
			Err:    fmt.Errorf("lock %s held by another process", l.path),
		}
	}
	return nil
}

func (l *DeviceLock) Release() error {
	if l == nil || !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release device lock: %w", err)
	}
	return nil
}

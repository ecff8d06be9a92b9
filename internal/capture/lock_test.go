package capture

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeviceLockPath(t *testing.T) {
	dir := t.TempDir()
	require.Equal(t, filepath.Join(dir, "camera-dev_video0.lock"), NewDeviceLock(dir, Camera, "/dev/video0").Path())
	require.Equal(t, filepath.Join(dir, "microphone-default.lock"), NewDeviceLock(dir, Microphone, "").Path())
}

func TestDeviceLockExclusive(t *testing.T) {
	dir := t.TempDir()
	a := NewDeviceLock(dir, Microphone, "alsa_input.usb")
	b := NewDeviceLock(dir, Microphone, "alsa_input.usb")

	require.NoError(t, a.Acquire())
	de, ok := AsDeviceError(b.Acquire())
	require.True(t, ok)
	require.Equal(t, DeviceBusy, de.Kind)
	require.Equal(t, Microphone, de.Media)

	require.NoError(t, a.Release())
	require.NoError(t, a.Release())
	require.NoError(t, b.Acquire())
	require.NoError(t, b.Release())
}

func TestNilDeviceLock(t *testing.T) {
	var l *DeviceLock
	require.NoError(t, l.Acquire())
	require.NoError(t, l.Release())
	require.Empty(t, l.Path())
}

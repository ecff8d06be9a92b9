package capture

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestClassifyErrno(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{err: &os.PathError{Op: "open", Path: "/dev/video0", Err: unix.EACCES}, want: PermissionDenied},
		{err: &os.PathError{Op: "open", Path: "/dev/video0", Err: unix.EPERM}, want: PermissionDenied},
		{err: &os.PathError{Op: "open", Path: "/dev/video0", Err: unix.ENOENT}, want: DeviceNotFound},
		{err: &os.PathError{Op: "open", Path: "/dev/video0", Err: unix.ENODEV}, want: DeviceNotFound},
		{err: fmt.Errorf("open: %w", unix.EBUSY), want: DeviceBusy},
		{err: fmt.Errorf("ioctl: %w", unix.ENOTTY), want: Unsupported},
		{err: errors.ErrUnsupported, want: Unsupported},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, Classify(Camera, "/dev/video0", tc.err).Kind, tc.err.Error())
	}
}

func TestClassifyPassesThroughDeviceError(t *testing.T) {
	orig := &DeviceError{Kind: DeviceBusy, Device: "x"}
	require.Same(t, orig, Classify(Camera, "y", fmt.Errorf("wrap: %w", orig)))
	require.Nil(t, Classify(Camera, "y", nil))
}

func TestDeviceErrorMessages(t *testing.T) {
	msgs := map[string]bool{}
	for _, kind := range []ErrorKind{PermissionDenied, DeviceNotFound, DeviceBusy, Unsupported} {
		msgs[(&DeviceError{Kind: kind}).Message()] = true
	}
	require.Len(t, msgs, 4)

	require.Equal(t,
		"Camera access denied. Please allow camera permissions and try again.",
		(&DeviceError{Kind: PermissionDenied}).Message())
	require.Equal(t,
		"Microphone is already in use by another application.",
		(&DeviceError{Kind: DeviceBusy, Media: Microphone}).Message())
}

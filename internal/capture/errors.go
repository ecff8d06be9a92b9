package capture

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// ErrorKind classifies device acquisition failures.
type ErrorKind string

const (
	PermissionDenied ErrorKind = "permission_denied"
	DeviceNotFound   ErrorKind = "device_not_found"
	DeviceBusy       ErrorKind = "device_busy"
	Unsupported      ErrorKind = "unsupported"
)

// Media names the kind of device in user-facing messages.
type Media string

const (
	Camera     Media = "camera"
	Microphone Media = "microphone"
)

// DeviceError is fatal to the session until the user retries.
type DeviceError struct {
	Kind   ErrorKind
	Media  Media
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.media(), e.Device, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Message is the text shown to the user while the session is blocked.
func (e *DeviceError) Message() string {
	m := string(e.media())
	title := strings.ToUpper(m[:1]) + m[1:]
	switch e.Kind {
	case PermissionDenied:
		return fmt.Sprintf("%s access denied. Please allow %s permissions and try again.", title, m)
	case DeviceNotFound:
		return fmt.Sprintf("No %s found. Please connect a %s and try again.", m, m)
	case DeviceBusy:
		return fmt.Sprintf("%s is already in use by another application.", title)
	case Unsupported:
		return fmt.Sprintf("%s capture is not supported on this system.", title)
	default:
		return fmt.Sprintf("Unable to access %s.", m)
	}
}

func (e *DeviceError) media() Media {
	if e.Media == "" {
		return Camera
	}
	return e.Media
}

// AsDeviceError returns the DeviceError in err's chain, if any.
func AsDeviceError(err error) (*DeviceError, bool) {
	var de *DeviceError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Classify maps an OS or network error to a DeviceError. Errors that are
// already classified pass through unchanged.
func Classify(media Media, device string, err error) *DeviceError {
	if err == nil {
		return nil
	}
	if de, ok := AsDeviceError(err); ok {
		return de
	}

	kind := DeviceNotFound
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno) && (errno == unix.EACCES || errno == unix.EPERM):
		kind = PermissionDenied
	case errors.As(err, &errno) && errno == unix.EBUSY:
		kind = DeviceBusy
	case errors.As(err, &errno) && (errno == unix.ENOTTY || errno == unix.EINVAL || errno == unix.EOPNOTSUPP):
		kind = Unsupported
	case errors.Is(err, os.ErrPermission):
		kind = PermissionDenied
	case errors.Is(err, errors.ErrUnsupported):
		kind = Unsupported
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		kind = DeviceNotFound
	}

	return &DeviceError{Kind: kind, Media: media, Device: device, Err: err}
}

// classifyStatus maps a network camera's HTTP status to a DeviceError.
func classifyStatus(device string, status int) *DeviceError {
	err := fmt.Errorf("stream responded %d %s", status, http.StatusText(status))
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &DeviceError{Kind: PermissionDenied, Media: Camera, Device: device, Err: err}
	case http.StatusServiceUnavailable, http.StatusTooManyRequests, http.StatusConflict:
		return &DeviceError{Kind: DeviceBusy, Media: Camera, Device: device, Err: err}
	case http.StatusUnsupportedMediaType, http.StatusNotAcceptable:
		return &DeviceError{Kind: Unsupported, Media: Camera, Device: device, Err: err}
	default:
		return &DeviceError{Kind: DeviceNotFound, Media: Camera, Device: device, Err: err}
	}
}

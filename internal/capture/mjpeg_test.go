package capture

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mjpegServer(t *testing.T, frames [][]byte, hold bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		for _, f := range frames {
			_, _ = w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n"))
			_, _ = w.Write(f)
			_, _ = w.Write([]byte("\r\n"))
			flusher.Flush()
		}
		if hold {
			<-r.Context().Done()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMJPEGSourceReadyAfterFirstFrame(t *testing.T) {
	srv := mjpegServer(t, [][]byte{[]byte("garbage"), testJPEG(t, 32, 24)}, true)

	src := NewMJPEGSource(srv.URL, srv.Client(), nil, nil)
	require.False(t, src.Ready())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, src.Start(ctx))
	require.True(t, src.Ready())

	frame, err := src.Frame(ctx)
	require.NoError(t, err)
	require.Equal(t, 32, frame.Width())
	require.Equal(t, 24, frame.Height())

	require.NoError(t, src.Stop())
	require.False(t, src.Ready())
	require.NoError(t, src.Stop())

	_, err = src.Frame(ctx)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestMJPEGSourceStopBeforeStart(t *testing.T) {
	src := NewMJPEGSource("http://127.0.0.1:1/stream", nil, nil, nil)
	require.NoError(t, src.Stop())
}

func TestMJPEGSourceStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorKind
	}{
		{status: http.StatusForbidden, want: PermissionDenied},
		{status: http.StatusNotFound, want: DeviceNotFound},
		{status: http.StatusServiceUnavailable, want: DeviceBusy},
	}
	for _, tc := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))
		err := NewMJPEGSource(srv.URL, nil, nil, nil).Start(context.Background())
		srv.Close()

		de, ok := AsDeviceError(err)
		require.True(t, ok, "status %d", tc.status)
		require.Equal(t, tc.want, de.Kind)
	}
}

func TestMJPEGSourceRejectsNonMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	de, ok := AsDeviceError(NewMJPEGSource(srv.URL, nil, nil, nil).Start(context.Background()))
	require.True(t, ok)
	require.Equal(t, Unsupported, de.Kind)
}

func TestMJPEGSourceUnreachableIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	de, ok := AsDeviceError(NewMJPEGSource(url, nil, nil, nil).Start(context.Background()))
	require.True(t, ok)
	require.Equal(t, DeviceNotFound, de.Kind)
	require.Equal(t, "No camera found. Please connect a camera and try again.", de.Message())
}

func TestMJPEGSourceStreamEndSurfacesDeviceError(t *testing.T) {
	srv := mjpegServer(t, [][]byte{testJPEG(t, 16, 16)}, false)

	src := NewMJPEGSource(srv.URL, nil, nil, nil)
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	require.Eventually(t, func() bool { return !src.Ready() }, 2*time.Second, 10*time.Millisecond)
	_, err := src.Frame(context.Background())
	_, ok := AsDeviceError(err)
	require.True(t, ok)
}

func TestMJPEGSourceStartHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := NewMJPEGSource(srv.URL, nil, nil, nil).Start(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMJPEGSourceHeldLockIsBusy(t *testing.T) {
	srv := mjpegServer(t, [][]byte{testJPEG(t, 8, 8)}, true)
	dir := t.TempDir()

	first := NewMJPEGSource(srv.URL, nil, NewDeviceLock(dir, Camera, srv.URL), nil)
	require.NoError(t, first.Start(context.Background()))

	second := NewMJPEGSource(srv.URL, nil, NewDeviceLock(dir, Camera, srv.URL), nil)
	de, ok := AsDeviceError(second.Start(context.Background()))
	require.True(t, ok)
	require.Equal(t, DeviceBusy, de.Kind)

	require.NoError(t, first.Stop())
	require.NoError(t, second.Start(context.Background()))
	require.NoError(t, second.Stop())
}

// Package snapshot turns the live capture state into recognizer payloads.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"

	"github.com/rbright/kamay/internal/audio"
	"github.com/rbright/kamay/internal/capture"
	"github.com/rbright/kamay/internal/recognize"
)

var (
	// ErrEmptyCapture means there was nothing worth sending this tick.
	ErrEmptyCapture = errors.New("empty capture")
	// ErrSilence is the audio flavour of ErrEmptyCapture.
	ErrSilence = fmt.Errorf("silence detected: %w", ErrEmptyCapture)
)

// FrameSource yields the current video frame.
type FrameSource interface {
	Frame(ctx context.Context) (capture.Frame, error)
}

type FrameOptions struct {
	// MaxEdge caps the longer side; 0 keeps native resolution.
	MaxEdge         int
	Quality         int
	MinPayloadChars int
}

type FrameEncoder struct {
	src  FrameSource
	opts FrameOptions
}

func NewFrameEncoder(src FrameSource, opts FrameOptions) *FrameEncoder {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = jpeg.DefaultQuality
	}
	return &FrameEncoder{src: src, opts: opts}
}

// CaptureFrame encodes the current frame as JPEG at the source's resolution.
func (e *FrameEncoder) CaptureFrame(ctx context.Context) (recognize.Payload, error) {
	frame, err := e.src.Frame(ctx)
	if err != nil {
		return recognize.Payload{}, err
	}
	w, h := frame.Width(), frame.Height()
	if w == 0 || h == 0 {
		return recognize.Payload{}, fmt.Errorf("%w: frame is %dx%d", ErrEmptyCapture, w, h)
	}

	dw, dh := fit(w, h, e.opts.MaxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	src := frame.Image
	if dw == w && dh == h {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: e.opts.Quality}); err != nil {
		return recognize.Payload{}, fmt.Errorf("encode frame: %w", err)
	}

	payload := recognize.Payload{
		Kind:   recognize.KindImage,
		MIME:   "image/jpeg",
		Data:   buf.Bytes(),
		Width:  dw,
		Height: dh,
	}
	if n := len(payload.DataURL()); n < e.opts.MinPayloadChars {
		return recognize.Payload{}, fmt.Errorf("%w: payload is %d chars", ErrEmptyCapture, n)
	}
	return payload, nil
}

// fit scales w×h down so the longer edge is at most maxEdge.
func fit(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, h*maxEdge/w)
	}
	return max(1, w*maxEdge/h), maxEdge
}

// ClipRecorder records raw s16le mono PCM.
type ClipRecorder interface {
	Record(ctx context.Context, maxLen time.Duration) ([]byte, error)
}

type ClipOptions struct {
	MaxClip    time.Duration
	SilenceRMS float64
}

type ClipEncoder struct {
	rec  ClipRecorder
	opts ClipOptions
}

func NewClipEncoder(rec ClipRecorder, opts ClipOptions) *ClipEncoder {
	if opts.MaxClip <= 0 {
		opts.MaxClip = 5 * time.Second
	}
	return &ClipEncoder{rec: rec, opts: opts}
}

// CaptureClip records one bounded clip and returns it as WAV.
func (e *ClipEncoder) CaptureClip(ctx context.Context) (recognize.Payload, error) {
	pcm, err := e.rec.Record(ctx, e.opts.MaxClip)
	if err != nil {
		return recognize.Payload{}, err
	}
	if len(pcm) < 2 {
		return recognize.Payload{}, fmt.Errorf("%w: no audio recorded", ErrEmptyCapture)
	}
	if rms := audio.RMS(pcm); rms < e.opts.SilenceRMS {
		return recognize.Payload{}, fmt.Errorf("%w (rms %.1f)", ErrSilence, rms)
	}
	return recognize.Payload{
		Kind:       recognize.KindAudio,
		MIME:       "audio/wav",
		Data:       audio.EncodeWAV(pcm, audio.SampleRate, 1),
		SampleRate: audio.SampleRate,
	}, nil
}

package snapshot

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/kamay/internal/logging"
	"github.com/rbright/kamay/internal/recognize"
)

// Dumper writes payloads and annotated frames for offline inspection.
// A nil *Dumper writes nothing.
type Dumper struct {
	dir    string
	frames bool
	audio  bool
	now    func() time.Time
}

// NewDumper returns nil when both dumps are disabled. An empty dir means
// the debug directory under the state dir.
func NewDumper(dir string, frames, audio bool) (*Dumper, error) {
	if !frames && !audio {
		return nil, nil
	}
	if strings.TrimSpace(dir) == "" {
		state, err := logging.StateDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(state, "debug")
	}
	return &Dumper{dir: dir, frames: frames, audio: audio, now: time.Now}, nil
}

// Payload writes a sent frame or clip.
func (d *Dumper) Payload(p recognize.Payload) error {
	if d == nil {
		return nil
	}
	switch {
	case p.Kind == recognize.KindImage && d.frames:
		return d.write("frame", "jpg", p.Data)
	case p.Kind == recognize.KindAudio && d.audio:
		return d.write("clip", "wav", p.Data)
	}
	return nil
}

// Annotated writes the recognizer's overlay image, given as a data URL.
func (d *Dumper) Annotated(dataURL string) error {
	if d == nil || !d.frames || dataURL == "" {
		return nil
	}
	_, encoded, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return fmt.Errorf("annotated image is not a base64 data URL")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode annotated image: %w", err)
	}
	return d.write("annotated", "jpg", raw)
}

func (d *Dumper) write(prefix, ext string, data []byte) error {
	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return fmt.Errorf("create debug dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.%s", prefix, d.now().Format("20060102-150405.000"), ext)
	path := filepath.Join(d.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write debug file %q: %w", path, err)
	}
	return nil
}

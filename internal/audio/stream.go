package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// SampleRate is the rate of every recorded clip, mono s16le.
	SampleRate = 16000

	bytesPerSecond = SampleRate * 2
	chunkSizeBytes = bytesPerSecond / 50 // 20ms
)

// Stream delivers fixed-size PCM chunks from one Pulse source.
type Stream struct {
	device Device

	client *pulse.Client
	record *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// OpenStream starts a 16kHz mono record stream on device.
func OpenStream(_ context.Context, device Device) (*Stream, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	s := newStream(device)
	s.client = client

	record, err := client.NewRecord(
		pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(chunkSizeBytes),
		pulse.RecordMediaName("kamay speech practice"),
	)
	if err != nil {
		_ = s.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	s.record = record
	record.Start()
	return s, nil
}

func newStream(device Device) *Stream {
	return &Stream{
		device: device,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}
}

func (s *Stream) Device() Device {
	return s.device
}

// Chunks is closed by Stop.
func (s *Stream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *Stream) BytesCaptured() int64 {
	return s.bytes.Load()
}

// Stop halts recording, flushes the partial chunk and closes Chunks once.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.stopCh)
	s.mu.Unlock()

	if s.record != nil {
		s.record.Stop()
		s.record.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	s.inflight.Wait()

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) > 0 {
		select {
		case s.chunks <- pending:
		default:
		}
	}
	close(s.chunks)
	return nil
}

func (s *Stream) onPCM(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same lock as stopped so Stop's Wait cannot race it.
	s.inflight.Add(1)
	defer s.inflight.Done()

	s.pending = append(s.pending, buf...)
	var out [][]byte
	for len(s.pending) >= chunkSizeBytes {
		chunk := make([]byte, chunkSizeBytes)
		copy(chunk, s.pending[:chunkSizeBytes])
		s.pending = s.pending[chunkSizeBytes:]
		out = append(out, chunk)
	}
	s.mu.Unlock()

	s.bytes.Add(int64(len(buf)))

	for _, chunk := range out {
		select {
		case <-s.stopCh:
			return 0, io.EOF
		case s.chunks <- chunk:
		}
	}
	return len(buf), nil
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

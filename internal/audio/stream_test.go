package audio

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamChunksAndFlushOnStop(t *testing.T) {
	s := newStream(Device{ID: "mic"})

	input := make([]byte, chunkSizeBytes+100)
	n, err := s.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), s.BytesCaptured())

	require.Len(t, <-s.Chunks(), chunkSizeBytes)

	require.NoError(t, s.Stop())
	rest, ok := <-s.Chunks()
	require.True(t, ok)
	require.Len(t, rest, 100)

	_, ok = <-s.Chunks()
	require.False(t, ok)
	require.NoError(t, s.Stop())
}

func TestStreamRejectsPCMAfterStop(t *testing.T) {
	s := newStream(Device{ID: "mic"})
	require.NoError(t, s.Stop())

	n, err := s.onPCM([]byte{1, 2})
	require.Zero(t, n)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "mic", s.Device().ID)
}

func TestWriterFunc(t *testing.T) {
	var got []byte
	w := writerFunc(func(b []byte) (int, error) {
		got = append(got, b...)
		return len(b), nil
	})
	n, err := w.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, []byte{1, 2, 3}, got)
}

package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ramp(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i*37 - 5000)
	}
	return out
}

func readAll(t *testing.T, src Source) [][]int16 {
	t.Helper()
	var blocks [][]int16
	for {
		b, err := src.ReadFrame(context.Background())
		if errors.Is(err, io.EOF) {
			return blocks
		}
		require.NoError(t, err)
		blocks = append(blocks, b)
	}
}

func TestFramer(t *testing.T) {
	f := NewFramer(4)
	_, ok := f.Next()
	assert.False(t, ok)

	f.Push([]int16{1, 2, 3})
	_, ok = f.Next()
	assert.False(t, ok)
	assert.Equal(t, 3, f.Pending())

	f.Push([]int16{4, 5})
	f.PushSilence(3)
	b, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, []int16{1, 2, 3, 4}, b)

	b2, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, []int16{5, 0, 0, 0}, b2)
	assert.Equal(t, 0, f.Pending())

	b[0] = 99
	f.Push([]int16{7, 7, 7, 7})
	b3, _ := f.Next()
	assert.Equal(t, []int16{7, 7, 7, 7}, b3, "returned blocks do not alias the queue")
}

func TestRawSourceBlocks(t *testing.T) {
	in := ramp(3*160 + 50)
	data := SamplesToPCM(nil, in)

	blocks := readAll(t, NewRawSource(bytes.NewReader(data), 160))
	require.Len(t, blocks, 3, "trailing partial block is dropped")
	for i, b := range blocks {
		assert.Equal(t, in[i*160:(i+1)*160], b)
	}
}

func TestRawSourceReadChunkingInvariant(t *testing.T) {
	data := SamplesToPCM(nil, ramp(5*160))

	whole := readAll(t, NewRawSource(bytes.NewReader(data), 160))
	bytewise := readAll(t, NewRawSource(iotest.OneByteReader(bytes.NewReader(data)), 160))
	half := readAll(t, NewRawSource(iotest.HalfReader(bytes.NewReader(data)), 160))

	assert.Equal(t, whole, bytewise)
	assert.Equal(t, whole, half)
}

func TestRawSourceErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewRawSource(bytes.NewReader(make([]byte, 320)), 160).ReadFrame(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	boom := errors.New("device gone")
	_, err = NewRawSource(iotest.ErrReader(boom), 160).ReadFrame(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestPCMWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewPCMWriter(&buf)
	require.NoError(t, w.WriteSamples([]int16{1, -2}))
	require.NoError(t, w.WriteSamples([]int16{3}))
	assert.Equal(t, []byte{1, 0, 0xFE, 0xFF, 3, 0}, buf.Bytes())

	boom := errors.New("disk full")
	err := NewPCMWriter(errWriter{boom}).WriteSamples([]int16{1})
	assert.ErrorIs(t, err, boom)
}

type errWriter struct{ err error }

func (w errWriter) Write([]byte) (int, error) { return 0, w.err }

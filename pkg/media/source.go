package media

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Source delivers modem samples in blocks of a fixed size. ReadFrame returns
// io.EOF once the stream has ended; a trailing partial block is dropped.
type Source interface {
	ReadFrame(ctx context.Context) ([]int16, error)
}

// Sink consumes decoded speech.
type Sink interface {
	WriteSamples(samples []int16) error
}

// Framer re-blocks a stream of arbitrarily sized sample slices into blocks of
// a fixed size.
type Framer struct {
	size    int
	pending []int16
}

// NewFramer returns a framer that emits blocks of size samples.
func NewFramer(size int) *Framer {
	return &Framer{size: size, pending: make([]int16, 0, 2*size)}
}

// Push queues samples.
func (f *Framer) Push(samples []int16) {
	f.pending = append(f.pending, samples...)
}

// PushSilence queues n zero samples.
func (f *Framer) PushSilence(n int) {
	for range n {
		f.pending = append(f.pending, 0)
	}
}

// Next returns the next full block, if one is queued. The block is a fresh
// slice owned by the caller.
func (f *Framer) Next() ([]int16, bool) {
	if len(f.pending) < f.size {
		return nil, false
	}
	out := make([]int16, f.size)
	copy(out, f.pending)
	n := copy(f.pending, f.pending[f.size:])
	f.pending = f.pending[:n]
	return out, true
}

// Pending returns the number of queued samples.
func (f *Framer) Pending() int { return len(f.pending) }

// RawSource reads 8 kHz mono signed 16-bit little-endian samples.
type RawSource struct {
	r       io.Reader
	nominal int
	buf     []byte
}

// NewRawSource reads blocks of nominal samples from r.
func NewRawSource(r io.Reader, nominal int) *RawSource {
	return &RawSource{r: r, nominal: nominal, buf: make([]byte, 2*nominal)}
}

// ReadFrame implements Source.
func (s *RawSource) ReadFrame(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := readBlock(s.r, s.buf); err != nil {
		return nil, err
	}
	return PCMToSamples(s.buf), nil
}

// readBlock fills buf, mapping a short final read to io.EOF.
func readBlock(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return io.EOF
	default:
		return fmt.Errorf("failed to read samples: %w", err)
	}
}

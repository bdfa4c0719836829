package media

import (
	"fmt"
	"io"
)

// PCMWriter writes speech as signed 16-bit little-endian samples.
type PCMWriter struct {
	w   io.Writer
	buf []byte
}

// NewPCMWriter wraps w.
func NewPCMWriter(w io.Writer) *PCMWriter {
	return &PCMWriter{w: w}
}

// WriteSamples implements Sink.
func (p *PCMWriter) WriteSamples(samples []int16) error {
	p.buf = SamplesToPCM(p.buf, samples)
	if _, err := p.w.Write(p.buf); err != nil {
		return fmt.Errorf("failed to write speech: %w", err)
	}
	return nil
}

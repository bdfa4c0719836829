package media

import (
	"context"
	"encoding/binary"
	"io"
	"math"

	"github.com/mjibson/go-dsp/window"
)

// Capture stream layout: 48 kHz stereo signed 16-bit little-endian, as
// delivered by USB audio devices in 192 byte packets.
const (
	CaptureRate     = 48000
	CaptureChannels = 2
	CapturePacket   = 192
	ModemRate       = 8000
	DecimateFactor  = CaptureRate / ModemRate

	decimatorTaps   = 48
	decimatorCutoff = 3600.0
)

// Decimator is a windowed-sinc FIR low-pass filter followed by integer
// downsampling. Its state carries across calls, so output does not depend on
// how the input is split.
type Decimator struct {
	taps   []float64
	factor int
	line   []float64
	pos    int
	phase  int
}

// NewDecimator designs an ntaps low-pass filter with the given cutoff
// (as a fraction of the input rate) and unity DC gain.
func NewDecimator(factor, ntaps int, cutoff float64) *Decimator {
	taps := window.Hamming(ntaps)
	mid := float64(ntaps-1) / 2
	var sum float64
	for i := range taps {
		x := float64(i) - mid
		h := 2 * cutoff
		if x != 0 {
			h = math.Sin(2*math.Pi*cutoff*x) / (math.Pi * x)
		}
		taps[i] *= h
		sum += taps[i]
	}
	for i := range taps {
		taps[i] /= sum
	}
	return &Decimator{taps: taps, factor: factor, line: make([]float64, ntaps)}
}

// Process filters in and appends every factor-th output sample to dst.
func (d *Decimator) Process(dst []int16, in []float64) []int16 {
	n := len(d.line)
	for _, x := range in {
		d.line[d.pos] = x
		d.pos = (d.pos + 1) % n
		d.phase++
		if d.phase < d.factor {
			continue
		}
		d.phase = 0
		var acc float64
		// the newest sample is at pos-1
		for j, tap := range d.taps {
			acc += tap * d.line[(d.pos-1-j+n)%n]
		}
		dst = append(dst, clampSample(acc))
	}
	return dst
}

func clampSample(v float64) int16 {
	v = math.Round(v)
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// CaptureSource reads a 48 kHz stereo capture stream, mixes it to mono and
// decimates it to the 8 kHz modem rate.
type CaptureSource struct {
	r       io.Reader
	nominal int
	buf     []byte
	mono    []float64
	dec     *Decimator
}

// NewCaptureSource returns blocks of nominal 8 kHz samples read from r.
func NewCaptureSource(r io.Reader, nominal int) *CaptureSource {
	in := nominal * DecimateFactor
	return &CaptureSource{
		r:       r,
		nominal: nominal,
		buf:     make([]byte, in*CaptureChannels*2),
		mono:    make([]float64, in),
		dec:     NewDecimator(DecimateFactor, decimatorTaps, decimatorCutoff/CaptureRate),
	}
}

// ReadFrame implements Source.
func (s *CaptureSource) ReadFrame(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := readBlock(s.r, s.buf); err != nil {
		return nil, err
	}
	for i := range s.mono {
		l := int16(binary.LittleEndian.Uint16(s.buf[4*i:]))
		r := int16(binary.LittleEndian.Uint16(s.buf[4*i+2:]))
		s.mono[i] = (float64(l) + float64(r)) / 2
	}
	return s.dec.Process(make([]int16, 0, s.nominal), s.mono), nil
}

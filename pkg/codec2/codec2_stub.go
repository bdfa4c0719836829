//go:build !(cgo && libcodec2)

package codec2

import "freedv-rx/pkg/modem"

// FDMDV is unavailable in this build.
type FDMDV struct{}

// NewFDMDV returns ErrUnavailable.
func NewFDMDV() (*FDMDV, error) { return nil, ErrUnavailable }

func (f *FDMDV) NominalSamples() int { return NominalSamples }
func (f *FDMDV) MaxSamples() int     { return MaxSamples }
func (f *FDMDV) BitsPerFrame() int   { return BitsPerFrame }
func (f *FDMDV) Nin() int            { return NominalSamples }

func (f *FDMDV) Demodulate([]int16) (modem.DemodResult, error) {
	return modem.DemodResult{}, ErrUnavailable
}

func (f *FDMDV) Close() error { return nil }

// Decoder is unavailable in this build.
type Decoder struct{}

// NewDecoder returns ErrUnavailable.
func NewDecoder() (*Decoder, error) { return nil, ErrUnavailable }

func (d *Decoder) BitsPerFrame() int    { return 2 * BitsPerFrame }
func (d *Decoder) SamplesPerFrame() int { return 2 * NominalSamples }

func (d *Decoder) RebuildSpareBit([]byte) {}

func (d *Decoder) Decode([]byte) ([]int16, error) { return nil, ErrUnavailable }

func (d *Decoder) Close() error { return nil }

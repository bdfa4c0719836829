// Package spectrum keeps a time-averaged magnitude spectrum of the received
// modem signal for display alongside the demodulator stats.
package spectrum

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

const (
	MinDB = -40.0
	MaxDB = 0.0
	// Beta is the weight given to the newest spectrum in the running average.
	Beta = 0.1

	fullScale = 32767.0
)

// Analyzer computes a windowed FFT over the most recent Size() samples.
type Analyzer struct {
	size   int
	win    []float64
	hist   []float64 // last size samples, oldest first
	frame  []float64
	avg    []float64
	primed bool
}

// New creates an analyzer with an FFT of size points. Size must be a power
// of two of at least 16.
func New(size int) (*Analyzer, error) {
	if size < 16 || size&(size-1) != 0 {
		return nil, fmt.Errorf("spectrum size %d is not a power of two >= 16", size)
	}
	a := &Analyzer{
		size:  size,
		win:   window.Hann(size),
		hist:  make([]float64, size),
		frame: make([]float64, size),
		avg:   make([]float64, size/2),
	}
	for i := range a.avg {
		a.avg[i] = MinDB
	}
	return a, nil
}

// Size returns the FFT length.
func (a *Analyzer) Size() int { return a.size }

// Update folds the newest samples into the running spectrum.
func (a *Analyzer) Update(samples []int16) {
	if len(samples) == 0 {
		return
	}
	if len(samples) >= a.size {
		samples = samples[len(samples)-a.size:]
		for i, s := range samples {
			a.hist[i] = float64(s)
		}
	} else {
		copy(a.hist, a.hist[len(samples):])
		off := a.size - len(samples)
		for i, s := range samples {
			a.hist[off+i] = float64(s)
		}
	}

	for i := range a.frame {
		a.frame[i] = a.hist[i] * a.win[i] / fullScale
	}
	bins := fft.FFTReal(a.frame)

	norm := float64(a.size) / 4
	for i := range a.avg {
		mag := cmplx.Abs(bins[i]) / norm
		db := MinDB
		if mag > 0 {
			db = 20 * math.Log10(mag)
		}
		db = math.Max(MinDB, math.Min(MaxDB, db))
		if !a.primed {
			a.avg[i] = db
			continue
		}
		a.avg[i] = (1-Beta)*a.avg[i] + Beta*db
	}
	a.primed = true
}

// Spectrum returns a copy of the averaged spectrum in dB, Size()/2 bins
// spanning 0 to half the sample rate.
func (a *Analyzer) Spectrum() []float64 {
	return append([]float64(nil), a.avg...)
}

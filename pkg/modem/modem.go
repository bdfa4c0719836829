// Package modem defines the two narrow capabilities the receive pipeline
// depends on: a demodulator that turns a variable number of modem samples
// into one half-frame of bits, and a speech decoder that turns one packed
// coded frame into audio.
package modem

// Stats is a snapshot of demodulator quality figures taken after one
// demodulation step.
type Stats struct {
	FineLock     bool         // frequency estimate has converged to its fine stage
	SNR          float64      // estimated SNR in dB
	TimingOffset float64      // fractional symbol timing estimate
	FreqOffset   float64      // carrier frequency offset in Hz
	ClockOffset  float64      // estimated tx/rx sample clock offset
	RxSymbols    []complex128 // most recent received constellation
}

// Clone returns a deep copy of s.
func (s Stats) Clone() Stats {
	if s.RxSymbols != nil {
		s.RxSymbols = append([]complex128(nil), s.RxSymbols...)
	}
	return s
}

// DemodResult is the output of one demodulation call.
type DemodResult struct {
	Bits    []byte // unpacked bits, one per element, BitsPerFrame long
	SyncBit int    // alternates 0/1 across half-frames while in sync
	NextNin int    // samples the demodulator wants on its next call
	Stats   Stats
}

// Demodulator consumes raw modem samples. The number of samples it wants
// varies call to call within [1, MaxSamples()] around NominalSamples().
type Demodulator interface {
	NominalSamples() int
	MaxSamples() int
	BitsPerFrame() int
	// Nin reports how many samples the next Demodulate call expects.
	Nin() int
	Demodulate(rx []int16) (DemodResult, error)
}

// SpeechDecoder turns one coded frame into audio samples.
type SpeechDecoder interface {
	BitsPerFrame() int
	SamplesPerFrame() int
	// RebuildSpareBit restores, in place, the coded bit that the transmitter
	// stole for side-channel data. bits holds BitsPerFrame unpacked bits.
	RebuildSpareBit(bits []byte)
	// Decode decodes BitsPerFrame/8 packed bytes into SamplesPerFrame samples.
	Decode(packed []byte) ([]int16, error)
}

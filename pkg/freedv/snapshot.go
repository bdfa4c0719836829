package freedv

import (
	"time"

	"freedv-rx/pkg/modem"
)

// Snapshot is a consistent copy of the latest demodulator stats plus the
// session's running counters. Counters are read after the stats, so they may
// be one step newer.
type Snapshot struct {
	Stats     modem.Stats
	State     SyncState
	Spectrum  []float64
	UpdatedAt time.Time

	DemodCalls    uint64
	DecodedFrames uint64
	SilenceBlocks uint64
	DroppedBlocks uint64
	FrameFailures uint64
	Backpressure  uint64
}

func (s *Session) latest() *demodSnapshot { return s.stats.Load() }

// State returns the current frame sync state.
func (s *Session) State() SyncState { return SyncState(s.state.Load()) }

// Synced reports whether the state machine is out of Unsynced.
func (s *Session) Synced() bool { return s.State() != Unsynced }

// SNR returns the latest SNR estimate in dB.
func (s *Session) SNR() float64 { return s.latest().stats.SNR }

// FreqOffset returns the latest frequency offset estimate in Hz.
func (s *Session) FreqOffset() float64 { return s.latest().stats.FreqOffset }

// TimingOffset returns the latest timing offset estimate.
func (s *Session) TimingOffset() float64 { return s.latest().stats.TimingOffset }

// ClockOffset returns the latest sample clock offset estimate.
func (s *Session) ClockOffset() float64 { return s.latest().stats.ClockOffset }

// RxSymbols returns a copy of the latest received constellation.
func (s *Session) RxSymbols() []complex128 {
	return append([]complex128(nil), s.latest().stats.RxSymbols...)
}

// Snapshot returns the latest stats and counters.
func (s *Session) Snapshot() Snapshot {
	d := s.latest()
	snap := Snapshot{
		Stats:         d.stats.Clone(),
		State:         s.State(),
		UpdatedAt:     d.updatedAt,
		DemodCalls:    s.demodCalls.Load(),
		DecodedFrames: s.decodedFrames.Load(),
		SilenceBlocks: s.silenceBlocks.Load(),
		DroppedBlocks: s.droppedBlocks.Load(),
		FrameFailures: s.frameFailures.Load(),
		Backpressure:  s.backpressure.Load(),
	}
	if d.spectrum != nil {
		snap.Spectrum = append([]float64(nil), d.spectrum...)
	}
	return snap
}

package freedv

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"freedv-rx/pkg/bits"
	"freedv-rx/pkg/metrics"
	"freedv-rx/pkg/modem"
)

// advance runs one step of the frame sync state machine.
//
// Output is muted while unsynced. Sync is declared once the demodulator has
// its fine frequency lock and the SNR clears the threshold. From then on a
// half-frame with sync bit 0 is held as the first half of a codec frame and
// the following half-frame with sync bit 1 completes it. A missed or repeated
// half simply re-arms the pair, so clock drift costs at most one speech frame.
// Losing lock at any point drops back to unsynced without decoding.
func (s *Session) advance(res modem.DemodResult) error {
	locked := res.Stats.FineLock
	state := s.State()
	next := state
	var err error

	switch state {
	case Unsynced:
		s.mute()
		if locked && res.Stats.SNR > s.snrThreshold {
			next = WaitFirstHalf
		}

	case WaitFirstHalf:
		switch {
		case !locked:
			next = Unsynced
		case res.SyncBit == 0:
			copy(s.codecBits[:s.halfBits], res.Bits)
			next = WaitSecondHalf
		}

	case WaitSecondHalf:
		next = WaitFirstHalf
		switch {
		case !locked:
			next = Unsynced
		case res.SyncBit == 1:
			copy(s.codecBits[s.halfBits:], res.Bits)
			err = s.decodeFrame()
		}
	}

	s.setState(state, next, res.Stats)
	return err
}

func (s *Session) mute() {
	if err := s.out.AppendSilence(s.nominal); err != nil {
		s.dropBlock("silence")
		return
	}
	s.silenceBlocks.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.RecordSilenceBlock(s.id)
	}
}

func (s *Session) decodeFrame() error {
	s.dec.RebuildSpareBit(s.codecBits)
	if err := bits.Pack(s.packed, s.codecBits); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	speech, err := s.dec.Decode(s.packed)
	if err != nil {
		return s.frameFailure(stageDecode, err)
	}
	if len(speech) != s.frameSamples {
		return s.frameFailure(stageDecode, fmt.Errorf("decoder returned %d samples, want %d", len(speech), s.frameSamples))
	}

	if s.out.Free() < s.frameSamples {
		s.dropBlock("speech")
		return nil
	}
	// cannot fail: space checked above
	_ = s.out.Append(speech)
	s.decodedFrames.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.RecordDecodedFrame(s.id)
	}
	return nil
}

func (s *Session) dropBlock(kind string) {
	s.droppedBlocks.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.RecordDroppedBlock(s.id, kind)
	}
	s.logger.WithFields(logrus.Fields{
		"kind":     kind,
		"buffered": s.out.Len(),
		"capacity": s.out.Cap(),
	}).Debug("Output buffer full, dropping block")
}

func (s *Session) setState(from, to SyncState, stats modem.Stats) {
	s.state.Store(int32(to))
	if metrics.IsMetricsEnabled() {
		metrics.RecordDemodStats(s.id, int(to), stats.SNR, stats.FreqOffset)
	}
	if from == to {
		return
	}

	entry := s.logger.WithFields(logrus.Fields{
		"from":      from.String(),
		"to":        to.String(),
		"snr_db":    stats.SNR,
		"fine_lock": stats.FineLock,
	})
	switch {
	case from == Unsynced:
		entry.Info("Frame sync acquired")
	case to == Unsynced:
		entry.Info("Frame sync lost")
	default:
		entry.Debug("Frame sync state changed")
	}
}

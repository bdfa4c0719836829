package freedv

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"freedv-rx/pkg/bits"
	"freedv-rx/pkg/buffer"
	"freedv-rx/pkg/metrics"
	"freedv-rx/pkg/modem"
	"freedv-rx/pkg/spectrum"
)

// Session turns fixed-size blocks of raw modem samples into fixed-size blocks
// of decoded speech. It runs the demodulator zero, one or two times per block
// depending on how many samples the demodulator asks for, tracks frame sync
// and decodes one speech frame for every pair of half-frames.
//
// PushInputFrame must be called from one goroutine at a time. The stats
// accessors (SNR, Synced, Snapshot, ...) may be called concurrently from any
// goroutine.
type Session struct {
	id     string
	logger *logrus.Entry

	demod modem.Demodulator
	dec   modem.SpeechDecoder

	nominal      int
	halfBits     int
	frameSamples int
	chunk        int
	maxNin       int
	snrThreshold float64

	in        *buffer.SampleBuffer
	out       *buffer.SampleBuffer
	rx        []int16
	codecBits []byte
	packed    []byte
	analyzer  *spectrum.Analyzer

	nin   int
	state atomic.Int32
	stats atomic.Pointer[demodSnapshot]

	demodCalls    atomic.Uint64
	silenceBlocks atomic.Uint64
	decodedFrames atomic.Uint64
	droppedBlocks atomic.Uint64
	frameFailures atomic.Uint64
	backpressure  atomic.Uint64

	fatal  error
	closed bool
}

type demodSnapshot struct {
	stats     modem.Stats
	spectrum  []float64
	updatedAt time.Time
}

// NewSession builds a session around a demodulator and a speech decoder. It
// fails with ErrConfig when their frame sizes do not fit together.
func NewSession(demod modem.Demodulator, dec modem.SpeechDecoder, opts ...Option) (*Session, error) {
	if demod == nil || dec == nil {
		return nil, configErrorf("demodulator and decoder are required")
	}
	o := options{snrThreshold: DefaultSNRThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	nominal := demod.NominalSamples()
	maxSamples := demod.MaxSamples()
	halfBits := demod.BitsPerFrame()
	frameSamples := dec.SamplesPerFrame()

	switch {
	case nominal <= 0 || halfBits <= 0 || frameSamples <= 0:
		return nil, configErrorf("non-positive frame size (nominal %d, bits %d, speech samples %d)", nominal, halfBits, frameSamples)
	case maxSamples < nominal:
		return nil, configErrorf("max samples %d below nominal %d", maxSamples, nominal)
	case 2*halfBits != dec.BitsPerFrame():
		return nil, configErrorf("two half-frames of %d bits do not make a %d bit codec frame", halfBits, dec.BitsPerFrame())
	}
	nbytes, err := bits.PackedLen(2 * halfBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	// nominal+maxSamples is the most the input can hold right after a push,
	// so the default never applies backpressure.
	if o.inputCap == 0 {
		o.inputCap = max(2*nominal, nominal+maxSamples)
	}
	if o.inputCap < 2*nominal || o.inputCap < maxSamples {
		return nil, configErrorf("input capacity %d below %d", o.inputCap, max(2*nominal, maxSamples))
	}
	if o.outputChunk == 0 {
		o.outputChunk = nominal
	}
	if o.outputCap == 0 {
		o.outputCap = 2 * frameSamples
	}
	if o.outputChunk <= 0 || o.outputCap < 2*frameSamples || o.outputCap < o.outputChunk || o.outputCap < nominal {
		return nil, configErrorf("output capacity %d cannot serve chunks of %d and frames of %d", o.outputCap, o.outputChunk, frameSamples)
	}

	if o.sessionID == "" {
		o.sessionID = uuid.New().String()
	}
	logger := o.logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	s := &Session{
		id:           o.sessionID,
		logger:       logger.WithField("session_id", o.sessionID),
		demod:        demod,
		dec:          dec,
		nominal:      nominal,
		halfBits:     halfBits,
		frameSamples: frameSamples,
		chunk:        o.outputChunk,
		maxNin:       maxSamples,
		snrThreshold: o.snrThreshold,
		in:           buffer.New(o.inputCap),
		out:          buffer.New(o.outputCap),
		rx:           make([]int16, o.inputCap),
		codecBits:    make([]byte, 2*halfBits),
		packed:       make([]byte, nbytes),
		nin:          demod.Nin(),
	}
	if s.nin < 1 || s.nin > s.maxNin {
		return nil, configErrorf("demodulator wants %d samples, limit is %d", s.nin, s.maxNin)
	}
	if o.spectrumSize > 0 {
		if s.analyzer, err = spectrum.New(o.spectrumSize); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConfig, err)
		}
	}
	s.stats.Store(&demodSnapshot{})

	s.logger.WithFields(logrus.Fields{
		"nominal_samples": nominal,
		"half_frame_bits": halfBits,
		"speech_samples":  frameSamples,
		"input_capacity":  o.inputCap,
		"output_capacity": o.outputCap,
		"output_chunk":    o.outputChunk,
	}).Info("Receive session created")
	return s, nil
}

// ID returns the session id used in logs and metrics.
func (s *Session) ID() string { return s.id }

// NominalSamples is the block size PushInputFrame expects.
func (s *Session) NominalSamples() int { return s.nominal }

// OutputChunk is the block size PushInputFrame returns.
func (s *Session) OutputChunk() int { return s.chunk }

// PushInputFrame appends one nominal block of raw samples, runs the
// demodulator as many times as the buffered samples allow and returns one
// output chunk if enough decoded or muted audio is available. A nil slice with
// a nil error means no output yet.
//
// Failures limited to a single frame are returned as *FrameError values
// (joined when there are several) together with any output; the session
// stays usable. ErrBackpressure means the block was not stored. ErrConfig
// means the session has stopped.
func (s *Session) PushInputFrame(samples []int16) ([]int16, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.fatal != nil {
		return nil, s.fatal
	}
	if len(samples) != s.nominal {
		return nil, fmt.Errorf("%w: got %d samples, want %d", ErrInvalidInput, len(samples), s.nominal)
	}
	if metrics.IsMetricsEnabled() {
		defer metrics.ObservePush(s.id)()
	}

	if err := s.in.Append(samples); err != nil {
		s.backpressure.Add(1)
		if metrics.IsMetricsEnabled() {
			metrics.RecordBackpressure(s.id)
		}
		s.logger.WithFields(logrus.Fields{
			"buffered": s.in.Len(),
			"capacity": s.in.Cap(),
		}).Warn("Input buffer full, rejecting block")
		return nil, fmt.Errorf("%w: %w", ErrBackpressure, err)
	}

	var frameErrs []error
	for s.in.Len() >= s.nin {
		if err := s.demodOnce(); err != nil {
			if errors.Is(err, ErrConfig) {
				s.fatal = err
				s.logger.WithError(err).Error("Receive session stopped")
				return nil, err
			}
			frameErrs = append(frameErrs, err)
		}
	}

	out, _ := s.out.Drain(s.chunk)
	return out, errors.Join(frameErrs...)
}

// demodOnce feeds the demodulator the samples it asked for and runs one
// state machine step on the result.
func (s *Session) demodOnce() error {
	nin := s.nin
	rx := s.rx[:nin]
	s.in.Peek(rx)
	res, err := s.demod.Demodulate(rx)
	// nin <= Len() is the loop condition
	_ = s.in.ConsumeFront(nin)
	s.demodCalls.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.RecordDemodIteration(s.id)
	}
	if s.analyzer != nil {
		s.analyzer.Update(rx)
	}

	if err == nil {
		err = s.checkResult(res)
	}
	if err != nil {
		return s.frameFailure(stageDemod, err)
	}
	if res.NextNin < 1 || res.NextNin > s.maxNin {
		return configErrorf("demodulator wants %d samples, limit is %d", res.NextNin, s.maxNin)
	}
	s.nin = res.NextNin
	s.publish(res.Stats)
	return s.advance(res)
}

func (s *Session) checkResult(res modem.DemodResult) error {
	if len(res.Bits) != s.halfBits {
		return fmt.Errorf("demodulator returned %d bits, want %d", len(res.Bits), s.halfBits)
	}
	if res.SyncBit != 0 && res.SyncBit != 1 {
		return fmt.Errorf("demodulator returned sync bit %d", res.SyncBit)
	}
	return nil
}

func (s *Session) frameFailure(stage string, err error) error {
	s.frameFailures.Add(1)
	if metrics.IsMetricsEnabled() {
		metrics.RecordFrameFailure(s.id, stage)
	}
	s.logger.WithError(err).WithFields(logrus.Fields{
		"stage": stage,
		"frame": s.demodCalls.Load(),
	}).Warn("Frame dropped")
	return &FrameError{Stage: stage, Frame: s.demodCalls.Load(), Err: err}
}

func (s *Session) publish(stats modem.Stats) {
	snap := &demodSnapshot{stats: stats.Clone(), updatedAt: time.Now()}
	if s.analyzer != nil {
		snap.spectrum = s.analyzer.Spectrum()
	}
	s.stats.Store(snap)
}

// Close releases adapters that implement io.Closer. Later pushes return
// ErrClosed.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	if c, ok := s.demod.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if c, ok := s.dec.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if metrics.IsMetricsEnabled() {
		metrics.DeleteSession(s.id)
	}
	s.logger.WithFields(logrus.Fields{
		"demod_calls":    s.demodCalls.Load(),
		"decoded_frames": s.decodedFrames.Load(),
		"silence_blocks": s.silenceBlocks.Load(),
		"dropped_blocks": s.droppedBlocks.Load(),
	}).Info("Receive session closed")
	return errors.Join(errs...)
}

package freedv

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a fatal configuration fault, typically a frame-size
	// mismatch between the demodulator and the speech decoder. A session that
	// hits one at run time stops and returns it from every later call.
	ErrConfig = errors.New("freedv: configuration fault")

	// ErrBackpressure is returned when an input block does not fit in the
	// input buffer. The block is not stored; the caller is pushing faster than
	// the demodulator consumes.
	ErrBackpressure = errors.New("freedv: input buffer full")

	// ErrInvalidInput is returned for an input block of the wrong length.
	ErrInvalidInput = errors.New("freedv: invalid input block")

	// ErrDemodFailed and ErrDecodeFailed mark a failure limited to one frame.
	ErrDemodFailed  = errors.New("freedv: demodulation failed")
	ErrDecodeFailed = errors.New("freedv: speech decode failed")

	// ErrClosed is returned by a session after Close.
	ErrClosed = errors.New("freedv: session closed")
)

// FrameError reports an adapter failure for a single frame. The session
// remains usable.
type FrameError struct {
	Stage string // "demod" or "decode"
	Frame uint64 // demodulator call count at the time of failure
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("freedv: %s failed on frame %d: %v", e.Stage, e.Frame, e.Err)
}

func (e *FrameError) Unwrap() []error {
	kind := ErrDecodeFailed
	if e.Stage == stageDemod {
		kind = ErrDemodFailed
	}
	return []error{kind, e.Err}
}

const (
	stageDemod  = "demod"
	stageDecode = "decode"
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrConfig}, args...)...)
}

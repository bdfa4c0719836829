// Package codec2 adapts libcodec2's FDMDV demodulator and Codec2 1400 speech
// decoder to the modem interfaces. The cgo implementation is built with
// -tags libcodec2; without it the constructors return ErrUnavailable.
package codec2

import "errors"

// ErrUnavailable is returned when the binary was built without libcodec2.
var ErrUnavailable = errors.New("codec2: built without libcodec2 (use -tags libcodec2)")

// FDMDV frame geometry, fixed by the 1400 bit/s FreeDV mode.
const (
	NominalSamples = 160
	MaxSamples     = 200
	BitsPerFrame   = 28
	Carriers       = 14

	// fdmdv expects input scaled down by this factor.
	fdmdvScale = 1000.0
)

package freedv

import "github.com/sirupsen/logrus"

// DefaultSNRThreshold is the SNR in dB the demodulator must exceed, with its
// fine frequency lock, before frame sync is attempted.
const DefaultSNRThreshold = 3.0

type options struct {
	logger       *logrus.Logger
	sessionID    string
	snrThreshold float64
	spectrumSize int
	inputCap     int
	outputCap    int
	outputChunk  int
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the logger. Without it the session logs nowhere.
func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSessionID overrides the generated session id used in logs and metrics.
func WithSessionID(id string) Option {
	return func(o *options) { o.sessionID = id }
}

// WithSNRThreshold sets the sync acquisition threshold in dB.
func WithSNRThreshold(db float64) Option {
	return func(o *options) { o.snrThreshold = db }
}

// WithSpectrum enables a receive spectrum of size FFT points in snapshots.
func WithSpectrum(size int) Option {
	return func(o *options) { o.spectrumSize = size }
}

// WithInputCapacity sets the input buffer capacity in samples. It must hold
// two nominal blocks and the largest demodulator request. Below nominal plus
// the largest request, pushes can be refused with ErrBackpressure.
func WithInputCapacity(n int) Option {
	return func(o *options) { o.inputCap = n }
}

// WithOutputCapacity sets the output buffer capacity in samples. It must hold
// at least two decoded frames.
func WithOutputCapacity(n int) Option {
	return func(o *options) { o.outputCap = n }
}

// WithOutputChunk sets the number of samples returned per push. It defaults
// to the demodulator's nominal sample count.
func WithOutputChunk(n int) Option {
	return func(o *options) { o.outputChunk = n }
}

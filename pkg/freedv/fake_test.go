package freedv

import (
	"errors"

	"freedv-rx/pkg/modem"
)

const (
	testNominal  = 160
	testMax      = 200
	testHalfBits = 28
	testSpeech   = 320
)

// step scripts one demodulator call.
type step struct {
	lock    bool
	snr     float64
	sync    int
	nextNin int
	bits    []byte
	err     error
}

func locked(sync int) step   { return step{lock: true, snr: 6, sync: sync} }
func unlocked(sync int) step { return step{lock: false, snr: 0, sync: sync} }

type fakeDemod struct {
	nominal  int
	max      int
	halfBits int
	nin      int
	script   []step
	fallback step
	calls    int
	seen     [][]int16
	closed   bool
}

func newFakeDemod(script ...step) *fakeDemod {
	return &fakeDemod{
		nominal:  testNominal,
		max:      testMax,
		halfBits: testHalfBits,
		nin:      testNominal,
		script:   script,
		fallback: unlocked(0),
	}
}

func (d *fakeDemod) NominalSamples() int { return d.nominal }
func (d *fakeDemod) MaxSamples() int     { return d.max }
func (d *fakeDemod) BitsPerFrame() int   { return d.halfBits }
func (d *fakeDemod) Nin() int            { return d.nin }

func (d *fakeDemod) Demodulate(rx []int16) (modem.DemodResult, error) {
	st := d.fallback
	if d.calls < len(d.script) {
		st = d.script[d.calls]
	}
	d.calls++
	d.seen = append(d.seen, append([]int16(nil), rx...))
	if st.err != nil {
		return modem.DemodResult{}, st.err
	}

	next := st.nextNin
	if next == 0 {
		next = d.nin
	}
	d.nin = next
	b := st.bits
	if b == nil {
		b = make([]byte, d.halfBits)
		for i := range b {
			b[i] = byte((d.calls + i) & 1)
		}
	}
	return modem.DemodResult{
		Bits:    b,
		SyncBit: st.sync,
		NextNin: next,
		Stats: modem.Stats{
			FineLock:     st.lock,
			SNR:          st.snr,
			FreqOffset:   float64(d.calls),
			TimingOffset: 0.5,
			ClockOffset:  0.001,
			RxSymbols:    []complex128{complex(1, 1), complex(-1, 1)},
		},
	}, nil
}

func (d *fakeDemod) Close() error {
	d.closed = true
	return nil
}

type fakeDecoder struct {
	bits    int
	samples int
	value   int16
	err     error
	short   bool

	demod       *fakeDemod
	calls       int
	decodedAt   []int // demodulator call count at each decode
	lastPacked  []byte
	rebuildSeen [][]byte
}

func newFakeDecoder(demod *fakeDemod) *fakeDecoder {
	return &fakeDecoder{bits: 2 * testHalfBits, samples: testSpeech, value: 1000, demod: demod}
}

func (d *fakeDecoder) BitsPerFrame() int    { return d.bits }
func (d *fakeDecoder) SamplesPerFrame() int { return d.samples }

func (d *fakeDecoder) RebuildSpareBit(bits []byte) {
	d.rebuildSeen = append(d.rebuildSeen, append([]byte(nil), bits...))
	bits[len(bits)-1] = 1
}

func (d *fakeDecoder) Decode(packed []byte) ([]int16, error) {
	d.calls++
	if d.demod != nil {
		d.decodedAt = append(d.decodedAt, d.demod.calls)
	}
	d.lastPacked = append([]byte(nil), packed...)
	if d.err != nil {
		return nil, d.err
	}
	n := d.samples
	if d.short {
		n--
	}
	out := make([]int16, n)
	for i := range out {
		out[i] = d.value
	}
	return out, nil
}

var errAdapter = errors.New("adapter fault")

func block(v int16) []int16 {
	out := make([]int16, testNominal)
	for i := range out {
		out[i] = v
	}
	return out
}

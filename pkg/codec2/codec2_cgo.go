//go:build cgo && libcodec2

package codec2

/*
#cgo LDFLAGS: -lcodec2
#include <stdlib.h>
#include <codec2/codec2.h>
#include <codec2/codec2_fdmdv.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"freedv-rx/pkg/modem"
)

// FDMDV is the 14 carrier FDMDV demodulator.
type FDMDV struct {
	state *C.struct_FDMDV
	nin   int
	bits  []C.int
	fdm   []C.COMP
	stats C.struct_MODEM_STATS
}

// NewFDMDV creates a demodulator.
func NewFDMDV() (*FDMDV, error) {
	state := C.fdmdv_create(C.int(Carriers))
	if state == nil {
		return nil, errors.New("failed to create fdmdv")
	}
	if n := int(C.fdmdv_bits_per_frame(state)); n != BitsPerFrame {
		C.fdmdv_destroy(state)
		return nil, fmt.Errorf("fdmdv reports %d bits per frame, want %d", n, BitsPerFrame)
	}
	return &FDMDV{
		state: state,
		nin:   NominalSamples,
		bits:  make([]C.int, BitsPerFrame),
		fdm:   make([]C.COMP, MaxSamples),
	}, nil
}

func (f *FDMDV) NominalSamples() int { return NominalSamples }
func (f *FDMDV) MaxSamples() int     { return MaxSamples }
func (f *FDMDV) BitsPerFrame() int   { return BitsPerFrame }
func (f *FDMDV) Nin() int            { return f.nin }

// Demodulate runs one demodulator step over exactly Nin() samples.
func (f *FDMDV) Demodulate(rx []int16) (modem.DemodResult, error) {
	if f.state == nil {
		return modem.DemodResult{}, errors.New("fdmdv is closed")
	}
	if len(rx) != f.nin {
		return modem.DemodResult{}, fmt.Errorf("fdmdv wants %d samples, got %d", f.nin, len(rx))
	}
	for i, s := range rx {
		f.fdm[i].real = C.float(float64(s) / fdmdvScale)
		f.fdm[i].imag = 0
	}

	var syncBit C.int
	nin := C.int(f.nin)
	C.fdmdv_demod(f.state, &f.bits[0], &syncBit, &f.fdm[0], &nin)
	C.fdmdv_get_demod_stats(f.state, &f.stats)
	f.nin = int(nin)

	res := modem.DemodResult{
		Bits:    make([]byte, BitsPerFrame),
		SyncBit: int(syncBit),
		NextNin: f.nin,
		Stats: modem.Stats{
			FineLock:     f.stats.sync != 0,
			SNR:          float64(f.stats.snr_est),
			TimingOffset: float64(f.stats.rx_timing),
			FreqOffset:   float64(f.stats.foff),
			ClockOffset:  float64(f.stats.clock_offset),
		},
	}
	for i, b := range f.bits {
		res.Bits[i] = byte(b & 1)
	}
	nc := int(f.stats.Nc)
	res.Stats.RxSymbols = make([]complex128, 0, nc+1)
	for i := 0; i <= nc; i++ {
		sym := f.stats.rx_symbols[0][i]
		res.Stats.RxSymbols = append(res.Stats.RxSymbols, complex(float64(sym.real), float64(sym.imag)))
	}
	return res, nil
}

// Close releases the demodulator state.
func (f *FDMDV) Close() error {
	if f.state != nil {
		C.fdmdv_destroy(f.state)
		f.state = nil
	}
	return nil
}

// Decoder is a Codec2 1400 bit/s speech decoder.
type Decoder struct {
	state   *C.struct_CODEC2
	bits    int
	samples int
	spare   []C.char
}

// NewDecoder creates a decoder.
func NewDecoder() (*Decoder, error) {
	state := C.codec2_create(C.CODEC2_MODE_1400)
	if state == nil {
		return nil, errors.New("failed to create codec2")
	}
	d := &Decoder{
		state:   state,
		bits:    int(C.codec2_bits_per_frame(state)),
		samples: int(C.codec2_samples_per_frame(state)),
	}
	d.spare = make([]C.char, d.bits)
	return d, nil
}

func (d *Decoder) BitsPerFrame() int    { return d.bits }
func (d *Decoder) SamplesPerFrame() int { return d.samples }

// RebuildSpareBit restores the bit the modem frame borrowed for sync.
func (d *Decoder) RebuildSpareBit(bits []byte) {
	if d.state == nil || len(bits) != d.bits {
		return
	}
	for i, b := range bits {
		d.spare[i] = C.char(b)
	}
	C.codec2_rebuild_spare_bit(d.state, (*C.char)(unsafe.Pointer(&d.spare[0])))
	for i, b := range d.spare {
		bits[i] = byte(b)
	}
}

// Decode turns one packed frame into speech samples.
func (d *Decoder) Decode(packed []byte) ([]int16, error) {
	if d.state == nil {
		return nil, errors.New("codec2 is closed")
	}
	if want := (d.bits + 7) / 8; len(packed) != want {
		return nil, fmt.Errorf("codec2 wants %d packed bytes, got %d", want, len(packed))
	}
	speech := make([]int16, d.samples)
	C.codec2_decode(d.state, (*C.short)(unsafe.Pointer(&speech[0])), (*C.uchar)(unsafe.Pointer(&packed[0])))
	return speech, nil
}

// Close releases the decoder state.
func (d *Decoder) Close() error {
	if d.state != nil {
		C.codec2_destroy(d.state)
		d.state = nil
	}
	return nil
}

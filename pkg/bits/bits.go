package bits

import (
	"errors"
	"fmt"
)

const (
	WordSize   = 8   // Bits in a packed byte.
	IndexMask  = 0x7 // Mask to pick the bit index within a byte.
	ShiftRight = 3   // Right-shift amount to convert a bit index to a byte index.
)

var (
	// ErrMisaligned is returned when a bit count does not fill whole bytes.
	ErrMisaligned = errors.New("bit count is not a multiple of 8")
	// ErrShortBuffer is returned when the destination cannot hold the result.
	ErrShortBuffer = errors.New("destination buffer too short")
)

// PackedLen returns the number of bytes needed to hold nbits unpacked bits.
func PackedLen(nbits int) (int, error) {
	if nbits < 0 || nbits&IndexMask != 0 {
		return 0, fmt.Errorf("%w: %d bits", ErrMisaligned, nbits)
	}
	return nbits >> ShiftRight, nil
}

// Pack packs unpacked bits (one per element, any non-zero value is a 1) into
// dst, most significant bit first: element 0 lands in bit 7 of dst[0] and
// element 8 in bit 7 of dst[1].
func Pack(dst []byte, bits []byte) error {
	n, err := PackedLen(len(bits))
	if err != nil {
		return err
	}
	if len(dst) < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortBuffer, n, len(dst))
	}

	bit, byteIdx := 7, 0
	clear(dst[:n])
	for _, b := range bits {
		if b != 0 {
			dst[byteIdx] |= 1 << bit
		}
		bit--
		if bit < 0 {
			bit = 7
			byteIdx++
		}
	}
	if byteIdx != n {
		return fmt.Errorf("%w: packed %d of %d bytes", ErrMisaligned, byteIdx, n)
	}
	return nil
}

// Unpack expands packed bytes into dst, one bit per element, MSB first.
func Unpack(dst []byte, packed []byte) error {
	nbits := len(packed) * WordSize
	if len(dst) < nbits {
		return fmt.Errorf("%w: need %d bits, have %d", ErrShortBuffer, nbits, len(dst))
	}
	for i := 0; i < nbits; i++ {
		dst[i] = (packed[i>>ShiftRight] >> (WordSize - 1 - uint(i&IndexMask))) & 1
	}
	return nil
}

package bits

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackMSBFirst(t *testing.T) {
	tests := []struct {
		name string
		bits []byte
		want []byte
	}{
		{"first bit is bit 7", []byte{1, 0, 0, 0, 0, 0, 0, 0}, []byte{0x80}},
		{"last bit is bit 0", []byte{0, 0, 0, 0, 0, 0, 0, 1}, []byte{0x01}},
		{"rolls into next byte", []byte{0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0}, []byte{0x01, 0x80}},
		{"alternating", []byte{1, 0, 1, 0, 1, 0, 1, 0}, []byte{0xAA}},
		{"non-zero counts as one", []byte{2, 0, 0, 0, 0, 0, 0, 9}, []byte{0x81}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]byte, len(tc.want))
			require.NoError(t, Pack(dst, tc.bits))
			assert.Equal(t, tc.want, dst)
		})
	}
}

func TestPackClearsStaleBytes(t *testing.T) {
	dst := []byte{0xFF, 0xFF}
	require.NoError(t, Pack(dst, make([]byte, 16)))
	assert.Equal(t, []byte{0, 0}, dst)
}

func TestPackErrors(t *testing.T) {
	err := Pack(make([]byte, 2), make([]byte, 12))
	assert.ErrorIs(t, err, ErrMisaligned)

	err = Pack(make([]byte, 1), make([]byte, 16))
	assert.ErrorIs(t, err, ErrShortBuffer)

	err = Unpack(make([]byte, 7), []byte{0x00})
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestPackedLen(t *testing.T) {
	n, err := PackedLen(56)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = PackedLen(28)
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestPackUnpackRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, nbits := range []int{8, 48, 56, 64, 1024} {
		in := make([]byte, nbits)
		for i := range in {
			in[i] = byte(rng.Intn(2))
		}
		packed := make([]byte, nbits/8)
		require.NoError(t, Pack(packed, in))

		out := make([]byte, nbits)
		require.NoError(t, Unpack(out, packed))
		assert.Equal(t, in, out, "nbits=%d", nbits)
	}
}

package codec2

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"freedv-rx/pkg/freedv"
	"freedv-rx/pkg/modem"
)

var (
	_ modem.Demodulator   = (*FDMDV)(nil)
	_ modem.SpeechDecoder = (*Decoder)(nil)
)

func newAdapters(t *testing.T) (*FDMDV, *Decoder) {
	t.Helper()
	demod, err := NewFDMDV()
	if errors.Is(err, ErrUnavailable) {
		t.Skip("built without libcodec2")
	}
	require.NoError(t, err)
	t.Cleanup(func() { demod.Close() })

	dec, err := NewDecoder()
	require.NoError(t, err)
	t.Cleanup(func() { dec.Close() })
	return demod, dec
}

func TestAdaptersFitSession(t *testing.T) {
	demod, dec := newAdapters(t)

	assert.Equal(t, 56, dec.BitsPerFrame())
	assert.Equal(t, 320, dec.SamplesPerFrame())

	sess, err := freedv.NewSession(demod, dec)
	require.NoError(t, err)
	defer sess.Close()

	// Silence never acquires sync, so every output block is silence.
	for i := 0; i < 50; i++ {
		out, err := sess.PushInputFrame(make([]int16, NominalSamples))
		require.NoError(t, err)
		if out != nil {
			assert.Len(t, out, NominalSamples)
		}
		n := demod.Nin()
		assert.True(t, n >= 1 && n <= MaxSamples, "nin %d", n)
	}
	assert.False(t, sess.Synced())
}

func TestDecoderFrame(t *testing.T) {
	_, dec := newAdapters(t)

	bits := make([]byte, dec.BitsPerFrame())
	dec.RebuildSpareBit(bits)

	speech, err := dec.Decode(make([]byte, 7))
	require.NoError(t, err)
	assert.Len(t, speech, 320)

	_, err = dec.Decode(make([]byte, 6))
	assert.Error(t, err)
}

func TestDemodulatorRejectsWrongLength(t *testing.T) {
	demod, _ := newAdapters(t)
	_, err := demod.Demodulate(make([]int16, demod.Nin()+1))
	assert.Error(t, err)
}

package media

import (
	"encoding/binary"
	"fmt"
)

var (
	muLawDecodeTable [256]int16
	aLawDecodeTable  [256]int16
)

func init() {
	for i := 0; i < 256; i++ {
		muLawDecodeTable[i] = decodeMuLawSample(byte(i))
		aLawDecodeTable[i] = decodeALawSample(byte(i))
	}
}

// DecodeAudioPayload converts codec-specific RTP payload bytes into 16-bit PCM.
// The returned slice uses little-endian byte ordering.
func DecodeAudioPayload(payload []byte, codecName string) ([]byte, error) {
	switch codecName {
	case "", "PCMU", "G711U", "G.711U", "G711MU":
		return muLawToPCM(payload), nil
	case "PCMA", "G711A", "G.711A":
		return aLawToPCM(payload), nil
	case "L16", "LINEAR16":
		// RTP carries L16 in network byte order
		if len(payload)%2 != 0 {
			return nil, fmt.Errorf("odd L16 payload length %d", len(payload))
		}
		out := make([]byte, len(payload))
		for i := 0; i < len(payload); i += 2 {
			out[i], out[i+1] = payload[i+1], payload[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported codec for PCM conversion: %s", codecName)
	}
}

// PCMToSamples converts little-endian 16-bit PCM bytes to samples. A trailing
// odd byte is ignored.
func PCMToSamples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// SamplesToPCM converts samples to little-endian 16-bit PCM bytes.
func SamplesToPCM(dst []byte, samples []int16) []byte {
	dst = dst[:0]
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}

func muLawToPCM(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}

	out := make([]byte, len(payload)*2)
	for i, b := range payload {
		sample := muLawDecodeTable[b]
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

func aLawToPCM(payload []byte) []byte {
	if len(payload) == 0 {
		return nil
	}

	out := make([]byte, len(payload)*2)
	for i, b := range payload {
		sample := aLawDecodeTable[b]
		out[2*i] = byte(sample)
		out[2*i+1] = byte(sample >> 8)
	}
	return out
}

func decodeMuLawSample(uval byte) int16 {
	uval = ^uval
	sign := int16(uval & 0x80)
	exponent := (uval >> 4) & 0x07
	mantissa := uval & 0x0F
	magnitude := ((int16(mantissa) << 3) + 0x84) << exponent
	magnitude -= 0x84
	if sign != 0 {
		return -magnitude
	}
	return magnitude
}

func decodeALawSample(aval byte) int16 {
	aval ^= 0x55
	sign := int16(aval & 0x80)
	exponent := (aval >> 4) & 0x07
	mantissa := aval & 0x0F

	var magnitude int16
	switch exponent {
	case 0:
		magnitude = int16(mantissa)<<4 + 8
	case 1:
		magnitude = int16(mantissa)<<4 + 0x108
	default:
		magnitude = (int16(mantissa)<<4 + 0x108) << (exponent - 1)
	}

	// A-law sets the sign bit for positive samples
	if sign != 0 {
		return magnitude
	}
	return -magnitude
}

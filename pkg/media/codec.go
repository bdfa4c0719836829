package media

// CodecInfo describes the audio an RTP payload type carries.
type CodecInfo struct {
	Name        string
	PayloadType uint8
	SampleRate  int
	Channels    int
	Description string
}

// SupportedCodecs maps static payload types to codec information. L16 at
// 8 kHz has no static payload type and is mapped per source.
var SupportedCodecs = map[uint8]CodecInfo{
	0: {Name: "PCMU", PayloadType: 0, SampleRate: ModemRate, Channels: 1, Description: "G.711 μ-law"},
	8: {Name: "PCMA", PayloadType: 8, SampleRate: ModemRate, Channels: 1, Description: "G.711 a-law"},
}

// GetCodecInfo returns the static codec registered for a payload type.
func GetCodecInfo(payloadType uint8) (CodecInfo, bool) {
	codec, exists := SupportedCodecs[payloadType]
	return codec, exists
}

// carriesModemAudio reports whether the codec delivers mono audio at the
// modem sample rate.
func (c CodecInfo) carriesModemAudio() bool {
	return c.SampleRate == ModemRate && c.Channels == 1
}

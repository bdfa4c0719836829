package media

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRTPSource(t *testing.T, nominal int, opts ...RTPOption) (*RTPSource, *net.UDPConn) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	src, err := ListenRTP("127.0.0.1:0", nominal, logger, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	conn, err := net.DialUDP("udp", nil, src.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return src, conn
}

func sendRTP(t *testing.T, conn *net.UDPConn, pt uint8, seq uint16, payload []byte) {
	t.Helper()
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    pt,
			SequenceNumber: seq,
			Timestamp:      uint32(seq) * 160,
			SSRC:           0x1234,
		},
		Payload: payload,
	}
	raw, err := pkt.Marshal()
	require.NoError(t, err)
	_, err = conn.Write(raw)
	require.NoError(t, err)
}

func readFrameWithin(t *testing.T, src *RTPSource) []int16 {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b, err := src.ReadFrame(ctx)
	require.NoError(t, err)
	return b
}

func filled(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestRTPSourceReblocksPCMU(t *testing.T) {
	src, conn := newTestRTPSource(t, 100)

	// 0x80 decodes to 32124 in μ-law
	sendRTP(t, conn, 0, 1, filled(80, 0x80))
	sendRTP(t, conn, 0, 2, filled(80, 0x80))
	sendRTP(t, conn, 0, 3, filled(80, 0x80))

	b := readFrameWithin(t, src)
	require.Len(t, b, 100)
	for _, v := range b {
		assert.Equal(t, int16(32124), v)
	}
	b = readFrameWithin(t, src)
	assert.Len(t, b, 100)

	packets, lost, discarded := src.Stats()
	assert.Equal(t, uint64(3), packets)
	assert.Zero(t, lost)
	assert.Zero(t, discarded)
}

func TestRTPSourceConcealsLossAndDropsDuplicates(t *testing.T) {
	src, conn := newTestRTPSource(t, 40)

	sendRTP(t, conn, 8, 10, filled(20, 0xAA)) // A-law 32256
	sendRTP(t, conn, 8, 10, filled(20, 0xAA)) // duplicate
	sendRTP(t, conn, 8, 12, filled(20, 0xAA)) // 11 lost
	sendRTP(t, conn, 8, 9, filled(20, 0xAA))  // late
	sendRTP(t, conn, 8, 13, filled(20, 0xAA))

	b := readFrameWithin(t, src)
	for i := 0; i < 20; i++ {
		assert.Equal(t, int16(32256), b[i])
	}
	for i := 20; i < 40; i++ {
		assert.Zero(t, b[i], "concealed sample %d", i)
	}
	b = readFrameWithin(t, src)
	for _, v := range b {
		assert.Equal(t, int16(32256), v)
	}

	packets, lost, discarded := src.Stats()
	assert.Equal(t, uint64(3), packets)
	assert.Equal(t, uint64(1), lost)
	assert.Equal(t, uint64(2), discarded)
}

func TestRTPSourceDynamicL16(t *testing.T) {
	src, conn := newTestRTPSource(t, 2, WithPayloadType(96, "L16"))

	sendRTP(t, conn, 97, 1, []byte{0, 1, 0, 1}) // unmapped
	sendRTP(t, conn, 96, 2, []byte{0x12, 0x34, 0xFF, 0xFE})

	b := readFrameWithin(t, src)
	assert.Equal(t, []int16{0x1234, -2}, b)

	_, _, discarded := src.Stats()
	assert.Equal(t, uint64(1), discarded)
}

func TestRTPSourceStops(t *testing.T) {
	src, _ := newTestRTPSource(t, 160)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err := src.ReadFrame(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan error, 1)
	go func() {
		_, err := src.ReadFrame(context.Background())
		done <- err
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, src.Close())
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, io.EOF), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("ReadFrame did not return after Close")
	}
}

func TestRTPSourceRejectsNonModemCodecs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	src, err := ListenRTP("127.0.0.1:0", 4, logger,
		WithCodec(CodecInfo{Name: "L16", PayloadType: 97, SampleRate: 16000, Channels: 1}),
		WithCodec(CodecInfo{Name: "L16", PayloadType: 98, SampleRate: ModemRate, Channels: 2}),
		WithPayloadType(99, "L16"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })

	rejected := map[uint8]bool{}
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Rejecting RTP payload type that does not carry 8 kHz mono audio" {
			rejected[e.Data["payload_type"].(uint8)] = true
		}
	}
	assert.Equal(t, map[uint8]bool{97: true, 98: true}, rejected)

	conn, err := net.DialUDP("udp", nil, src.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sendRTP(t, conn, 97, 1, []byte{0, 1, 0, 1})
	sendRTP(t, conn, 98, 2, []byte{0, 1, 0, 1})
	sendRTP(t, conn, 99, 3, []byte{0, 1, 0, 2, 0, 3, 0, 4})

	b := readFrameWithin(t, src)
	assert.Equal(t, []int16{1, 2, 3, 4}, b)

	packets, _, discarded := src.Stats()
	assert.Equal(t, uint64(1), packets)
	assert.Equal(t, uint64(2), discarded)
}

func TestGetCodecInfo(t *testing.T) {
	tests := []struct {
		pt     uint8
		name   string
		exists bool
	}{
		{0, "PCMU", true},
		{8, "PCMA", true},
		{18, "", false},
		{96, "", false},
	}
	for _, tt := range tests {
		info, ok := GetCodecInfo(tt.pt)
		assert.Equal(t, tt.exists, ok, "payload type %d", tt.pt)
		assert.Equal(t, tt.name, info.Name)
		if ok {
			assert.True(t, info.carriesModemAudio())
		}
	}
}

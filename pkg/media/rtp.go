package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

const (
	rtpReadTimeout = 200 * time.Millisecond
	rtpMaxPacket   = 1500
	// Gaps larger than this are treated as a stream restart, not loss.
	rtpMaxConcealedPackets = 50
)

// RTPOption configures an RTPSource.
type RTPOption func(*RTPSource)

// WithCodec maps info.PayloadType to info, replacing any static mapping.
// Codecs that do not carry 8 kHz mono audio are rejected by NewRTPSource.
func WithCodec(info CodecInfo) RTPOption {
	return func(s *RTPSource) { s.codecs[info.PayloadType] = info }
}

// WithPayloadType maps a dynamic payload type to an 8 kHz mono codec name
// understood by DecodeAudioPayload, e.g. 96 to "L16".
func WithPayloadType(pt uint8, codec string) RTPOption {
	return WithCodec(CodecInfo{
		Name:        codec,
		PayloadType: pt,
		SampleRate:  ModemRate,
		Channels:    1,
		Description: "dynamic " + codec,
	})
}

// RTPSource receives modem audio as RTP over UDP and re-blocks it into blocks
// of nominal samples. Lost packets are replaced with silence so the modem sees
// a continuous sample clock.
type RTPSource struct {
	conn   *net.UDPConn
	logger *logrus.Logger
	framer *Framer
	codecs map[uint8]CodecInfo
	buf    []byte

	started bool
	lastSeq uint16
	lastLen int

	packets   atomic.Uint64
	lost      atomic.Uint64
	discarded atomic.Uint64
}

// ListenRTP binds a UDP socket on addr and returns a source reading from it.
func ListenRTP(addr string, nominal int, logger *logrus.Logger, opts ...RTPOption) (*RTPSource, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("invalid RTP listen address %q: %w", addr, err)
	}
	logger.WithField("address", udpAddr.String()).Info("Binding RTP listener")
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", udpAddr, err)
	}
	SetUDPSocketBuffers(conn, logger)
	return NewRTPSource(conn, nominal, logger, opts...), nil
}

// NewRTPSource reads from an already bound connection.
func NewRTPSource(conn *net.UDPConn, nominal int, logger *logrus.Logger, opts ...RTPOption) *RTPSource {
	s := &RTPSource{
		conn:   conn,
		logger: logger,
		framer: NewFramer(nominal),
		codecs: make(map[uint8]CodecInfo),
		buf:    make([]byte, rtpMaxPacket),
	}
	for pt, info := range SupportedCodecs {
		s.codecs[pt] = info
	}
	for _, opt := range opts {
		opt(s)
	}
	for pt, info := range s.codecs {
		if info.carriesModemAudio() {
			continue
		}
		delete(s.codecs, pt)
		logger.WithFields(logrus.Fields{
			"payload_type": pt,
			"codec":        info.Name,
			"sample_rate":  info.SampleRate,
			"channels":     info.Channels,
		}).Warn("Rejecting RTP payload type that does not carry 8 kHz mono audio")
	}
	return s
}

// LocalAddr returns the bound address.
func (s *RTPSource) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close closes the socket. A blocked ReadFrame returns io.EOF.
func (s *RTPSource) Close() error { return s.conn.Close() }

// ReadFrame implements Source.
func (s *RTPSource) ReadFrame(ctx context.Context) ([]int16, error) {
	for {
		if block, ok := s.framer.Next(); ok {
			return block, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Short deadlines keep the loop responsive to ctx.
		_ = s.conn.SetReadDeadline(time.Now().Add(rtpReadTimeout))
		n, addr, err := s.conn.ReadFromUDP(s.buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("failed to read RTP packet: %w", err)
		}
		s.handlePacket(s.buf[:n], addr)
	}
}

func (s *RTPSource) handlePacket(data []byte, addr *net.UDPAddr) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(data); err != nil {
		s.discarded.Add(1)
		s.logger.WithError(err).WithField("remote_addr", addr.String()).Debug("Failed to unmarshal RTP packet")
		return
	}
	info, ok := s.codecs[pkt.PayloadType]
	if !ok {
		s.discarded.Add(1)
		fields := logrus.Fields{"payload_type": pkt.PayloadType}
		if static, known := GetCodecInfo(pkt.PayloadType); known {
			fields["codec"] = static.Name
		}
		s.logger.WithFields(fields).Debug("Ignoring RTP packet with unmapped payload type")
		return
	}
	pcm, err := DecodeAudioPayload(pkt.Payload, info.Name)
	if err != nil {
		s.discarded.Add(1)
		s.logger.WithError(err).WithField("payload_type", pkt.PayloadType).Debug("Failed to decode RTP payload")
		return
	}
	samples := PCMToSamples(pcm)

	if !s.started {
		s.started = true
		s.logger.WithFields(logrus.Fields{
			"remote_addr":  addr.String(),
			"ssrc":         pkt.SSRC,
			"payload_type": pkt.PayloadType,
			"codec":        info.Name,
			"description":  info.Description,
			"sequence":     pkt.SequenceNumber,
		}).Info("First RTP packet received")
	} else {
		delta := pkt.SequenceNumber - s.lastSeq
		switch {
		case delta == 0 || delta > 0x8000:
			s.discarded.Add(1)
			s.logger.WithField("sequence", pkt.SequenceNumber).Debug("Dropping duplicate or late RTP packet")
			return
		case delta > 1 && int(delta-1) <= rtpMaxConcealedPackets:
			missing := uint64(delta - 1)
			s.lost.Add(missing)
			s.framer.PushSilence(int(missing) * s.lastLen)
			s.logger.WithFields(logrus.Fields{
				"sequence": pkt.SequenceNumber,
				"missing":  missing,
			}).Debug("Concealed lost RTP packets with silence")
		case delta > 1:
			s.logger.WithField("sequence", pkt.SequenceNumber).Info("RTP sequence jump, resynchronising")
		}
	}
	s.lastSeq = pkt.SequenceNumber
	s.lastLen = len(samples)
	s.packets.Add(1)
	s.framer.Push(samples)
}

// Stats returns packet counters: received, concealed as lost, discarded.
// It may be called while ReadFrame runs.
func (s *RTPSource) Stats() (packets, lost, discarded uint64) {
	return s.packets.Load(), s.lost.Load(), s.discarded.Load()
}

// SetUDPSocketBuffers sets optimal socket buffer sizes for RTP traffic.
// Uses SyscallConn().Control() instead of conn.File() to avoid putting the socket
// into blocking mode, which breaks SetReadDeadline.
func SetUDPSocketBuffers(conn *net.UDPConn, logger *logrus.Logger) {
	const readBufferSize = 16 * 1024 * 1024
	if err := conn.SetReadBuffer(readBufferSize); err != nil {
		logger.WithError(err).Warn("Failed to set UDP read buffer size, using system default")
	} else {
		logger.WithField("size_bytes", readBufferSize).Debug("Set UDP read buffer size")
	}

	const writeBufferSize = 1 * 1024 * 1024
	if err := conn.SetWriteBuffer(writeBufferSize); err != nil {
		logger.WithError(err).Warn("Failed to set UDP write buffer size, using system default")
	} else {
		logger.WithField("size_bytes", writeBufferSize).Debug("Set UDP write buffer size")
	}

	rawConn, err := conn.SyscallConn()
	if err == nil {
		_ = rawConn.Control(func(fd uintptr) {
			syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, readBufferSize)
			syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_SNDBUF, writeBufferSize)
		})
	}
}

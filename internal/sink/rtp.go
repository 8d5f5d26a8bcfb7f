package sink

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"github.com/smazurov/encbench/internal/codec"
)

const (
	defaultMTU         = 1200
	defaultPayloadType = 96
	videoClockRate     = 90000
)

// RTPConfig describes the outgoing RTP stream.
type RTPConfig struct {
	Mime        string
	SSRC        uint32
	PayloadType uint8
	MTU         uint16
	// ClockRate defaults to 90 kHz for video and the sample rate for audio.
	ClockRate uint32
}

// RTP packetizes drained output and writes each packet to w, typically a
// UDP socket. Codec config and end-of-stream buffers are not sent.
type RTP struct {
	mu         sync.Mutex
	w          io.Writer
	closer     io.Closer
	packetizer rtp.Packetizer
	clockRate  uint32
	lastPTS    int64
	started    bool
	packets    int64
	bytes      int64
}

// payloaderFor picks the RTP payload format for a mime type. Formats without
// a dedicated payloader are split into MTU-sized chunks.
func payloaderFor(mime string) rtp.Payloader {
	switch mime {
	case "video/avc":
		return &codecs.H264Payloader{}
	case "video/x-vnd.on2.vp8":
		return &codecs.VP8Payloader{}
	case "audio/opus":
		return &codecs.OpusPayloader{}
	default:
		return &codecs.G711Payloader{}
	}
}

// NewRTP builds a sink writing packets to w.
func NewRTP(w io.Writer, cfg RTPConfig) *RTP {
	if cfg.MTU == 0 {
		cfg.MTU = defaultMTU
	}
	if cfg.PayloadType == 0 {
		cfg.PayloadType = defaultPayloadType
	}
	if cfg.ClockRate == 0 {
		cfg.ClockRate = videoClockRate
	}

	s := &RTP{
		w:         w,
		clockRate: cfg.ClockRate,
		packetizer: rtp.NewPacketizer(cfg.MTU, cfg.PayloadType, cfg.SSRC,
			payloaderFor(cfg.Mime), rtp.NewRandomSequencer(), cfg.ClockRate),
	}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// DialRTP opens a UDP socket to addr and returns a sink sending to it.
func DialRTP(addr string, cfg RTPConfig) (*RTP, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve rtp address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial rtp: %w", err)
	}
	return NewRTP(conn, cfg), nil
}

func (s *RTP) WriteSample(payload []byte, info codec.BufferInfo) error {
	if len(payload) == 0 || info.Flags.Has(codec.FlagCodecConfig) {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The packetizer advances its timestamp after each call, so move it to
	// this sample's PTS first and packetize with no duration.
	if s.started && info.PresentationTimeUs > s.lastPTS {
		s.packetizer.SkipSamples(uint32((info.PresentationTimeUs - s.lastPTS) * int64(s.clockRate) / 1_000_000))
	}
	s.lastPTS = info.PresentationTimeUs
	s.started = true

	for _, pkt := range s.packetizer.Packetize(payload, 0) {
		raw, err := pkt.Marshal()
		if err != nil {
			return fmt.Errorf("marshal rtp packet: %w", err)
		}
		if _, err := s.w.Write(raw); err != nil {
			return fmt.Errorf("write rtp packet: %w", err)
		}
		s.packets++
		s.bytes += int64(len(raw))
	}
	return nil
}

// Stats returns packets and bytes sent so far.
func (s *RTP) Stats() (packets, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packets, s.bytes
}

func (s *RTP) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

package soft

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/smazurov/encbench/internal/codec"
)

// zstdMagic prefixes the codec config record: magic, width, height, level.
var zstdMagic = [4]byte{'E', 'B', 'Z', 'S'}

// zstdEngine compresses every frame independently, so each packet is a key frame.
type zstdEngine struct {
	enc   *zstd.Encoder
	geom  videoGeometry
	level zstd.EncoderLevel
}

// levelForProfile maps the configured profile onto a compression level.
// Profiles outside 1..4 use the library default.
func levelForProfile(profile int32) zstd.EncoderLevel {
	switch profile {
	case 1:
		return zstd.SpeedFastest
	case 2:
		return zstd.SpeedDefault
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func (e *zstdEngine) Configure(in *codec.Format) (*codec.Format, int, error) {
	if mime := in.Mime(); mime != MimeZstd {
		return nil, 0, fmt.Errorf("%w: %s", codec.ErrUnsupported, mime)
	}
	out, g, err := videoFormat(in, MimeZstd)
	if err != nil {
		return nil, 0, err
	}

	e.geom = g
	e.level = levelForProfile(in.Int32Or(codec.KeyProfile, 0))
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(e.level),
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("create zstd encoder: %w", err)
	}
	e.enc = enc

	out.SetInt32(codec.KeyProfile, int32(e.level))
	out.SetBytes(codec.KeyCSD, e.CodecConfig())
	return out, g.frameSize(), nil
}

func (e *zstdEngine) CodecConfig() []byte {
	csd := make([]byte, 0, 13)
	csd = append(csd, zstdMagic[:]...)
	csd = binary.BigEndian.AppendUint32(csd, uint32(e.geom.width))
	csd = binary.BigEndian.AppendUint32(csd, uint32(e.geom.height))
	return append(csd, byte(e.level))
}

func (e *zstdEngine) Encode(frame []byte, ptsUs int64) ([]Packet, error) {
	if e.enc == nil {
		return nil, fmt.Errorf("zstd engine not configured")
	}
	data := e.enc.EncodeAll(frame, make([]byte, 0, len(frame)/2))
	return []Packet{{Data: data, PTSUs: ptsUs, Flags: codec.FlagKeyFrame}}, nil
}

func (e *zstdEngine) Flush() ([]Packet, error) { return nil, nil }

func (e *zstdEngine) Close() error {
	if e.enc == nil {
		return nil
	}
	err := e.enc.Close()
	e.enc = nil
	return err
}

package soft

import (
	"fmt"

	"github.com/smazurov/encbench/internal/codec"
)

// Packet is one unit of engine output.
type Packet struct {
	Data  []byte
	PTSUs int64
	Flags codec.BufferFlags
}

// Engine performs the actual encoding for a Runtime. Engines are used from a
// single goroutine and may retain nothing from frame after Encode returns.
type Engine interface {
	// Configure validates the input format and returns the output format and
	// the input buffer size the engine needs per frame.
	Configure(in *codec.Format) (out *codec.Format, inputSize int, err error)
	// CodecConfig returns data to emit ahead of the first frame, or nil.
	CodecConfig() []byte
	Encode(frame []byte, ptsUs int64) ([]Packet, error)
	Flush() ([]Packet, error)
	Close() error
}

const (
	MimeRawVideo = "video/raw"
	MimeRawAudio = "audio/raw"
	MimeZstd     = "video/x-zstd"

	// audioSamplesPerFrame matches the chunking used for 16-bit PCM input.
	audioSamplesPerFrame = 4096
)

type videoGeometry struct {
	width, height int32
}

func (g videoGeometry) frameSize() int {
	return int(g.width) * int(g.height) * 3 / 2
}

func videoFormat(in *codec.Format, mime string) (*codec.Format, videoGeometry, error) {
	g := videoGeometry{
		width:  in.Int32Or(codec.KeyWidth, 0),
		height: in.Int32Or(codec.KeyHeight, 0),
	}
	if g.width <= 0 || g.height <= 0 {
		return nil, g, fmt.Errorf("%w: video requires positive width and height, got %dx%d",
			codec.ErrUnsupported, g.width, g.height)
	}

	out := codec.NewFormat(mime)
	out.SetInt32(codec.KeyWidth, g.width)
	out.SetInt32(codec.KeyHeight, g.height)
	for _, key := range []string{codec.KeyFrameRate, codec.KeyBitRate, codec.KeyColorFormat} {
		if v, ok := in.Int32(key); ok {
			out.SetInt32(key, v)
		}
	}
	return out, g, nil
}

// rawVideo passes planar YUV frames through unchanged.
type rawVideo struct{}

func (rawVideo) Configure(in *codec.Format) (*codec.Format, int, error) {
	if mime := in.Mime(); mime != MimeRawVideo {
		return nil, 0, fmt.Errorf("%w: %s", codec.ErrUnsupported, mime)
	}
	out, g, err := videoFormat(in, MimeRawVideo)
	if err != nil {
		return nil, 0, err
	}
	return out, g.frameSize(), nil
}

func (rawVideo) CodecConfig() []byte { return nil }

func (rawVideo) Encode(frame []byte, ptsUs int64) ([]Packet, error) {
	return []Packet{{Data: frame, PTSUs: ptsUs, Flags: codec.FlagKeyFrame}}, nil
}

func (rawVideo) Flush() ([]Packet, error) { return nil, nil }
func (rawVideo) Close() error             { return nil }

// rawAudio passes 16-bit PCM through unchanged.
type rawAudio struct{}

func (rawAudio) Configure(in *codec.Format) (*codec.Format, int, error) {
	if mime := in.Mime(); mime != MimeRawAudio {
		return nil, 0, fmt.Errorf("%w: %s", codec.ErrUnsupported, mime)
	}
	rate := in.Int32Or(codec.KeySampleRate, 0)
	channels := in.Int32Or(codec.KeyChannelCount, 0)
	if rate <= 0 || channels <= 0 {
		return nil, 0, fmt.Errorf("%w: audio requires sample rate and channel count, got %d/%d",
			codec.ErrUnsupported, rate, channels)
	}

	out := codec.NewFormat(MimeRawAudio)
	out.SetInt32(codec.KeySampleRate, rate)
	out.SetInt32(codec.KeyChannelCount, channels)
	if v, ok := in.Int32(codec.KeyBitRate); ok {
		out.SetInt32(codec.KeyBitRate, v)
	}
	return out, audioSamplesPerFrame * int(channels) * 2, nil
}

func (rawAudio) CodecConfig() []byte { return nil }

func (rawAudio) Encode(frame []byte, ptsUs int64) ([]Packet, error) {
	return []Packet{{Data: frame, PTSUs: ptsUs, Flags: codec.FlagKeyFrame}}, nil
}

func (rawAudio) Flush() ([]Packet, error) { return nil, nil }
func (rawAudio) Close() error             { return nil }

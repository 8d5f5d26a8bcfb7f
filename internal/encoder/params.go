package encoder

import (
	"github.com/smazurov/encbench/internal/codec"
)

// Unset marks a parameter the codec should choose itself.
const Unset int32 = -1

const (
	defaultFrameRate    = 30
	audioFrameSamples   = 4096
	bytesPerAudioSample = 2
)

// Params is the configuration record for one encode run. Zero and negative
// values are treated as unset.
type Params struct {
	Bitrate      int32 `toml:"bitrate" json:"bitrate" doc:"Target bitrate in bits per second"`
	NumFrames    int32 `toml:"num_frames" json:"num_frames" doc:"Frames to feed; derived from the input size when unset"`
	FrameSize    int32 `toml:"frame_size" json:"frame_size" doc:"Bytes per input frame; derived from the format when unset"`
	SampleRate   int32 `toml:"sample_rate" json:"sample_rate"`
	NumChannels  int32 `toml:"num_channels" json:"num_channels"`
	MaxFrameSize int32 `toml:"max_frame_size" json:"max_frame_size"`
	Width        int32 `toml:"width" json:"width"`
	Height       int32 `toml:"height" json:"height"`
	FrameRate    int32 `toml:"frame_rate" json:"frame_rate"`
	Profile      int32 `toml:"profile" json:"profile"`
	Level        int32 `toml:"level" json:"level"`
}

// DefaultParams returns a record with every codec-chosen field unset.
func DefaultParams() Params {
	return Params{
		Bitrate:      Unset,
		NumFrames:    Unset,
		FrameSize:    Unset,
		MaxFrameSize: Unset,
		FrameRate:    Unset,
	}
}

// Normalize maps zero values of the codec-chosen fields to Unset so that
// records decoded from files behave like DefaultParams.
func (p Params) Normalize() Params {
	for _, v := range []*int32{&p.Bitrate, &p.NumFrames, &p.FrameSize, &p.MaxFrameSize, &p.FrameRate} {
		if *v <= 0 {
			*v = Unset
		}
	}
	return p
}

func isSet(v int32) bool {
	return v > 0
}

// frameRate returns the configured frame rate or the default.
func (p Params) frameRate() int32 {
	if isSet(p.FrameRate) {
		return p.FrameRate
	}
	return defaultFrameRate
}

// Format builds the codec input format for mime, leaving unset fields out.
func (p Params) Format(mime string) *codec.Format {
	f := codec.NewFormat(mime)
	if codec.IsAudio(mime) {
		f.SetInt32(codec.KeySampleRate, p.SampleRate)
		f.SetInt32(codec.KeyChannelCount, p.NumChannels)
	} else {
		f.SetInt32(codec.KeyWidth, p.Width)
		f.SetInt32(codec.KeyHeight, p.Height)
		f.SetInt32(codec.KeyFrameRate, p.frameRate())
		f.SetInt32(codec.KeyIFrameInterval, 1)
		f.SetInt32(codec.KeyColorFormat, codec.ColorFormatYUV420Flexible)
		if isSet(p.Profile) && isSet(p.Level) {
			f.SetInt32(codec.KeyProfile, p.Profile)
			f.SetInt32(codec.KeyLevel, p.Level)
		}
	}
	if isSet(p.Bitrate) {
		f.SetInt32(codec.KeyBitRate, p.Bitrate)
	}
	if isSet(p.MaxFrameSize) {
		f.SetInt32(codec.KeyMaxInputSize, p.MaxFrameSize)
	}
	return f
}

// chunkSize derives the bytes fed per input buffer. An explicit FrameSize
// wins; audio chunks are clamped to the codec's max input size.
func (p Params) chunkSize(mime string, input *codec.Format) int {
	if isSet(p.FrameSize) {
		return int(p.FrameSize)
	}
	if codec.IsAudio(mime) {
		size := audioFrameSamples * int(p.NumChannels) * bytesPerAudioSample
		if input != nil {
			if maxIn, ok := input.Int32(codec.KeyMaxInputSize); ok && maxIn > 0 && int(maxIn) < size {
				size = int(maxIn)
			}
		}
		return size
	}
	return int(p.Width) * int(p.Height) * 3 / 2
}

// presentationTimeUs is the timestamp of input frame n.
func (p Params) presentationTimeUs(mime string, n int64, chunk int) int64 {
	if codec.IsAudio(mime) {
		bytesPerSecond := int64(p.SampleRate) * int64(p.NumChannels) * bytesPerAudioSample
		if bytesPerSecond <= 0 {
			return 0
		}
		return n * int64(chunk) * 1_000_000 / bytesPerSecond
	}
	return n * 1_000_000 / int64(p.frameRate())
}

// contentDurationUs is the media duration of bytesFed across framesFed frames.
func (p Params) contentDurationUs(mime string, framesFed, bytesFed int64) int64 {
	if codec.IsAudio(mime) {
		bytesPerSecond := int64(p.SampleRate) * int64(p.NumChannels) * bytesPerAudioSample
		if bytesPerSecond <= 0 {
			return 0
		}
		return bytesFed * 1_000_000 / bytesPerSecond
	}
	return framesFed * 1_000_000 / int64(p.frameRate())
}

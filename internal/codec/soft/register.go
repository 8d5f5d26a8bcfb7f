package soft

import (
	"errors"

	"github.com/smazurov/encbench/internal/codec"
)

const (
	NameRawVideo = "c2.soft.raw.video.encoder"
	NameRawAudio = "c2.soft.raw.audio.encoder"
	NameZstd     = "c2.soft.zstd.encoder"
)

// Codecs lists the software codecs and their engines.
func Codecs() []codec.Info {
	return []codec.Info{
		{Name: NameRawVideo, Mime: MimeRawVideo, Description: "YUV 4:2:0 passthrough"},
		{Name: NameRawAudio, Mime: MimeRawAudio, Description: "16-bit PCM passthrough"},
		{Name: NameZstd, Mime: MimeZstd, Description: "Per-frame zstd compression; profile 1-4 selects speed"},
	}
}

func engineFor(name string) func() Engine {
	switch name {
	case NameRawVideo:
		return func() Engine { return rawVideo{} }
	case NameRawAudio:
		return func() Engine { return rawAudio{} }
	case NameZstd:
		return func() Engine { return &zstdEngine{} }
	default:
		return nil
	}
}

// Register adds every software codec to r.
func Register(r *codec.Registry, opts ...Option) error {
	var errs []error
	for _, info := range Codecs() {
		newEngine := engineFor(info.Name)
		errs = append(errs, r.Register(info, func() (codec.Codec, error) {
			return New(info.Name, newEngine, opts...), nil
		}))
	}
	return errors.Join(errs...)
}

// NewRegistry returns a registry holding the software codecs.
func NewRegistry(opts ...Option) *codec.Registry {
	r := codec.NewRegistry()
	if err := Register(r, opts...); err != nil {
		panic(err)
	}
	return r
}

package codec

import (
	"errors"
	"time"
)

// BufferFlags describe an input or output buffer.
type BufferFlags uint32

const (
	FlagKeyFrame    BufferFlags = 1 << 0
	FlagCodecConfig BufferFlags = 1 << 1
	FlagEndOfStream BufferFlags = 1 << 2
)

// Has reports whether all bits of f are set.
func (b BufferFlags) Has(f BufferFlags) bool {
	return b&f == f
}

// BufferInfo is the metadata attached to a dequeued output buffer.
type BufferInfo struct {
	Offset             int         `json:"offset"`
	Size               int         `json:"size"`
	PresentationTimeUs int64       `json:"presentation_time_us"`
	Flags              BufferFlags `json:"flags"`
}

// EndOfStream reports whether the buffer carries the EOS flag.
func (i BufferInfo) EndOfStream() bool {
	return i.Flags.Has(FlagEndOfStream)
}

var (
	// ErrTryAgainLater is returned by a bounded dequeue that found no buffer.
	ErrTryAgainLater = errors.New("codec: try again later")
	// ErrOutputFormatChanged is returned once by DequeueOutputBuffer before the
	// first output buffer; OutputFormat then holds the new format.
	ErrOutputFormatChanged = errors.New("codec: output format changed")
	ErrInvalidState        = errors.New("codec: invalid state")
	ErrInvalidIndex        = errors.New("codec: invalid buffer index")
	ErrCodecNotFound       = errors.New("codec: not found")
	ErrUnsupported         = errors.New("codec: unsupported format")
)

// Callback receives asynchronous events from a codec. A codec started with a
// callback set delivers events from its own goroutine, never concurrently with
// each other, and the dequeue methods are unavailable.
//
// Implementations must return quickly; heavy work stalls the dispatcher.
type Callback interface {
	OnInputAvailable(c Codec, index int)
	OnFormatChanged(c Codec, format *Format)
	OnOutputAvailable(c Codec, index int, info BufferInfo)
	OnError(c Codec, err error)
}

// Codec is an encoder instance driven through buffer exchange.
//
// Lifecycle: Configure, optional SetCallback, Start, buffer exchange, Stop,
// Release. Stop returns the codec to the configured-less state; Release
// frees it and may be called in any state, more than once.
//
// Dequeue timeouts: zero polls once, negative waits forever.
type Codec interface {
	Name() string
	Configure(format *Format) error
	// SetCallback switches the codec into asynchronous mode. Must be called
	// after Configure and before Start.
	SetCallback(cb Callback) error
	Start() error
	Stop() error
	Release()

	InputFormat() *Format
	OutputFormat() *Format

	DequeueInputBuffer(timeout time.Duration) (int, error)
	// InputBuffer returns the full-capacity slice of an owned input buffer.
	InputBuffer(index int) ([]byte, error)
	QueueInputBuffer(index, offset, size int, ptsUs int64, flags BufferFlags) error

	DequeueOutputBuffer(timeout time.Duration) (int, BufferInfo, error)
	// OutputBuffer returns the slice of an owned output buffer; valid until release.
	OutputBuffer(index int) ([]byte, error)
	ReleaseOutputBuffer(index int) error
}

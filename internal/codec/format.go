package codec

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Well-known format keys.
const (
	KeyMime           = "mime"
	KeyWidth          = "width"
	KeyHeight         = "height"
	KeyFrameRate      = "frame-rate"
	KeyBitRate        = "bitrate"
	KeySampleRate     = "sample-rate"
	KeyChannelCount   = "channel-count"
	KeyMaxInputSize   = "max-input-size"
	KeyProfile        = "profile"
	KeyLevel          = "level"
	KeyIFrameInterval = "i-frame-interval"
	KeyColorFormat    = "color-format"
	KeyCSD            = "csd-0"
)

// ColorFormatYUV420Flexible is the only raw video layout the harness feeds.
const ColorFormatYUV420Flexible = 0x7F420888

// Format is a key/value description of a stream. It is safe for concurrent use;
// codecs mutate their output format while callers read it.
type Format struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewFormat returns a format with only the mime type set.
func NewFormat(mime string) *Format {
	f := &Format{values: make(map[string]any)}
	f.SetString(KeyMime, mime)
	return f
}

func (f *Format) set(key string, v any) {
	f.mu.Lock()
	if f.values == nil {
		f.values = make(map[string]any)
	}
	f.values[key] = v
	f.mu.Unlock()
}

func (f *Format) get(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[key]
	return v, ok
}

func (f *Format) SetInt32(key string, v int32)  { f.set(key, v) }
func (f *Format) SetString(key, v string)       { f.set(key, v) }
func (f *Format) SetBytes(key string, v []byte) { f.set(key, slices.Clone(v)) }

// Int32 returns the value of key if it is present and an int32.
func (f *Format) Int32(key string) (int32, bool) {
	v, ok := f.get(key)
	if !ok {
		return 0, false
	}
	i, ok := v.(int32)
	return i, ok
}

// Int32Or returns the value of key or def.
func (f *Format) Int32Or(key string, def int32) int32 {
	if v, ok := f.Int32(key); ok {
		return v
	}
	return def
}

func (f *Format) String(key string) (string, bool) {
	v, ok := f.get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (f *Format) Bytes(key string) ([]byte, bool) {
	v, ok := f.get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	return slices.Clone(b), ok
}

// Mime returns the mime type, or "" if unset.
func (f *Format) Mime() string {
	s, _ := f.String(KeyMime)
	return s
}

// Has reports whether key is present.
func (f *Format) Has(key string) bool {
	_, ok := f.get(key)
	return ok
}

// Keys returns the set keys in sorted order.
func (f *Format) Keys() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Sorted(maps.Keys(f.values))
}

// Clone returns a deep copy.
func (f *Format) Clone() *Format {
	f.mu.RLock()
	defer f.mu.RUnlock()
	c := &Format{values: make(map[string]any, len(f.values))}
	for k, v := range f.values {
		if b, ok := v.([]byte); ok {
			v = slices.Clone(b)
		}
		c.values[k] = v
	}
	return c
}

// Map flattens the format for logging and JSON output. Byte values are
// reported by length.
func (f *Format) Map() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m := make(map[string]string, len(f.values))
	for k, v := range f.values {
		if b, ok := v.([]byte); ok {
			m[k] = fmt.Sprintf("<%d bytes>", len(b))
			continue
		}
		m[k] = fmt.Sprint(v)
	}
	return m
}

// Describe renders the format as "key=value" pairs in key order.
func (f *Format) Describe() string {
	m := f.Map()
	parts := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		parts = append(parts, k+"="+m[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// IsVideo reports whether the mime type is a video type.
func IsVideo(mime string) bool {
	return strings.HasPrefix(mime, "video/")
}

// IsAudio reports whether the mime type is an audio type.
func IsAudio(mime string) bool {
	return strings.HasPrefix(mime, "audio/")
}

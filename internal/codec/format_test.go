package codec

import "testing"

func TestFormatTypedAccess(t *testing.T) {
	f := NewFormat("video/avc")
	f.SetInt32(KeyWidth, 352)
	f.SetString(KeyProfile, "baseline")

	if f.Mime() != "video/avc" {
		t.Errorf("Mime() = %q", f.Mime())
	}
	if w, ok := f.Int32(KeyWidth); !ok || w != 352 {
		t.Errorf("Int32(width) = %d, %v", w, ok)
	}
	// Wrong type is reported as missing.
	if _, ok := f.Int32(KeyProfile); ok {
		t.Error("Int32 on a string value should fail")
	}
	if got := f.Int32Or(KeyHeight, 288); got != 288 {
		t.Errorf("Int32Or default = %d, want 288", got)
	}
}

func TestFormatCloneIsDeep(t *testing.T) {
	f := NewFormat("video/x-zstd")
	csd := []byte{1, 2, 3}
	f.SetBytes(KeyCSD, csd)
	csd[0] = 9

	c := f.Clone()
	c.SetInt32(KeyWidth, 10)

	if f.Has(KeyWidth) {
		t.Error("mutating the clone changed the original")
	}
	b, _ := c.Bytes(KeyCSD)
	if b[0] != 1 {
		t.Errorf("csd[0] = %d, want 1 (SetBytes must copy)", b[0])
	}
}

func TestFormatDescribe(t *testing.T) {
	f := NewFormat("audio/raw")
	f.SetInt32(KeySampleRate, 48000)
	f.SetBytes(KeyCSD, []byte{0, 0})

	want := "{channel-count=2, csd-0=<2 bytes>, mime=audio/raw, sample-rate=48000}"
	f.SetInt32(KeyChannelCount, 2)
	if got := f.Describe(); got != want {
		t.Errorf("Describe() = %s, want %s", got, want)
	}
}

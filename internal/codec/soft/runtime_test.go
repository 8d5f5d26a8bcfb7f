package soft

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/smazurov/encbench/internal/codec"
)

const testTimeout = 2 * time.Second

func videoFormatFor(mime string, w, h int32) *codec.Format {
	f := codec.NewFormat(mime)
	f.SetInt32(codec.KeyWidth, w)
	f.SetInt32(codec.KeyHeight, h)
	f.SetInt32(codec.KeyFrameRate, 30)
	return f
}

func makeFrames(n, size int) [][]byte {
	frames := make([][]byte, n)
	for i := range frames {
		frames[i] = bytes.Repeat([]byte{byte(i + 1)}, size)
	}
	return frames
}

type output struct {
	info    codec.BufferInfo
	payload []byte
}

// drainSync pulls every ready output without waiting, or until EOS when wait is set.
func drainSync(t *testing.T, c codec.Codec, wait bool, outs []output) ([]output, bool) {
	t.Helper()
	timeout := time.Duration(0)
	if wait {
		timeout = testTimeout
	}
	for {
		idx, info, err := c.DequeueOutputBuffer(timeout)
		switch {
		case errors.Is(err, codec.ErrTryAgainLater):
			if wait {
				t.Fatal("timed out waiting for output")
			}
			return outs, false
		case errors.Is(err, codec.ErrOutputFormatChanged):
			continue
		case err != nil:
			t.Fatalf("DequeueOutputBuffer() error = %v", err)
		}
		data, err := c.OutputBuffer(idx)
		if err != nil {
			t.Fatalf("OutputBuffer(%d) error = %v", idx, err)
		}
		outs = append(outs, output{info: info, payload: bytes.Clone(data[info.Offset : info.Offset+info.Size])})
		if err := c.ReleaseOutputBuffer(idx); err != nil {
			t.Fatalf("ReleaseOutputBuffer(%d) error = %v", idx, err)
		}
		if info.EndOfStream() {
			return outs, true
		}
	}
}

func runSync(t *testing.T, c codec.Codec, frames [][]byte) []output {
	t.Helper()
	var outs []output
	for i, frame := range append(frames, nil) {
		idx, err := c.DequeueInputBuffer(testTimeout)
		if err != nil {
			t.Fatalf("DequeueInputBuffer() error = %v", err)
		}
		buf, err := c.InputBuffer(idx)
		if err != nil {
			t.Fatalf("InputBuffer(%d) error = %v", idx, err)
		}
		n := copy(buf, frame)
		var flags codec.BufferFlags
		if frame == nil {
			flags = codec.FlagEndOfStream
		}
		if err := c.QueueInputBuffer(idx, 0, n, int64(i)*33333, flags); err != nil {
			t.Fatalf("QueueInputBuffer() error = %v", err)
		}
		outs, _ = drainSync(t, c, false, outs)
	}
	outs, _ = drainSync(t, c, true, outs)
	return outs
}

func TestRuntimeSyncPassthrough(t *testing.T) {
	r := New(NameRawVideo, engineFor(NameRawVideo))
	defer r.Release()

	if err := r.Configure(videoFormatFor(MimeRawVideo, 4, 4)); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if got := r.InputFormat().Int32Or(codec.KeyMaxInputSize, 0); got != 24 {
		t.Errorf("max-input-size = %d, want 24", got)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	frames := makeFrames(6, 24)
	outs := runSync(t, r, frames)

	if len(outs) != len(frames)+1 {
		t.Fatalf("got %d outputs, want %d", len(outs), len(frames)+1)
	}
	for i, frame := range frames {
		if !bytes.Equal(outs[i].payload, frame) {
			t.Errorf("output %d payload mismatch", i)
		}
		if outs[i].info.PresentationTimeUs != int64(i)*33333 {
			t.Errorf("output %d pts = %d", i, outs[i].info.PresentationTimeUs)
		}
	}
	last := outs[len(outs)-1]
	if !last.info.EndOfStream() || last.info.Size != 0 {
		t.Errorf("last output = %+v, want empty EOS", last.info)
	}
}

func TestRuntimeSyncEmptyStream(t *testing.T) {
	r := New(NameRawAudio, engineFor(NameRawAudio))
	defer r.Release()

	f := codec.NewFormat(MimeRawAudio)
	f.SetInt32(codec.KeySampleRate, 48000)
	f.SetInt32(codec.KeyChannelCount, 2)
	if err := r.Configure(f); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	outs := runSync(t, r, nil)
	if len(outs) != 1 || !outs[0].info.EndOfStream() {
		t.Fatalf("outputs = %+v, want a single EOS", outs)
	}
}

func TestRuntimeDequeueTimeout(t *testing.T) {
	r := New(NameRawVideo, engineFor(NameRawVideo), WithBufferCount(1, 1))
	defer r.Release()
	if err := r.Configure(videoFormatFor(MimeRawVideo, 2, 2)); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	if _, _, err := r.DequeueOutputBuffer(0); !errors.Is(err, codec.ErrTryAgainLater) {
		t.Errorf("poll on empty output = %v, want ErrTryAgainLater", err)
	}

	idx, err := r.DequeueInputBuffer(0)
	if err != nil {
		t.Fatalf("DequeueInputBuffer() error = %v", err)
	}
	start := time.Now()
	if _, err := r.DequeueInputBuffer(20 * time.Millisecond); !errors.Is(err, codec.ErrTryAgainLater) {
		t.Errorf("second dequeue = %v, want ErrTryAgainLater", err)
	}
	if waited := time.Since(start); waited < 20*time.Millisecond {
		t.Errorf("bounded wait returned after %v", waited)
	}
	if err := r.QueueInputBuffer(idx, 0, 7, 0, 0); !errors.Is(err, codec.ErrInvalidIndex) {
		t.Errorf("oversized queue = %v, want ErrInvalidIndex", err)
	}
}

type recorder struct {
	frames    [][]byte
	next      int
	eosQueued bool
	formats   []*codec.Format
	outs      []output
	err       error
	once      sync.Once
	done      chan struct{}
}

func newRecorder(frames [][]byte) *recorder {
	return &recorder{frames: frames, done: make(chan struct{})}
}

func (rc *recorder) OnInputAvailable(c codec.Codec, index int) {
	if rc.eosQueued {
		return
	}
	buf, _ := c.InputBuffer(index)
	if rc.next == len(rc.frames) {
		rc.eosQueued = true
		_ = c.QueueInputBuffer(index, 0, 0, 0, codec.FlagEndOfStream)
		return
	}
	n := copy(buf, rc.frames[rc.next])
	_ = c.QueueInputBuffer(index, 0, n, int64(rc.next), 0)
	rc.next++
}

func (rc *recorder) OnFormatChanged(_ codec.Codec, format *codec.Format) {
	rc.formats = append(rc.formats, format)
}

func (rc *recorder) OnOutputAvailable(c codec.Codec, index int, info codec.BufferInfo) {
	data, _ := c.OutputBuffer(index)
	rc.outs = append(rc.outs, output{info: info, payload: bytes.Clone(data[:info.Size])})
	_ = c.ReleaseOutputBuffer(index)
	if info.EndOfStream() {
		rc.once.Do(func() { close(rc.done) })
	}
}

func (rc *recorder) OnError(_ codec.Codec, err error) {
	rc.err = err
	rc.once.Do(func() { close(rc.done) })
}

func (rc *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-rc.done:
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for async completion")
	}
}

func TestRuntimeAsyncZstd(t *testing.T) {
	r := New(NameZstd, engineFor(NameZstd), WithBufferCount(2, 2))
	defer r.Release()

	f := videoFormatFor(MimeZstd, 8, 8)
	f.SetInt32(codec.KeyProfile, 1)
	if err := r.Configure(f); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	frames := makeFrames(5, 96)
	rc := newRecorder(frames)
	if err := r.SetCallback(rc); err != nil {
		t.Fatalf("SetCallback() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := r.DequeueInputBuffer(0); !errors.Is(err, codec.ErrInvalidState) {
		t.Errorf("sync dequeue in async mode = %v, want ErrInvalidState", err)
	}
	rc.wait(t)
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if rc.err != nil {
		t.Fatalf("OnError(%v)", rc.err)
	}
	if len(rc.formats) != 1 {
		t.Fatalf("format changed %d times, want 1", len(rc.formats))
	}
	if _, ok := rc.formats[0].Bytes(codec.KeyCSD); !ok {
		t.Error("output format has no codec config")
	}

	// codec config + frames + EOS
	if len(rc.outs) != len(frames)+2 {
		t.Fatalf("got %d outputs, want %d", len(rc.outs), len(frames)+2)
	}
	if !rc.outs[0].info.Flags.Has(codec.FlagCodecConfig) {
		t.Errorf("first output flags = %v, want codec config", rc.outs[0].info.Flags)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	for i, frame := range frames {
		got, err := dec.DecodeAll(rc.outs[i+1].payload, nil)
		if err != nil {
			t.Fatalf("decode output %d: %v", i, err)
		}
		if !bytes.Equal(got, frame) {
			t.Errorf("output %d does not decode to its input", i)
		}
	}
}

type failingEngine struct{ rawVideo }

var errEngine = errors.New("engine exploded")

func (failingEngine) Encode([]byte, int64) ([]Packet, error) { return nil, errEngine }

func TestRuntimeEngineErrorAsync(t *testing.T) {
	r := New("c2.test.failing", func() Engine { return failingEngine{} })
	defer r.Release()
	if err := r.Configure(videoFormatFor(MimeRawVideo, 2, 2)); err != nil {
		t.Fatal(err)
	}
	rc := newRecorder(makeFrames(3, 6))
	if err := r.SetCallback(rc); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}
	rc.wait(t)
	_ = r.Stop()

	if !errors.Is(rc.err, errEngine) {
		t.Errorf("OnError(%v), want engine error", rc.err)
	}
}

func TestRuntimeEngineErrorSync(t *testing.T) {
	r := New("c2.test.failing", func() Engine { return failingEngine{} })
	defer r.Release()
	if err := r.Configure(videoFormatFor(MimeRawVideo, 2, 2)); err != nil {
		t.Fatal(err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	idx, err := r.DequeueInputBuffer(testTimeout)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.QueueInputBuffer(idx, 0, 6, 0, 0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := r.DequeueOutputBuffer(testTimeout); !errors.Is(err, errEngine) {
		t.Errorf("DequeueOutputBuffer() error = %v, want engine error", err)
	}
}

func TestRuntimeLifecycle(t *testing.T) {
	r := New(NameRawVideo, engineFor(NameRawVideo))

	if err := r.Start(); !errors.Is(err, codec.ErrInvalidState) {
		t.Errorf("Start before Configure = %v, want ErrInvalidState", err)
	}
	if err := r.Configure(codec.NewFormat(MimeRawVideo)); !errors.Is(err, codec.ErrUnsupported) {
		t.Errorf("Configure without geometry = %v, want ErrUnsupported", err)
	}
	if err := r.Configure(videoFormatFor(MimeRawVideo, 2, 2)); err != nil {
		t.Fatal(err)
	}
	if err := r.Configure(videoFormatFor(MimeRawVideo, 2, 2)); !errors.Is(err, codec.ErrInvalidState) {
		t.Errorf("second Configure = %v, want ErrInvalidState", err)
	}
	if err := r.Start(); err != nil {
		t.Fatal(err)
	}

	r.Release()
	r.Release()
	if err := r.Stop(); !errors.Is(err, codec.ErrInvalidState) {
		t.Errorf("Stop after Release = %v, want ErrInvalidState", err)
	}
}

func TestRegisterSoftCodecs(t *testing.T) {
	reg := NewRegistry()
	for _, info := range Codecs() {
		c, err := reg.CreateByType(info.Mime)
		if err != nil {
			t.Fatalf("CreateByType(%s) error = %v", info.Mime, err)
		}
		if c.Name() != info.Name {
			t.Errorf("CreateByType(%s) = %s, want %s", info.Mime, c.Name(), info.Name)
		}
		c.Release()
	}
}

func TestLevelForProfile(t *testing.T) {
	tests := []struct {
		profile int32
		want    zstd.EncoderLevel
	}{
		{-1, zstd.SpeedDefault},
		{0, zstd.SpeedDefault},
		{1, zstd.SpeedFastest},
		{3, zstd.SpeedBetterCompression},
		{4, zstd.SpeedBestCompression},
		{9, zstd.SpeedDefault},
	}
	for _, tt := range tests {
		if got := levelForProfile(tt.profile); got != tt.want {
			t.Errorf("levelForProfile(%d) = %v, want %v", tt.profile, got, tt.want)
		}
	}
}

package encoder

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"github.com/smazurov/encbench/internal/codec"
)

var errFake = errors.New("fake codec failure")

type queuedFrame struct {
	data  []byte
	pts   int64
	flags codec.BufferFlags
}

// fakeCodec is a scripted codec with one input and one output buffer. Each
// data input yields perInput output buffers; the EOS input yields an EOS
// output unless noEOS is set. With eosInline the EOS output is delivered from
// another goroutine before QueueInputBuffer returns.
type fakeCodec struct {
	name         string
	bufSize      int
	perInput     int
	noEOS        bool
	earlyEOS     bool
	duplicate    bool
	eosInline    bool
	failOnInput  int
	configureErr error
	releaseErr   error

	mu         sync.Mutex
	cb         codec.Callback
	inBuf      []byte
	outBuf     []byte
	inOwned    bool
	queued     []queuedFrame
	ready      []codec.BufferInfo
	formatSent bool
	err        error
	errSent    bool
	releases   int
	stopCalls  int
	relCalls   int
	stopOnce   sync.Once
	stop       chan struct{}
	wg         sync.WaitGroup
}

func newFakeCodec(bufSize, perInput int) *fakeCodec {
	return &fakeCodec{
		name:     "c2.fake.encoder",
		bufSize:  bufSize,
		perInput: perInput,
		stop:     make(chan struct{}),
	}
}

func (f *fakeCodec) Name() string { return f.name }

func (f *fakeCodec) Configure(*codec.Format) error {
	if f.configureErr != nil {
		return f.configureErr
	}
	f.inBuf = make([]byte, f.bufSize)
	f.outBuf = bytes.Repeat([]byte{0xAB}, 64)
	return nil
}

func (f *fakeCodec) SetCallback(cb codec.Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cb = cb
	return nil
}

func (f *fakeCodec) Start() error {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		f.wg.Add(1)
		go f.dispatch(cb)
	}
	return nil
}

func (f *fakeCodec) Stop() error {
	f.stopOnce.Do(func() { close(f.stop) })
	f.wg.Wait()
	f.mu.Lock()
	f.stopCalls++
	f.mu.Unlock()
	return nil
}

func (f *fakeCodec) Release() {
	f.mu.Lock()
	f.relCalls++
	f.mu.Unlock()
}

func (f *fakeCodec) InputFormat() *codec.Format {
	format := codec.NewFormat("video/raw")
	format.SetInt32(codec.KeyMaxInputSize, int32(f.bufSize))
	return format
}

func (f *fakeCodec) OutputFormat() *codec.Format {
	return codec.NewFormat("video/fake")
}

func (f *fakeCodec) DequeueInputBuffer(timeout time.Duration) (int, error) {
	f.mu.Lock()
	if f.err != nil {
		defer f.mu.Unlock()
		return -1, f.err
	}
	if f.inOwned {
		f.mu.Unlock()
		time.Sleep(timeout)
		return -1, codec.ErrTryAgainLater
	}
	f.inOwned = true
	f.mu.Unlock()
	return 0, nil
}

func (f *fakeCodec) InputBuffer(index int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if index != 0 || !f.inOwned {
		return nil, codec.ErrInvalidIndex
	}
	return f.inBuf, nil
}

func (f *fakeCodec) QueueInputBuffer(index, offset, size int, ptsUs int64, flags codec.BufferFlags) error {
	f.mu.Lock()
	if index != 0 || !f.inOwned {
		f.mu.Unlock()
		return codec.ErrInvalidIndex
	}
	f.inOwned = false
	f.queued = append(f.queued, queuedFrame{
		data:  bytes.Clone(f.inBuf[offset : offset+size]),
		pts:   ptsUs,
		flags: flags,
	})

	n := len(f.queued)
	switch {
	case f.failOnInput > 0 && n == f.failOnInput:
		f.err = errFake
	case flags.Has(codec.FlagEndOfStream) && f.eosInline && f.cb != nil:
		cb := f.cb
		f.mu.Unlock()
		delivered := make(chan struct{})
		go func() {
			defer close(delivered)
			cb.OnOutputAvailable(f, 0, codec.BufferInfo{PresentationTimeUs: ptsUs, Flags: codec.FlagEndOfStream})
		}()
		<-delivered
		return nil
	case flags.Has(codec.FlagEndOfStream):
		if !f.noEOS {
			f.ready = append(f.ready, codec.BufferInfo{PresentationTimeUs: ptsUs, Flags: codec.FlagEndOfStream})
		}
		if f.duplicate {
			f.ready = append(f.ready, codec.BufferInfo{Size: 4, PresentationTimeUs: ptsUs})
		}
	default:
		for range f.perInput {
			f.ready = append(f.ready, codec.BufferInfo{Size: 8, PresentationTimeUs: ptsUs, Flags: codec.FlagKeyFrame})
		}
		if f.earlyEOS && n == 1 {
			f.ready = append(f.ready, codec.BufferInfo{Flags: codec.FlagEndOfStream})
		}
	}
	f.mu.Unlock()
	return nil
}

func (f *fakeCodec) DequeueOutputBuffer(timeout time.Duration) (int, codec.BufferInfo, error) {
	f.mu.Lock()
	if f.err != nil {
		defer f.mu.Unlock()
		return -1, codec.BufferInfo{}, f.err
	}
	if len(f.ready) == 0 {
		f.mu.Unlock()
		time.Sleep(timeout)
		return -1, codec.BufferInfo{}, codec.ErrTryAgainLater
	}
	defer f.mu.Unlock()
	if !f.formatSent {
		f.formatSent = true
		return -1, codec.BufferInfo{}, codec.ErrOutputFormatChanged
	}
	info := f.ready[0]
	f.ready = f.ready[1:]
	return 0, info, nil
}

func (f *fakeCodec) OutputBuffer(index int) ([]byte, error) {
	if index != 0 {
		return nil, codec.ErrInvalidIndex
	}
	return f.outBuf, nil
}

func (f *fakeCodec) ReleaseOutputBuffer(int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return f.releaseErr
}

// fail injects a codec error from outside the dispatch goroutine.
func (f *fakeCodec) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeCodec) snapshot() (queued []queuedFrame, releases, stopCalls, relCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queuedFrame(nil), f.queued...), f.releases, f.stopCalls, f.relCalls
}

// dispatch delivers callbacks one at a time: error, format, output, input.
func (f *fakeCodec) dispatch(cb codec.Callback) {
	defer f.wg.Done()
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		f.mu.Lock()
		switch {
		case f.err != nil && !f.errSent:
			f.errSent = true
			err := f.err
			f.mu.Unlock()
			cb.OnError(f, err)
		case f.err == nil && len(f.ready) > 0 && !f.formatSent:
			f.formatSent = true
			f.mu.Unlock()
			cb.OnFormatChanged(f, f.OutputFormat())
		case f.err == nil && len(f.ready) > 0:
			info := f.ready[0]
			f.ready = f.ready[1:]
			f.mu.Unlock()
			cb.OnOutputAvailable(f, 0, info)
		case f.err == nil && !f.inOwned && !f.eosQueuedLocked():
			f.inOwned = true
			f.mu.Unlock()
			cb.OnInputAvailable(f, 0)
		default:
			f.mu.Unlock()
			select {
			case <-f.stop:
				return
			case <-time.After(time.Millisecond):
			}
		}
	}
}

func (f *fakeCodec) eosQueuedLocked() bool {
	n := len(f.queued)
	return n > 0 && f.queued[n-1].flags.Has(codec.FlagEndOfStream)
}

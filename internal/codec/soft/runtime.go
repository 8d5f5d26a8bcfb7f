package soft

import (
	"fmt"
	"sync"
	"time"

	"github.com/smazurov/encbench/internal/codec"
	"github.com/smazurov/encbench/internal/logging"
)

const (
	defaultInputBuffers  = 4
	defaultOutputBuffers = 4
)

type runtimeState int

const (
	stateUninitialized runtimeState = iota
	stateConfigured
	stateRunning
	stateReleased
)

func (s runtimeState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateConfigured:
		return "configured"
	case stateRunning:
		return "running"
	case stateReleased:
		return "released"
	default:
		return "unknown"
	}
}

type buffer struct {
	data  []byte
	owned bool
}

type queuedInput struct {
	index  int
	offset int
	size   int
	ptsUs  int64
	flags  codec.BufferFlags
}

type readyOutput struct {
	index int
	info  codec.BufferInfo
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithBufferCount sets the number of input and output buffers.
func WithBufferCount(inputs, outputs int) Option {
	return func(r *Runtime) {
		if inputs > 0 {
			r.numInputs = inputs
		}
		if outputs > 0 {
			r.numOutputs = outputs
		}
	}
}

// WithLogger overrides the runtime logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runtime is a software codec.Codec. An encode worker goroutine moves queued
// input through the Engine into output buffers; in asynchronous mode a second
// goroutine delivers callbacks one at a time.
type Runtime struct {
	name       string
	newEngine  func() Engine
	numInputs  int
	numOutputs int
	logger     logging.Logger

	mu       sync.Mutex
	cond     *sync.Cond
	state    runtimeState
	gen      uint64
	wg       sync.WaitGroup
	engine   Engine
	callback codec.Callback

	inFormat  *codec.Format
	outFormat *codec.Format

	inputs       []*buffer
	outputs      []*buffer
	freeInputs   []int
	queued       []queuedInput
	freeOutputs  []int
	ready        []readyOutput
	csdSent      bool
	formatSent   bool
	inputEOS     bool
	outputEOS    bool
	err          error
	errDelivered bool
}

// New creates a runtime around an engine constructor.
func New(name string, newEngine func() Engine, opts ...Option) *Runtime {
	r := &Runtime{
		name:       name,
		newEngine:  newEngine,
		numInputs:  defaultInputBuffers,
		numOutputs: defaultOutputBuffers,
		logger:     logging.GetLogger("codec").With("codec", name),
	}
	r.cond = sync.NewCond(&r.mu)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) Name() string { return r.name }

// Configure validates the format with a fresh engine and allocates buffers.
func (r *Runtime) Configure(format *codec.Format) error {
	if format == nil {
		return fmt.Errorf("%s: nil format", r.name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateUninitialized {
		return fmt.Errorf("%s: configure in state %s: %w", r.name, r.state, codec.ErrInvalidState)
	}

	engine := r.newEngine()
	out, inputSize, err := engine.Configure(format)
	if err != nil {
		_ = engine.Close()
		return fmt.Errorf("%s: %w", r.name, err)
	}
	if maxIn, ok := format.Int32(codec.KeyMaxInputSize); ok && int(maxIn) > inputSize {
		inputSize = int(maxIn)
	}

	r.engine = engine
	r.inFormat = format.Clone()
	r.inFormat.SetInt32(codec.KeyMaxInputSize, int32(inputSize))
	r.outFormat = out

	r.inputs = make([]*buffer, r.numInputs)
	for i := range r.inputs {
		r.inputs[i] = &buffer{data: make([]byte, inputSize)}
	}
	r.outputs = make([]*buffer, r.numOutputs)
	for i := range r.outputs {
		r.outputs[i] = &buffer{data: make([]byte, inputSize)}
	}

	r.state = stateConfigured
	r.logger.Debug("Configured", "format", format.Describe(), "input_size", inputSize)
	return nil
}

func (r *Runtime) SetCallback(cb codec.Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateConfigured {
		return fmt.Errorf("%s: set callback in state %s: %w", r.name, r.state, codec.ErrInvalidState)
	}
	r.callback = cb
	return nil
}

// Start launches the encode worker and, with a callback set, the dispatcher.
func (r *Runtime) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateConfigured {
		return fmt.Errorf("%s: start in state %s: %w", r.name, r.state, codec.ErrInvalidState)
	}

	r.gen++
	r.freeInputs = r.freeInputs[:0]
	for i, b := range r.inputs {
		b.owned = false
		r.freeInputs = append(r.freeInputs, i)
	}
	r.freeOutputs = r.freeOutputs[:0]
	for i, b := range r.outputs {
		b.owned = false
		r.freeOutputs = append(r.freeOutputs, i)
	}
	r.queued = nil
	r.ready = nil
	r.csdSent, r.formatSent = false, false
	r.inputEOS, r.outputEOS = false, false
	r.err, r.errDelivered = nil, false
	r.state = stateRunning

	gen := r.gen
	r.wg.Add(1)
	go r.encodeLoop(gen, r.engine)
	if r.callback != nil {
		r.wg.Add(1)
		go r.dispatchLoop(gen, r.callback)
	}
	r.logger.Debug("Started", "async", r.callback != nil)
	return nil
}

// Stop halts the goroutines and returns the codec to the uninitialized state.
// It must not be called from inside a callback.
func (r *Runtime) Stop() error {
	r.mu.Lock()
	if r.state != stateRunning && r.state != stateConfigured {
		st := r.state
		r.mu.Unlock()
		return fmt.Errorf("%s: stop in state %s: %w", r.name, st, codec.ErrInvalidState)
	}
	r.state = stateUninitialized
	r.gen++
	r.callback = nil
	engine := r.engine
	r.engine = nil
	r.cond.Broadcast()
	r.mu.Unlock()

	r.wg.Wait()
	if engine != nil {
		if err := engine.Close(); err != nil {
			r.logger.Warn("Engine close failed", "error", err)
		}
	}
	r.logger.Debug("Stopped")
	return nil
}

// Release frees the codec. It is safe to call more than once.
func (r *Runtime) Release() {
	r.mu.Lock()
	st := r.state
	r.mu.Unlock()
	if st == stateReleased {
		return
	}
	if st == stateRunning || st == stateConfigured {
		_ = r.Stop()
	}

	r.mu.Lock()
	r.state = stateReleased
	r.inputs, r.outputs = nil, nil
	r.mu.Unlock()
}

func (r *Runtime) InputFormat() *codec.Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFormat == nil {
		return nil
	}
	return r.inFormat.Clone()
}

func (r *Runtime) OutputFormat() *codec.Format {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outFormat == nil {
		return nil
	}
	return r.outFormat.Clone()
}

func (r *Runtime) DequeueInputBuffer(timeout time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkSyncLocked(); err != nil {
		return -1, err
	}

	r.waitLocked(timeout, func() bool {
		return len(r.freeInputs) > 0 || r.err != nil || r.state != stateRunning
	})
	if r.state != stateRunning {
		return -1, codec.ErrInvalidState
	}
	if r.err != nil {
		return -1, r.err
	}
	if len(r.freeInputs) == 0 {
		return -1, codec.ErrTryAgainLater
	}
	return r.takeInputLocked(), nil
}

func (r *Runtime) InputBuffer(index int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.inputs) || !r.inputs[index].owned {
		return nil, codec.ErrInvalidIndex
	}
	return r.inputs[index].data, nil
}

func (r *Runtime) QueueInputBuffer(index, offset, size int, ptsUs int64, flags codec.BufferFlags) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateRunning {
		return codec.ErrInvalidState
	}
	if r.err != nil {
		return r.err
	}
	if index < 0 || index >= len(r.inputs) || !r.inputs[index].owned {
		return codec.ErrInvalidIndex
	}
	if r.inputEOS {
		return fmt.Errorf("%s: input queued after end of stream: %w", r.name, codec.ErrInvalidState)
	}
	if offset < 0 || size < 0 || offset+size > len(r.inputs[index].data) {
		return fmt.Errorf("%s: range [%d,%d) exceeds buffer of %d bytes: %w",
			r.name, offset, offset+size, len(r.inputs[index].data), codec.ErrInvalidIndex)
	}

	r.inputs[index].owned = false
	r.queued = append(r.queued, queuedInput{index: index, offset: offset, size: size, ptsUs: ptsUs, flags: flags})
	if flags.Has(codec.FlagEndOfStream) {
		r.inputEOS = true
	}
	r.cond.Broadcast()
	return nil
}

func (r *Runtime) DequeueOutputBuffer(timeout time.Duration) (int, codec.BufferInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkSyncLocked(); err != nil {
		return -1, codec.BufferInfo{}, err
	}

	r.waitLocked(timeout, func() bool {
		return len(r.ready) > 0 || r.err != nil || r.state != stateRunning
	})
	if r.state != stateRunning {
		return -1, codec.BufferInfo{}, codec.ErrInvalidState
	}
	if r.err != nil {
		return -1, codec.BufferInfo{}, r.err
	}
	if len(r.ready) == 0 {
		return -1, codec.BufferInfo{}, codec.ErrTryAgainLater
	}
	if !r.formatSent {
		r.formatSent = true
		return -1, codec.BufferInfo{}, codec.ErrOutputFormatChanged
	}
	out := r.takeOutputLocked()
	return out.index, out.info, nil
}

func (r *Runtime) OutputBuffer(index int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.outputs) || !r.outputs[index].owned {
		return nil, codec.ErrInvalidIndex
	}
	return r.outputs[index].data, nil
}

func (r *Runtime) ReleaseOutputBuffer(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.outputs) || !r.outputs[index].owned {
		return codec.ErrInvalidIndex
	}
	r.outputs[index].owned = false
	if r.state == stateRunning {
		r.freeOutputs = append(r.freeOutputs, index)
		r.cond.Broadcast()
	}
	return nil
}

func (r *Runtime) checkSyncLocked() error {
	if r.state != stateRunning {
		return codec.ErrInvalidState
	}
	if r.callback != nil {
		return fmt.Errorf("%s: dequeue in asynchronous mode: %w", r.name, codec.ErrInvalidState)
	}
	return nil
}

func (r *Runtime) takeInputLocked() int {
	idx := r.freeInputs[0]
	r.freeInputs = r.freeInputs[1:]
	r.inputs[idx].owned = true
	return idx
}

func (r *Runtime) takeOutputLocked() readyOutput {
	out := r.ready[0]
	r.ready = r.ready[1:]
	r.outputs[out.index].owned = true
	return out
}

// waitLocked blocks on the condition until ready returns true or the timeout
// elapses. Zero polls once; negative waits without limit.
func (r *Runtime) waitLocked(timeout time.Duration, ready func() bool) {
	if ready() || timeout == 0 {
		return
	}
	if timeout < 0 {
		for !ready() {
			r.cond.Wait()
		}
		return
	}

	deadline := time.Now().Add(timeout)
	timer := time.AfterFunc(timeout, func() {
		r.mu.Lock()
		r.cond.Broadcast()
		r.mu.Unlock()
	})
	defer timer.Stop()
	for !ready() && time.Now().Before(deadline) {
		r.cond.Wait()
	}
}

func (r *Runtime) activeLocked(gen uint64) bool {
	return r.gen == gen && r.state == stateRunning
}

// fail latches the first engine error (must hold lock).
func (r *Runtime) failLocked(err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s: %w", r.name, err)
		r.logger.Error("Encode failed", "error", err)
	}
	r.cond.Broadcast()
}

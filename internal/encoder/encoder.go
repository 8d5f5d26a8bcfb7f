package encoder

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/smazurov/encbench/internal/codec"
	"github.com/smazurov/encbench/internal/logging"
	"github.com/smazurov/encbench/internal/sink"
	"github.com/smazurov/encbench/internal/stats"
)

const (
	defaultDequeueTimeout = time.Millisecond
	defaultStallTimeout   = 5 * time.Second
)

// Options configures an Encoder.
type Options struct {
	// Registry resolves codec names and mime types (required).
	Registry *codec.Registry

	// Reporter receives the statistics of every run. Defaults to a log sink.
	Reporter stats.Sink

	// OnStateChange is called on every run state transition (optional).
	OnStateChange StateChangeCallback

	// OnFormatChange is called when the codec reports its output format (optional).
	OnFormatChange func(format *codec.Format)

	// DequeueTimeout bounds each dequeue in synchronous mode.
	DequeueTimeout time.Duration

	// StallTimeout fails a synchronous run when no buffer moves for this long.
	StallTimeout time.Duration

	Logger logging.Logger
}

// Request describes one encode run.
type Request struct {
	Job            string
	CodecName      string
	Input          io.ReaderAt
	InputSize      int64
	InputReference string
	Async          bool
	Params         Params
	Mime           string
	// Output receives drained payloads (optional).
	Output sink.Sink
}

// Encoder drives one codec at a time through a full encode run. It
// implements codec.Callback for asynchronous mode. An Encoder may be reused
// after ResetEncoder.
type Encoder struct {
	opts   Options
	logger logging.Logger

	timer     stats.Timer
	collector *stats.Collector

	mu   sync.Mutex
	done *sync.Cond

	state     State
	codec     codec.Codec
	codecName string
	mime      string
	params    Params
	outFormat *codec.Format
	req       Request

	// feed path state, touched only by the goroutine that feeds input
	cursor           cursor
	chunk            int
	numFrames        int64
	numFramesDerived bool

	framesFed      int64
	framesProduced int64
	bytesFed       int64
	bytesProduced  int64
	inputEOS       bool
	outputEOS      bool
	errSignalled   bool
	runErr         error

	lastReport stats.Report
}

// New creates an encoder. It panics if opts.Registry is nil.
func New(opts Options) *Encoder {
	if opts.Registry == nil {
		panic("encoder.Options with Registry is required")
	}
	if opts.DequeueTimeout <= 0 {
		opts.DequeueTimeout = defaultDequeueTimeout
	}
	if opts.StallTimeout <= 0 {
		opts.StallTimeout = defaultStallTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("encoder")
	}
	if opts.Reporter == nil {
		opts.Reporter = stats.NewLogSink(logger)
	}

	e := &Encoder{
		opts:      opts,
		logger:    logger,
		collector: stats.NewCollector(),
		state:     StateInit,
	}
	e.done = sync.NewCond(&e.mu)
	return e
}

// SetupEncoder creates and configures the codec. An empty codecName selects
// the preferred codec for mime. Unset parameters are left to the codec.
func (e *Encoder) SetupEncoder(codecName string, params Params, mime string) error {
	e.mu.Lock()
	busy := e.codec != nil
	e.mu.Unlock()
	if busy {
		return newError(CodeSetupFailure, "codec already set up", nil)
	}

	params = params.Normalize()
	start := time.Now()

	var (
		c   codec.Codec
		err error
	)
	if codecName != "" {
		c, err = e.opts.Registry.CreateByName(codecName)
	} else {
		c, err = e.opts.Registry.CreateByType(mime)
	}
	if err != nil {
		return newError(CodeSetupFailure, "failed to create codec", err)
	}

	format := params.Format(mime)
	if err := c.Configure(format); err != nil {
		c.Release()
		return newError(CodeSetupFailure, fmt.Sprintf("failed to configure %s", c.Name()), err)
	}

	e.mu.Lock()
	e.codec = c
	e.codecName = c.Name()
	e.mime = mime
	e.params = params
	e.mu.Unlock()

	e.collector.SetInitTime(time.Since(start))
	e.logger.Info("Codec configured", "codec", c.Name(), "format", format.Describe())
	e.setState(StateConfigured)
	return nil
}

// DeInitCodec stops and releases the codec. It is safe to call at any time,
// any number of times.
func (e *Encoder) DeInitCodec() {
	e.mu.Lock()
	c := e.codec
	e.codec = nil
	e.mu.Unlock()
	if c == nil {
		return
	}

	start := time.Now()
	if err := c.Stop(); err != nil && !errors.Is(err, codec.ErrInvalidState) {
		e.logger.Warn("Codec stop failed", "codec", c.Name(), "error", err)
	}
	c.Release()
	e.logger.Debug("Codec released", "codec", c.Name(), "teardown_us", time.Since(start).Microseconds())
}

// ResetEncoder releases any codec and clears the run counters so the encoder
// can run again. The last configuration is kept.
func (e *Encoder) ResetEncoder() {
	e.DeInitCodec()

	e.mu.Lock()
	e.framesFed, e.framesProduced = 0, 0
	e.bytesFed, e.bytesProduced = 0, 0
	e.inputEOS, e.outputEOS = false, false
	e.errSignalled = false
	e.runErr = nil
	e.outFormat = nil
	e.cursor = cursor{}
	e.chunk, e.numFrames, e.numFramesDerived = 0, 0, false
	e.mu.Unlock()

	e.collector.Reset()
	e.setState(StateInit)
}

// Encode runs one request to completion. Asynchronous runs block until the
// codec signals end of stream or an error, without a timeout. The codec is
// torn down on every path.
func (e *Encoder) Encode(req Request) error {
	e.mu.Lock()
	if e.state != StateInit {
		st := e.state
		e.mu.Unlock()
		return newError(CodeSetupFailure, fmt.Sprintf("encoder is %s, reset before reuse", st), nil)
	}
	e.req = req
	e.mu.Unlock()

	defer func() {
		e.DeInitCodec()
		e.setState(StateTornDown)
	}()

	if req.Input == nil && req.InputSize > 0 {
		e.setState(StateFailed)
		return newError(CodeSetupFailure, "input size given without an input", nil)
	}
	if err := e.SetupEncoder(req.CodecName, req.Params, req.Mime); err != nil {
		e.setState(StateFailed)
		return err
	}
	if err := e.prepareInput(req); err != nil {
		e.setState(StateFailed)
		return err
	}

	e.logger.Info("Encode started",
		"input", req.InputReference,
		"codec", e.codecName,
		"async", req.Async,
		"frame_size", e.chunk,
		"frames", e.numFrames)

	e.collector.SetStartTime()
	e.timer.Start()
	e.setState(StateRunning)

	var err error
	if req.Async {
		err = e.runAsync()
	} else {
		err = e.runSync()
	}

	e.timer.Stop()
	if err != nil {
		e.setState(StateFailed)
		e.logger.Error("Encode failed", "input", req.InputReference, "codec", e.codecName, "error", err)
	} else {
		e.setState(StateCompleted)
	}

	c := e.Counters()
	e.DumpStatistics(req.InputReference, e.params.contentDurationUs(e.mime, c.FramesFed, c.BytesFed))
	return err
}

// prepareInput sets up the stream cursor and the per-frame chunk size.
func (e *Encoder) prepareInput(req Request) error {
	e.mu.Lock()
	c := e.codec
	e.mu.Unlock()

	chunk := e.params.chunkSize(e.mime, c.InputFormat())
	if chunk <= 0 {
		return newError(CodeSetupFailure, "cannot derive input frame size from parameters", nil)
	}

	e.cursor = cursor{src: req.Input, size: req.InputSize}
	e.chunk = chunk
	if isSet(e.params.NumFrames) {
		e.numFrames = int64(e.params.NumFrames)
	} else {
		e.numFrames = ceilDiv(req.InputSize, int64(chunk))
		e.numFramesDerived = true
	}
	return nil
}

func (e *Encoder) runAsync() error {
	e.mu.Lock()
	c := e.codec
	e.mu.Unlock()

	if err := c.SetCallback(e); err != nil {
		return newError(CodeRuntimeError, "failed to register callback", err)
	}
	if err := c.Start(); err != nil {
		return newError(CodeRuntimeError, "failed to start codec", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for !e.outputEOS && !e.errSignalled {
		e.done.Wait()
	}
	return e.runErr
}

// DumpStatistics builds the report for the current run and hands it to the
// configured reporter.
func (e *Encoder) DumpStatistics(inputReference string, durationUs int64) stats.Report {
	e.mu.Lock()
	info := stats.RunInfo{
		Job:            e.req.Job,
		Input:          inputReference,
		Codec:          e.codecName,
		Mime:           e.mime,
		Async:          e.req.Async,
		FramesFed:      e.framesFed,
		FramesProduced: e.framesProduced,
		ElapsedUs:      e.timer.ElapsedUs(),
		Err:            e.runErr,
	}
	e.mu.Unlock()

	report := e.collector.Report(info, durationUs)

	e.mu.Lock()
	e.lastReport = report
	e.mu.Unlock()

	if err := e.opts.Reporter.Write(report); err != nil {
		e.logger.Warn("Failed to write statistics", "reporter", e.opts.Reporter.Name(), "error", err)
	}
	return report
}

// State returns the current run state.
func (e *Encoder) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Counters returns a snapshot of the run counters.
func (e *Encoder) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Counters{
		FramesFed:      e.framesFed,
		FramesProduced: e.framesProduced,
		BytesFed:       e.bytesFed,
		BytesProduced:  e.bytesProduced,
		InputEOS:       e.inputEOS,
		OutputEOS:      e.outputEOS,
		ErrorSignalled: e.errSignalled,
	}
}

// OutputFormat returns the last output format reported by the codec, or nil.
func (e *Encoder) OutputFormat() *codec.Format {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.outFormat == nil {
		return nil
	}
	return e.outFormat.Clone()
}

// LastReport returns the statistics of the most recent run.
func (e *Encoder) LastReport() stats.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReport
}

func (e *Encoder) setState(next State) {
	e.mu.Lock()
	prev := e.state
	e.state = next
	e.mu.Unlock()

	if prev == next {
		return
	}
	e.logger.Debug("State changed", "from", prev, "to", next)
	if e.opts.OnStateChange != nil {
		e.opts.OnStateChange(prev, next)
	}
}

// signalError latches the first error of the run and wakes the waiter.
func (e *Encoder) signalError(err error) {
	e.mu.Lock()
	e.signalErrorLocked(err)
	e.mu.Unlock()
}

func (e *Encoder) signalErrorLocked(err error) {
	if !e.errSignalled {
		e.errSignalled = true
		e.runErr = err
	}
	e.done.Broadcast()
}

func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

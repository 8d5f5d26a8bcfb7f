package encoder

import (
	"errors"
	"fmt"

	"github.com/smazurov/encbench/internal/codec"
)

// owns reports whether c is the codec of the current run (must hold lock).
func (e *Encoder) ownsLocked(c codec.Codec) bool {
	return e.codec != nil && c == e.codec
}

// OnInputAvailable fills and queues the buffer, or queues end of stream once
// the input is exhausted. It does nothing after end of stream or an error.
func (e *Encoder) OnInputAvailable(c codec.Codec, index int) {
	e.mu.Lock()
	skip := !e.ownsLocked(c) || e.inputEOS || e.errSignalled || e.outputEOS
	e.mu.Unlock()
	if skip {
		return
	}

	if err := e.feedInput(c, index); err != nil {
		e.signalError(err)
	}
}

// OnFormatChanged records the output format.
func (e *Encoder) OnFormatChanged(c codec.Codec, format *codec.Format) {
	if format == nil {
		return
	}
	e.mu.Lock()
	if !e.ownsLocked(c) {
		e.mu.Unlock()
		return
	}
	e.outFormat = format.Clone()
	e.mu.Unlock()

	e.logger.Info("Output format changed", "codec", c.Name(), "format", format.Describe())
	if e.opts.OnFormatChange != nil {
		e.opts.OnFormatChange(format)
	}
}

// OnOutputAvailable drains and releases the buffer. End of stream wakes the
// waiting Encode call. Buffers arriving after end of stream or an error are
// released without being counted.
func (e *Encoder) OnOutputAvailable(c codec.Codec, index int, info codec.BufferInfo) {
	e.mu.Lock()
	if !e.ownsLocked(c) {
		e.mu.Unlock()
		return
	}
	finished := e.outputEOS || e.errSignalled
	e.mu.Unlock()

	if finished {
		if err := c.ReleaseOutputBuffer(index); err != nil {
			e.logger.Debug("Release after end of run failed", "codec", c.Name(), "index", index, "error", err)
		}
		return
	}
	if err := e.drainOutput(c, index, info); err != nil {
		e.signalError(err)
	}
}

// OnError latches a fatal codec error and wakes the waiting Encode call.
func (e *Encoder) OnError(c codec.Codec, err error) {
	e.mu.Lock()
	owned := e.ownsLocked(c)
	e.mu.Unlock()
	if !owned {
		return
	}
	e.signalError(newError(CodeRuntimeError, "codec reported an error", err))
}

// feedInput fills input buffer index from the cursor and queues it. Buffer
// I/O runs without the lock; only counters and flags are updated under it.
func (e *Encoder) feedInput(c codec.Codec, index int) error {
	buf, err := c.InputBuffer(index)
	if err != nil {
		return newError(CodeRuntimeError, fmt.Sprintf("input buffer %d unavailable", index), err)
	}
	if buf == nil {
		return newError(CodeRuntimeError, fmt.Sprintf("input buffer %d is nil", index), nil)
	}

	e.mu.Lock()
	fed := e.framesFed
	e.mu.Unlock()

	if len(buf) < e.chunk {
		if fed != 0 {
			return newError(CodeRuntimeError,
				fmt.Sprintf("input buffer of %d bytes is smaller than frame size %d", len(buf), e.chunk), nil)
		}
		e.logger.Warn("Shrinking frame size to codec input buffer", "frame_size", e.chunk, "buffer_size", len(buf))
		e.chunk = len(buf)
		if e.numFramesDerived {
			e.numFrames = ceilDiv(e.cursor.size, int64(e.chunk))
		}
	}

	if e.cursor.remaining() <= 0 || fed >= e.numFrames {
		// Marked before queueing: the codec may deliver output end of stream
		// from another goroutine before QueueInputBuffer returns.
		e.mu.Lock()
		e.inputEOS = true
		e.mu.Unlock()
		pts := e.params.presentationTimeUs(e.mime, fed, e.chunk)
		if err := c.QueueInputBuffer(index, 0, 0, pts, codec.FlagEndOfStream); err != nil {
			return newError(CodeRuntimeError, "failed to queue end of stream", err)
		}
		e.logger.Debug("Input end of stream queued", "frames_fed", fed)
		return nil
	}

	size := e.chunk
	if rem := e.cursor.remaining(); rem < int64(size) {
		size = int(rem)
	}
	if size < e.chunk && fed < e.numFrames-1 {
		return newError(CodeRuntimeError,
			fmt.Sprintf("partial frame %d of %d bytes before the last frame", fed, size), nil)
	}
	if err := e.cursor.readInto(buf[:size]); err != nil {
		return newError(CodePrematureExhaustion, "input ended early", err)
	}

	pts := e.params.presentationTimeUs(e.mime, fed, e.chunk)
	if err := c.QueueInputBuffer(index, 0, size, pts, 0); err != nil {
		return newError(CodeRuntimeError, fmt.Sprintf("failed to queue frame %d", fed), err)
	}
	e.cursor.advance(size)
	e.collector.AddInputTime()

	e.mu.Lock()
	e.framesFed++
	e.bytesFed += int64(size)
	e.mu.Unlock()
	return nil
}

// drainOutput consumes output buffer index, forwards it to the request's
// output sink and releases it.
func (e *Encoder) drainOutput(c codec.Codec, index int, info codec.BufferInfo) error {
	var payload []byte
	if info.Size > 0 {
		data, err := c.OutputBuffer(index)
		if err != nil {
			return newError(CodeRuntimeError, fmt.Sprintf("output buffer %d unavailable", index), err)
		}
		if info.Offset < 0 || info.Offset+info.Size > len(data) {
			_ = c.ReleaseOutputBuffer(index)
			return newError(CodeRuntimeError,
				fmt.Sprintf("output range [%d,%d) exceeds buffer of %d bytes", info.Offset, info.Offset+info.Size, len(data)), nil)
		}
		payload = data[info.Offset : info.Offset+info.Size]
	}

	if len(payload) > 0 && e.req.Output != nil {
		if err := e.req.Output.WriteSample(payload, info); err != nil {
			_ = c.ReleaseOutputBuffer(index)
			return newError(CodeRuntimeError, "failed to forward output", err)
		}
	}
	if err := c.ReleaseOutputBuffer(index); err != nil && !errors.Is(err, codec.ErrInvalidState) {
		return newError(CodeRuntimeError, fmt.Sprintf("failed to release output buffer %d", index), err)
	}

	if info.EndOfStream() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.inputEOS {
			e.signalErrorLocked(newError(CodePrematureExhaustion,
				"codec signalled end of stream before input was exhausted", nil))
		}
		e.outputEOS = true
		e.done.Broadcast()
		e.logger.Debug("Output end of stream", "frames_produced", e.framesProduced)
		return nil
	}

	e.collector.AddOutput(len(payload))
	e.mu.Lock()
	e.framesProduced++
	e.bytesProduced += int64(len(payload))
	e.mu.Unlock()
	return nil
}

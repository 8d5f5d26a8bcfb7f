package encoder

import (
	"errors"
	"fmt"
	"time"

	"github.com/smazurov/encbench/internal/codec"
)

// runSync drives the codec with bounded dequeues until both directions have
// seen end of stream. A codec that moves no buffer for StallTimeout fails
// the run.
func (e *Encoder) runSync() error {
	e.mu.Lock()
	c := e.codec
	e.mu.Unlock()

	if err := c.Start(); err != nil {
		return newError(CodeRuntimeError, "failed to start codec", err)
	}

	timeout := e.opts.DequeueTimeout
	lastProgress := time.Now()
	for {
		e.mu.Lock()
		inEOS, outEOS, failed, runErr := e.inputEOS, e.outputEOS, e.errSignalled, e.runErr
		e.mu.Unlock()
		if failed {
			return runErr
		}
		if inEOS && outEOS {
			return nil
		}

		progressed := false
		if !inEOS {
			index, err := c.DequeueInputBuffer(timeout)
			switch {
			case errors.Is(err, codec.ErrTryAgainLater):
			case err != nil:
				e.signalError(newError(CodeRuntimeError, "failed to dequeue input buffer", err))
				continue
			default:
				if err := e.feedInput(c, index); err != nil {
					e.signalError(err)
					continue
				}
				progressed = true
			}
		}

		if !outEOS {
			index, info, err := c.DequeueOutputBuffer(timeout)
			switch {
			case errors.Is(err, codec.ErrTryAgainLater):
			case errors.Is(err, codec.ErrOutputFormatChanged):
				e.OnFormatChanged(c, c.OutputFormat())
				progressed = true
			case err != nil:
				e.signalError(newError(CodeRuntimeError, "failed to dequeue output buffer", err))
				continue
			default:
				if err := e.drainOutput(c, index, info); err != nil {
					e.signalError(err)
					continue
				}
				progressed = true
			}
		}

		if progressed {
			lastProgress = time.Now()
			continue
		}
		if stalled := time.Since(lastProgress); stalled >= e.opts.StallTimeout {
			if inEOS {
				e.signalError(newError(CodePrematureExhaustion,
					fmt.Sprintf("no output end of stream within %v", stalled.Round(time.Millisecond)), nil))
			} else {
				e.signalError(newError(CodeRuntimeError,
					fmt.Sprintf("codec stalled for %v", stalled.Round(time.Millisecond)), nil))
			}
		}
	}
}

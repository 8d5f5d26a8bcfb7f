package bench

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/smazurov/encbench/internal/codec"
	"github.com/smazurov/encbench/internal/encoder"
	"github.com/smazurov/encbench/internal/jobs"
	"github.com/smazurov/encbench/internal/metrics"
	"github.com/smazurov/encbench/internal/sink"
	"github.com/smazurov/encbench/internal/stats"
)

// worker owns one encoder and runs jobs from the queue one at a time.
type worker struct {
	id  int
	r   *runner
	enc *encoder.Encoder

	mu  sync.Mutex
	job string
}

func newWorker(r *runner, id int) *worker {
	w := &worker{id: id, r: r}
	w.enc = encoder.New(encoder.Options{
		Registry:     r.opts.Registry,
		Reporter:     r.opts.Reporter,
		StallTimeout: r.opts.StallTimeout,
		OnStateChange: func(oldState, newState encoder.State) {
			if r.opts.OnRunState != nil {
				r.opts.OnRunState(w.currentJob(), w.id, oldState, newState)
			}
		},
		OnFormatChange: func(format *codec.Format) {
			if r.opts.OnFormat != nil {
				r.opts.OnFormat(w.currentJob(), format)
			}
		},
	})
	return w
}

func (w *worker) currentJob() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.job
}

func (w *worker) setJob(name string) {
	w.mu.Lock()
	w.job = name
	w.mu.Unlock()
}

func (w *worker) loop() {
	for name := range w.r.queue {
		w.execute(name)
	}
}

func (w *worker) execute(name string) {
	r := w.r
	if r.ctx.Err() != nil {
		r.finish(name, StatusIdle, nil)
		return
	}

	job, ok := r.opts.Jobs(name)
	if !ok {
		err := newError(CodeJobNotFound, fmt.Sprintf("job %s was removed", name), nil)
		r.finish(name, StatusFailed, err)
		return
	}

	r.start(name, w.id)
	r.logger.Info("Job started", "job", name, "worker", w.id, "runs", job.Runs())

	var runErr error
	for i := range job.Runs() {
		if r.ctx.Err() != nil {
			r.logger.Info("Job interrupted", "job", name, "completed_runs", i)
			break
		}
		report, err := w.runOnce(job)
		if report.Status != "" {
			r.record(name, report)
		}
		if err != nil {
			runErr = err
			break
		}
	}

	if runErr != nil {
		r.logger.Warn("Job failed", "job", name, "worker", w.id, "error", runErr)
		r.finish(name, StatusFailed, runErr)
		return
	}
	r.logger.Info("Job completed", "job", name, "worker", w.id)
	r.finish(name, StatusCompleted, nil)
}

// runOnce performs one encode of job. The returned report is empty when the
// run never reached the codec.
func (w *worker) runOnce(job jobs.Job) (stats.Report, error) {
	mime := job.Mime
	if mime == "" {
		if info, ok := w.r.opts.Registry.Lookup(job.Codec); ok {
			mime = info.Mime
		}
	}

	in, err := os.Open(job.Input)
	if err != nil {
		return stats.Report{}, newError(CodeInput, "failed to open input", err)
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return stats.Report{}, newError(CodeInput, "failed to stat input", err)
	}

	out, err := openOutput(job, mime)
	if err != nil {
		return stats.Report{}, newError(CodeOutput, "failed to open output", err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil {
			w.r.logger.Warn("Failed to close output", "job", job.Name, "error", closeErr)
		}
	}()

	w.enc.ResetEncoder()
	w.setJob(job.Name)
	defer w.setJob("")

	metrics.RunStarted()
	defer metrics.RunFinished()

	err = w.enc.Encode(encoder.Request{
		Job:            job.Name,
		CodecName:      job.Codec,
		Input:          in,
		InputSize:      fi.Size(),
		InputReference: job.Input,
		Async:          job.Async,
		Params:         job.Params,
		Mime:           mime,
		Output:         out,
	})
	if err == nil {
		return w.enc.LastReport(), nil
	}

	wrapped := newError(CodeEncode, fmt.Sprintf("job %s", job.Name), err)
	if encoder.StatusOf(err) != encoder.StatusSetupFailure {
		return w.enc.LastReport(), wrapped
	}
	report := setupFailureReport(job.Name, job.Input, job.Codec, mime, job.Async, err)
	if w.r.opts.Reporter != nil {
		if writeErr := w.r.opts.Reporter.Write(report); writeErr != nil {
			w.r.logger.Warn("Failed to write statistics", "job", job.Name, "error", writeErr)
		}
	}
	return report, wrapped
}

// openOutput builds the sink chain for job. Jobs without outputs drain into
// a Discard sink.
func openOutput(job jobs.Job, mime string) (sink.Sink, error) {
	var sinks sink.Multi
	if job.Output != "" {
		f, err := sink.CreateFile(job.Output)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, f)
	}
	if job.RTPAddress != "" {
		cfg := sink.RTPConfig{Mime: mime}
		if codec.IsAudio(mime) && job.Params.SampleRate > 0 {
			cfg.ClockRate = uint32(job.Params.SampleRate)
		}
		rs, err := sink.DialRTP(job.RTPAddress, cfg)
		if err != nil {
			return nil, errors.Join(err, sinks.Close())
		}
		sinks = append(sinks, rs)
	}

	switch len(sinks) {
	case 0:
		return &sink.Discard{}, nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}

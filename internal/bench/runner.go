package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/encbench/internal/logging"
	"github.com/smazurov/encbench/internal/stats"
)

// Runner schedules named jobs onto workers.
type Runner interface {
	// Submit queues a job. Returns error if it is unknown or already queued or running.
	Submit(name string) error

	// SubmitAll queues every name and joins the errors.
	SubmitAll(names []string) error

	// Status returns the latest execution of a job. Unknown jobs are idle.
	Status(name string) *Info

	// List returns every job the runner has seen, sorted by name.
	List() []*Info

	// Wait blocks until nothing is queued or running.
	Wait()

	// Close stops accepting jobs, drops queued ones and waits for running ones.
	Close()
}

type runner struct {
	opts   Options
	logger logging.Logger
	queue  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	idle   *sync.Cond
	active int
	closed bool
	states map[string]*Info
}

// NewRunner starts the workers. It panics without a Registry or Jobs provider.
func NewRunner(opts *Options) Runner {
	if opts == nil || opts.Registry == nil || opts.Jobs == nil {
		panic("bench.Options with Registry and Jobs is required")
	}

	o := *opts
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Logger == nil {
		o.Logger = logging.GetLogger("bench")
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{
		opts:   o,
		logger: o.Logger,
		queue:  make(chan string, o.QueueSize),
		ctx:    ctx,
		cancel: cancel,
		states: make(map[string]*Info),
	}
	r.idle = sync.NewCond(&r.mu)

	for i := range o.Workers {
		w := newWorker(r, i)
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			w.loop()
		}()
	}
	r.logger.Info("Runner started", "workers", o.Workers)
	return r
}

func (r *runner) Submit(name string) error {
	if _, ok := r.opts.Jobs(name); !ok {
		return newError(CodeJobNotFound, fmt.Sprintf("job %s not found", name), nil)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return newError(CodeClosed, "runner is closed", nil)
	}
	prev := StatusIdle
	if st, ok := r.states[name]; ok {
		if st.Status.Busy() {
			r.mu.Unlock()
			return newError(CodeJobBusy, fmt.Sprintf("job %s is %s", name, st.Status), nil)
		}
		prev = st.Status
	}
	select {
	case r.queue <- name:
	default:
		r.mu.Unlock()
		return newError(CodeQueueFull, "too many pending jobs", nil)
	}
	r.states[name] = &Info{
		Job:      name,
		Status:   StatusQueued,
		Worker:   -1,
		QueuedAt: time.Now(),
	}
	r.active++
	r.mu.Unlock()

	r.notify(name, prev, StatusQueued, nil)
	return nil
}

func (r *runner) SubmitAll(names []string) error {
	var errs []error
	for _, name := range names {
		if err := r.Submit(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *runner) Status(name string) *Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[name]
	if !ok {
		return &Info{Job: name, Status: StatusIdle, Worker: -1}
	}
	return copyInfo(st)
}

func (r *runner) List() []*Info {
	r.mu.Lock()
	out := make([]*Info, 0, len(r.states))
	for _, st := range r.states {
		out = append(out, copyInfo(st))
	}
	r.mu.Unlock()

	sort.Slice(out, func(a, b int) bool { return out[a].Job < out[b].Job })
	return out
}

func (r *runner) Wait() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for r.active > 0 {
		r.idle.Wait()
	}
}

func (r *runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.cancel()
	close(r.queue)
	r.mu.Unlock()

	r.logger.Info("Stopping runner")
	r.wg.Wait()
	r.logger.Info("Runner stopped")
}

// start marks a job as running on worker.
func (r *runner) start(name string, worker int) {
	r.mu.Lock()
	st := r.states[name]
	prev := st.Status
	st.Status = StatusRunning
	st.Worker = worker
	st.StartedAt = time.Now()
	r.mu.Unlock()

	r.notify(name, prev, StatusRunning, nil)
}

// record appends one run report to the job's latest execution.
func (r *runner) record(name string, report stats.Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.states[name]; ok {
		st.Runs++
		st.Results = append(st.Results, report)
	}
}

// finish settles a job and wakes Wait when nothing is left.
func (r *runner) finish(name string, status Status, err error) {
	r.mu.Lock()
	st := r.states[name]
	prev := st.Status
	st.Status = status
	st.FinishedAt = time.Now()
	if err != nil {
		st.LastError = err.Error()
	}
	r.active--
	if r.active == 0 {
		r.idle.Broadcast()
	}
	r.mu.Unlock()

	r.notify(name, prev, status, err)
}

func (r *runner) notify(name string, oldStatus, newStatus Status, err error) {
	if r.opts.OnStateChange != nil {
		r.opts.OnStateChange(name, oldStatus, newStatus, err)
	}
}

func copyInfo(st *Info) *Info {
	dup := *st
	dup.Results = slices.Clone(st.Results)
	return &dup
}

// modeOf names the encode mode the way reports do.
func modeOf(async bool) string {
	if async {
		return "async"
	}
	return "sync"
}

// setupFailureReport stands in for the report Encode does not produce when
// the codec cannot be set up.
func setupFailureReport(job, input, codecName, mime string, async bool, err error) stats.Report {
	return stats.Report{
		Job:       job,
		Input:     input,
		Codec:     codecName,
		Mime:      mime,
		Mode:      modeOf(async),
		Status:    stats.StatusFailed,
		Error:     err.Error(),
		StartedAt: time.Now(),
	}
}

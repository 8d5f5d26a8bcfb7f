package bench

import (
	"time"

	"github.com/smazurov/encbench/internal/codec"
	"github.com/smazurov/encbench/internal/encoder"
	"github.com/smazurov/encbench/internal/jobs"
	"github.com/smazurov/encbench/internal/logging"
	"github.com/smazurov/encbench/internal/stats"
)

const defaultQueueSize = 64

// JobProvider resolves a job name.
type JobProvider func(name string) (jobs.Job, bool)

// StateChangeCallback is called when a job changes status.
type StateChangeCallback func(job string, oldStatus, newStatus Status, err error)

// RunStateCallback is called on every encoder state transition of a run.
type RunStateCallback func(job string, worker int, oldState, newState encoder.State)

// FormatCallback is called when a run's codec reports its output format.
type FormatCallback func(job string, format *codec.Format)

// Options configures a Runner.
type Options struct {
	// Registry resolves codecs (required).
	Registry *codec.Registry

	// Jobs resolves job names (required).
	Jobs JobProvider

	// Workers is the number of concurrent runs. Defaults to 1.
	Workers int

	// QueueSize bounds pending submissions. Defaults to 64.
	QueueSize int

	// Reporter receives every run report (optional).
	Reporter stats.Sink

	OnStateChange StateChangeCallback
	OnRunState    RunStateCallback
	OnFormat      FormatCallback

	// StallTimeout is passed to each worker's encoder.
	StallTimeout time.Duration

	Logger logging.Logger
}

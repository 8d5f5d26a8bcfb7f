package cmd

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/encbench/internal/bench"
	"github.com/smazurov/encbench/internal/codec/soft"
	"github.com/smazurov/encbench/internal/config"
	"github.com/smazurov/encbench/internal/encoder"
	"github.com/smazurov/encbench/internal/jobs"
	"github.com/smazurov/encbench/internal/logging"
	"github.com/smazurov/encbench/internal/stats"
)

// runOptions are the flags of the run command. Field names match flag names
// so that config.LoadConfig leaves explicitly set flags alone.
type runOptions struct {
	Config string

	JobsFile     string        `toml:"jobs.file" env:"JOBS_FILE"`
	Codec        string        `toml:"run.codec" env:"RUN_CODEC"`
	Mime         string        `toml:"run.mime" env:"RUN_MIME"`
	Async        bool          `toml:"run.async" env:"RUN_ASYNC"`
	Repeat       int           `toml:"run.repeat" env:"RUN_REPEAT"`
	Output       string        `toml:"run.output" env:"RUN_OUTPUT"`
	Rtp          string        `toml:"run.rtp" env:"RUN_RTP"`
	Workers      int           `toml:"bench.workers" env:"BENCH_WORKERS"`
	StallTimeout time.Duration `toml:"bench.stall_timeout" env:"BENCH_STALL_TIMEOUT"`
	Csv          string        `toml:"results.csv" env:"RESULTS_CSV"`
	Results      string        `toml:"results.toml" env:"RESULTS_TOML"`
	LogJSON      bool

	Bitrate      int32
	NumFrames    int32
	FrameSize    int32
	SampleRate   int32
	Channels     int32
	MaxFrameSize int32
	Width        int32
	Height       int32
	FrameRate    int32
	Profile      int32
	Level        int32
}

func (o *runOptions) params() encoder.Params {
	return encoder.Params{
		Bitrate:      o.Bitrate,
		NumFrames:    o.NumFrames,
		FrameSize:    o.FrameSize,
		SampleRate:   o.SampleRate,
		NumChannels:  o.Channels,
		MaxFrameSize: o.MaxFrameSize,
		Width:        o.Width,
		Height:       o.Height,
		FrameRate:    o.FrameRate,
		Profile:      o.Profile,
		Level:        o.Level,
	}.Normalize()
}

// CreateRunCmd creates the run command.
func CreateRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <input> | --jobs-file FILE [job...]",
		Short: "Encode raw input and report statistics",
		Long: `Feeds a raw YUV or PCM file through an encoder and prints per-run statistics. ` +
			`With --jobs-file the arguments name jobs from the file instead; no names runs every job.`,
		Args: func(_ *cobra.Command, args []string) error {
			if opts.JobsFile == "" && len(args) != 1 {
				return errors.New("expected exactly one input file")
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			if err := config.LoadConfig(opts, c); err != nil {
				return err
			}
			loggingConfig := config.LoadLoggingConfig(opts.Config)
			if opts.LogJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("bench")

			store, names, err := opts.resolveJobs(args)
			if err != nil {
				return err
			}

			var (
				mu     sync.Mutex
				failed []string
			)
			runner := bench.NewRunner(&bench.Options{
				Registry:     soft.NewRegistry(),
				Jobs:         store.Get,
				Workers:      opts.Workers,
				StallTimeout: opts.StallTimeout,
				Reporter:     opts.reporter(logger),
				OnStateChange: func(job string, _, newStatus bench.Status, err error) {
					if newStatus == bench.StatusFailed {
						mu.Lock()
						failed = append(failed, job)
						mu.Unlock()
						logger.Error("Job failed", "job", job, "error", err)
					}
				},
			})
			if err := runner.SubmitAll(names); err != nil {
				runner.Close()
				return err
			}
			runner.Wait()
			runner.Close()

			if len(failed) > 0 {
				return fmt.Errorf("%d of %d jobs failed: %v", len(failed), len(names), failed)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Config, "config", "c", "config.toml", "Path to configuration file")
	f.StringVar(&opts.JobsFile, "jobs-file", "", "Run jobs from this file instead of a single input")
	f.StringVar(&opts.Codec, "codec", "", "Codec name (default: preferred codec for --mime)")
	f.StringVar(&opts.Mime, "mime", "", "Output mime type (default: "+soft.MimeRawVideo+")")
	f.BoolVar(&opts.Async, "async", false, "Use callback mode instead of polling")
	f.IntVar(&opts.Repeat, "repeat", 1, "Number of runs")
	f.StringVar(&opts.Output, "output", "", "Write the encoded stream to this file")
	f.StringVar(&opts.Rtp, "rtp", "", "Send the encoded stream as RTP to host:port")
	f.IntVar(&opts.Workers, "workers", 1, "Concurrent runs")
	f.DurationVar(&opts.StallTimeout, "stall-timeout", 5*time.Second, "Fail polling runs when no buffer moves for this long")
	f.StringVar(&opts.Csv, "csv", "", "Append reports to this CSV file")
	f.StringVar(&opts.Results, "results", "", "Append reports to this TOML file")
	f.BoolVar(&opts.LogJSON, "log-json", false, "Use JSON log format")

	f.Int32Var(&opts.Bitrate, "bitrate", 0, "Target bitrate in bits per second")
	f.Int32Var(&opts.NumFrames, "num-frames", 0, "Frames to feed (default: whole input)")
	f.Int32Var(&opts.FrameSize, "frame-size", 0, "Bytes per input frame (default: from format)")
	f.Int32Var(&opts.SampleRate, "sample-rate", 0, "Audio sample rate")
	f.Int32Var(&opts.Channels, "channels", 0, "Audio channel count")
	f.Int32Var(&opts.MaxFrameSize, "max-frame-size", 0, "Maximum input buffer size")
	f.Int32Var(&opts.Width, "width", 0, "Video width")
	f.Int32Var(&opts.Height, "height", 0, "Video height")
	f.Int32Var(&opts.FrameRate, "frame-rate", 0, "Video frame rate (default 30)")
	f.Int32Var(&opts.Profile, "profile", 0, "Codec profile")
	f.Int32Var(&opts.Level, "level", 0, "Codec level")

	return cmd
}

// resolveJobs builds the store to run from and the job names to submit.
func (o *runOptions) resolveJobs(args []string) (*jobs.Store, []string, error) {
	if o.JobsFile != "" {
		store := jobs.NewStore(o.JobsFile)
		if err := store.Load(); err != nil {
			return nil, nil, err
		}
		if len(args) > 0 {
			return store, args, nil
		}
		names := make([]string, 0, store.Len())
		for _, j := range store.List() {
			names = append(names, j.Name)
		}
		if len(names) == 0 {
			return nil, nil, fmt.Errorf("no jobs in %s", o.JobsFile)
		}
		return store, names, nil
	}

	input := args[0]
	if _, err := os.Stat(input); err != nil {
		return nil, nil, fmt.Errorf("input: %w", err)
	}
	job := jobs.Job{
		Name:       "run",
		Input:      input,
		Codec:      o.Codec,
		Mime:       o.Mime,
		Async:      o.Async,
		Repeat:     o.Repeat,
		Output:     o.Output,
		RTPAddress: o.Rtp,
		Params:     o.params(),
	}
	if job.Codec == "" && job.Mime == "" {
		job.Mime = soft.MimeRawVideo
	}
	store := jobs.NewStore("")
	if err := store.Put(job); err != nil {
		return nil, nil, err
	}
	return store, []string{job.Name}, nil
}

func (o *runOptions) reporter(logger logging.Logger) stats.Sink {
	sinks := stats.MultiSink{stats.NewLogSink(logger)}
	if o.Csv != "" {
		sinks = append(sinks, stats.NewCSVSink(o.Csv))
	}
	if o.Results != "" {
		sinks = append(sinks, stats.NewTOMLSink(o.Results))
	}
	return sinks
}

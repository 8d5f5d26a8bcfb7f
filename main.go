package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"

	"github.com/smazurov/encbench/cmd"
	"github.com/smazurov/encbench/internal/api"
	"github.com/smazurov/encbench/internal/bench"
	"github.com/smazurov/encbench/internal/codec"
	"github.com/smazurov/encbench/internal/codec/soft"
	"github.com/smazurov/encbench/internal/config"
	"github.com/smazurov/encbench/internal/encoder"
	"github.com/smazurov/encbench/internal/events"
	"github.com/smazurov/encbench/internal/jobs"
	"github.com/smazurov/encbench/internal/logging"
	"github.com/smazurov/encbench/internal/metrics"
	"github.com/smazurov/encbench/internal/stats"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Job settings
	JobsFile    string `help:"Job definitions file" default:"jobs.toml" toml:"jobs.file" env:"JOBS_FILE"`
	RunOnStart  bool   `help:"Run every job at startup" default:"true" toml:"jobs.run_on_start" env:"JOBS_RUN_ON_START"`
	RunOnReload bool   `help:"Run every job again when the job file changes" default:"false" toml:"jobs.run_on_reload" env:"JOBS_RUN_ON_RELOAD"`

	// Bench settings
	Workers      int    `help:"Concurrent encode runs" default:"1" toml:"bench.workers" env:"BENCH_WORKERS"`
	QueueSize    int    `help:"Pending run limit" default:"64" toml:"bench.queue_size" env:"BENCH_QUEUE_SIZE"`
	StallTimeout string `help:"Fail polling runs when no buffer moves for this long" default:"5s" toml:"bench.stall_timeout" env:"BENCH_STALL_TIMEOUT"`

	// Results settings
	ResultsCSV  string `help:"Append run reports to this CSV file" default:"" toml:"results.csv" env:"RESULTS_CSV"`
	ResultsTOML string `help:"Append run reports to this TOML file" default:"" toml:"results.toml" env:"RESULTS_TOML"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel   string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat  string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingEncoder string `help:"Encoder driver logging level" default:"info" toml:"logging.encoder" env:"LOGGING_ENCODER"`
	LoggingCodec   string `help:"Codec runtime logging level" default:"info" toml:"logging.codec" env:"LOGGING_CODEC"`
	LoggingBench   string `help:"Job runner logging level" default:"info" toml:"logging.bench" env:"LOGGING_BENCH"`
	LoggingStats   string `help:"Statistics logging level" default:"info" toml:"logging.stats" env:"LOGGING_STATS"`
	LoggingAPI     string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingWatcher string `help:"File watcher logging level" default:"info" toml:"logging.watcher" env:"LOGGING_WATCHER"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"encoder": opts.LoggingEncoder,
				"codec":   opts.LoggingCodec,
				"bench":   opts.LoggingBench,
				"stats":   opts.LoggingStats,
				"api":     opts.LoggingAPI,
				"watcher": opts.LoggingWatcher,
			},
		})

		logger := logging.GetLogger("main")

		eventBus := events.New()
		registry := soft.NewRegistry(soft.WithLogger(logging.GetLogger("codec")))

		jobStore := jobs.NewStore(opts.JobsFile)
		if loadErr := jobStore.Load(); loadErr != nil {
			logger.Warn("Failed to load jobs", "path", opts.JobsFile, "error", loadErr)
		}

		reporter := stats.MultiSink{
			stats.NewLogSink(logging.GetLogger("stats")),
			metrics.ReportSink{},
			events.NewReportSink(eventBus),
		}
		if opts.ResultsCSV != "" {
			reporter = append(reporter, stats.NewCSVSink(opts.ResultsCSV))
		}
		if opts.ResultsTOML != "" {
			reporter = append(reporter, stats.NewTOMLSink(opts.ResultsTOML))
		}

		stallTimeout, err := time.ParseDuration(opts.StallTimeout)
		if err != nil {
			logger.Warn("Invalid stall timeout, using default", "value", opts.StallTimeout, "error", err)
			stallTimeout = 0
		}

		runner := bench.NewRunner(&bench.Options{
			Registry:     registry,
			Jobs:         jobStore.Get,
			Workers:      opts.Workers,
			QueueSize:    opts.QueueSize,
			Reporter:     reporter,
			StallTimeout: stallTimeout,
			OnRunState: func(job string, worker int, oldState, newState encoder.State) {
				eventBus.Publish(events.RunStateChangedEvent{
					Job:       job,
					Worker:    worker,
					OldState:  string(oldState),
					NewState:  string(newState),
					Timestamp: events.Now(),
				})
			},
			OnFormat: func(job string, format *codec.Format) {
				eventBus.Publish(events.FormatChangedEvent{
					Job:       job,
					Format:    format.Map(),
					Timestamp: events.Now(),
				})
			},
		})

		submitAll := func(reason string) {
			list := jobStore.List()
			for _, j := range list {
				if err := runner.Submit(j.Name); err != nil {
					logger.Warn("Failed to submit job", "job", j.Name, "reason", reason, "error", err)
				}
			}
			logger.Info("Jobs submitted", "count", len(list), "reason", reason)
		}

		jobsWatcher := config.NewWatcher(opts.JobsFile, func(string) (int, error) {
			if err := jobStore.Load(); err != nil {
				return 0, err
			}
			return jobStore.Len(), nil
		}, logging.GetLogger("watcher"))
		jobsWatcher.OnReload(func(count int) {
			eventBus.Publish(events.JobsReloadedEvent{
				Path:      jobStore.Path(),
				Count:     count,
				Timestamp: events.Now(),
			})
			if opts.RunOnReload {
				submitAll("reload")
			}
		})

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Registry:          registry,
			Jobs:              jobStore,
			Runner:            runner,
			EventBus:          eventBus,
			PrometheusHandler: metrics.Handler(),
		})

		hooks.OnStart(func() {
			if startErr := jobsWatcher.Start(); startErr != nil {
				logger.Warn("Failed to watch job file", "path", opts.JobsFile, "error", startErr)
			}

			if opts.RunOnStart {
				submitAll("startup")
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			if stopErr := jobsWatcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping job file watcher", "error", stopErr)
			}

			// Cancels queued runs and waits for the workers to exit.
			runner.Close()
		})
	})

	cli.Root().Use = "encbench"
	cli.Root().Short = "Encoder benchmark harness"

	cli.Root().AddCommand(cmd.CreateRunCmd())
	cli.Root().AddCommand(cmd.CreateCodecsCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}

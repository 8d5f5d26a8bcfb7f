package stats

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/encbench/internal/logging"
)

// Sink receives finished reports.
type Sink interface {
	Name() string
	Write(r Report) error
}

// LogSink writes reports to a structured logger.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.GetLogger("stats")
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(r Report) error {
	if r.Failed() {
		s.logger.Warn("Encode statistics", r.LogArgs()...)
		return nil
	}
	s.logger.Info("Encode statistics", r.LogArgs()...)
	return nil
}

// appendFile is the part of *os.File CSVSink writes through.
type appendFile interface {
	Write(p []byte) (int, error)
	Stat() (os.FileInfo, error)
	Close() error
}

func openAppend(path string) (appendFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// CSVSink appends one row per report, writing the header when the file is new.
type CSVSink struct {
	mu   sync.Mutex
	path string
	open func(path string) (appendFile, error)
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path, open: openAppend}
}

func (s *CSVSink) Name() string { return "csv" }

func (s *CSVSink) Write(r Report) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	f, err := s.open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open csv results: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close csv results: %w", closeErr))
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat csv results: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("failed to write csv header: %w", err)
		}
	}
	if err := w.Write(r.csvRecord()); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	w.Flush()
	return w.Error()
}

// resultsFile is the on-disk layout of TOMLSink.
type resultsFile struct {
	Version int      `toml:"version"`
	Runs    []Report `toml:"runs"`
}

// TOMLSink keeps every report in a TOML results file as [[runs]] entries.
type TOMLSink struct {
	mu   sync.Mutex
	path string
}

func NewTOMLSink(path string) *TOMLSink {
	return &TOMLSink{path: path}
}

func (s *TOMLSink) Name() string { return "toml" }

func (s *TOMLSink) Write(r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := LoadResults(s.path)
	if err != nil {
		return err
	}
	results = append(results, r)

	data, err := toml.Marshal(resultsFile{Version: 1, Runs: results})
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create results directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// LoadResults reads a TOML results file. A missing file yields no runs.
func LoadResults(path string) ([]Report, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}

	var file resultsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return file.Runs, nil
}

// MultiSink fans a report out to several sinks. Every sink is attempted.
type MultiSink []Sink

func (m MultiSink) Name() string { return "multi" }

func (m MultiSink) Write(r Report) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Write(r); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Report) error

func (f SinkFunc) Name() string         { return "func" }
func (f SinkFunc) Write(r Report) error { return f(r) }

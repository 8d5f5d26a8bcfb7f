// Package jobs loads named encode jobs from a TOML file.
package jobs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/encbench/internal/codec"
	"github.com/smazurov/encbench/internal/encoder"
)

const DefaultPath = "jobs.toml"

// Job is one named encode run.
type Job struct {
	Name       string         `toml:"-" json:"name"`
	Input      string         `toml:"input" json:"input" doc:"Path of the raw input stream"`
	Codec      string         `toml:"codec,omitempty" json:"codec,omitempty" doc:"Codec name; empty selects by mime"`
	Mime       string         `toml:"mime" json:"mime"`
	Async      bool           `toml:"async" json:"async"`
	Repeat     int            `toml:"repeat,omitempty" json:"repeat,omitempty" doc:"Number of runs, at least 1"`
	Output     string         `toml:"output,omitempty" json:"output,omitempty" doc:"File receiving the encoded stream"`
	RTPAddress string         `toml:"rtp_address,omitempty" json:"rtp_address,omitempty" doc:"UDP host:port receiving RTP packets"`
	Params     encoder.Params `toml:"params" json:"params"`
}

// Runs returns the number of times the job should be run.
func (j Job) Runs() int {
	if j.Repeat < 1 {
		return 1
	}
	return j.Repeat
}

// Validate checks the fields a run cannot do without.
func (j Job) Validate() error {
	var errs []error
	if j.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if j.Input == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if j.Mime == "" && j.Codec == "" {
		errs = append(errs, errors.New("mime or codec is required"))
	}
	if j.Mime != "" && !codec.IsVideo(j.Mime) && !codec.IsAudio(j.Mime) {
		errs = append(errs, fmt.Errorf("unsupported mime %q", j.Mime))
	}
	if j.Repeat < 0 {
		errs = append(errs, errors.New("repeat must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("job %q: %w", j.Name, errors.Join(errs...))
	}
	return nil
}

// file is the on-disk layout.
type file struct {
	Version int            `toml:"version"`
	Jobs    map[string]Job `toml:"jobs"`
}

// Store holds the jobs of one file.
type Store struct {
	path string

	mu   sync.RWMutex
	jobs map[string]Job
}

// NewStore creates an empty store bound to path.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{
		path: path,
		jobs: make(map[string]Job),
	}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the store contents with the file. A missing file yields an
// empty store. Invalid jobs fail the whole load and leave the store as it was.
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.mu.Lock()
		s.jobs = make(map[string]Job)
		s.mu.Unlock()
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read jobs file: %w", err)
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse jobs file: %w", err)
	}

	jobs := make(map[string]Job, len(f.Jobs))
	for name, j := range f.Jobs {
		j.Name = name
		j.Params = j.Params.Normalize()
		if err := j.Validate(); err != nil {
			return err
		}
		jobs[name] = j
	}

	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	return nil
}

// Save writes the store to its file.
func (s *Store) Save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create jobs directory: %w", err)
	}

	s.mu.RLock()
	f := file{Version: 1, Jobs: make(map[string]Job, len(s.jobs))}
	for name, j := range s.jobs {
		f.Jobs[name] = j
	}
	s.mu.RUnlock()

	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal jobs: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write jobs file: %w", err)
	}
	return nil
}

// Put adds or replaces a job in memory.
func (s *Store) Put(j Job) error {
	if err := j.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.jobs[j.Name] = j
	s.mu.Unlock()
	return nil
}

// Get returns the named job.
func (s *Store) Get(name string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[name]
	return j, ok
}

// List returns all jobs sorted by name.
func (s *Store) List() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Len returns the number of jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

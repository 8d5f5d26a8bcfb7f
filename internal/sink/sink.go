package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/smazurov/encbench/internal/codec"
)

// Sink consumes drained output buffers. WriteSample is called from the codec
// callback path and must not retain payload.
type Sink interface {
	WriteSample(payload []byte, info codec.BufferInfo) error
	Close() error
}

// Discard counts samples and bytes and drops the payload.
type Discard struct {
	samples atomic.Int64
	bytes   atomic.Int64
}

func (d *Discard) WriteSample(payload []byte, _ codec.BufferInfo) error {
	d.samples.Add(1)
	d.bytes.Add(int64(len(payload)))
	return nil
}

func (d *Discard) Close() error { return nil }

// Samples returns the number of samples written.
func (d *Discard) Samples() int64 { return d.samples.Load() }

// Bytes returns the number of payload bytes written.
func (d *Discard) Bytes() int64 { return d.bytes.Load() }

// File writes payloads back to back as an elementary stream.
type File struct {
	f *os.File
	w *bufio.Writer
}

// CreateFile truncates or creates path.
func CreateFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &File{f: f, w: bufio.NewWriterSize(f, 1<<20)}, nil
}

func (s *File) WriteSample(payload []byte, _ codec.BufferInfo) error {
	_, err := s.w.Write(payload)
	return err
}

func (s *File) Close() error {
	return errors.Join(s.w.Flush(), s.f.Close())
}

// Multi writes every sample to all sinks, stopping at the first error.
type Multi []Sink

func (m Multi) WriteSample(payload []byte, info codec.BufferInfo) error {
	for _, s := range m {
		if err := s.WriteSample(payload, info); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

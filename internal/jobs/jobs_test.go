package jobs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smazurov/encbench/internal/encoder"
)

const sampleJobs = `
version = 1

[jobs.raw-720p]
input = "/data/720p.yuv"
mime = "video/raw"
async = true
repeat = 3

[jobs.raw-720p.params]
width = 1280
height = 720
frame_rate = 25

[jobs.pcm]
input = "/data/tone.pcm"
mime = "audio/raw"

[jobs.pcm.params]
sample_rate = 48000
num_channels = 2
`

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewStoreDefaultPath(t *testing.T) {
	if got := NewStore("").Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "missing.toml"))
	if err := s.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected no jobs, got %d", s.Len())
	}
}

func TestLoadJobs(t *testing.T) {
	s := NewStore(writeFile(t, sampleJobs))
	if err := s.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(list))
	}
	if list[0].Name != "pcm" || list[1].Name != "raw-720p" {
		t.Errorf("unexpected order: %s, %s", list[0].Name, list[1].Name)
	}

	j, ok := s.Get("raw-720p")
	if !ok {
		t.Fatal("raw-720p not found")
	}
	if !j.Async || j.Runs() != 3 {
		t.Errorf("async=%v runs=%d", j.Async, j.Runs())
	}
	if j.Params.Width != 1280 || j.Params.Height != 720 || j.Params.FrameRate != 25 {
		t.Errorf("params not decoded: %+v", j.Params)
	}
	if j.Params.Bitrate != encoder.Unset {
		t.Errorf("bitrate = %d, want Unset", j.Params.Bitrate)
	}

	pcm, _ := s.Get("pcm")
	if pcm.Async || pcm.Runs() != 1 {
		t.Errorf("pcm async=%v runs=%d", pcm.Async, pcm.Runs())
	}
}

func TestLoadInvalidJobKeepsPrevious(t *testing.T) {
	path := writeFile(t, sampleJobs)
	s := NewStore(path)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}

	bad := "[jobs.broken]\nmime = \"video/raw\"\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	err := s.Load()
	if err == nil || !strings.Contains(err.Error(), "input is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
	if s.Len() != 2 {
		t.Errorf("store changed after failed load: %d jobs", s.Len())
	}
}

func TestLoadMalformed(t *testing.T) {
	s := NewStore(writeFile(t, "[jobs.x\n"))
	if err := s.Load(); err == nil {
		t.Error("expected parse error")
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "jobs.toml")
	s := NewStore(path)

	p := encoder.DefaultParams()
	p.Width, p.Height = 64, 48
	if err := s.Put(Job{Name: "tiny", Input: "in.yuv", Mime: "video/raw", Params: p}); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := NewStore(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	j, ok := reloaded.Get("tiny")
	if !ok {
		t.Fatal("tiny not found after reload")
	}
	if j.Params.Width != 64 || j.Input != "in.yuv" {
		t.Errorf("unexpected job after reload: %+v", j)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{"valid", Job{Name: "a", Input: "x", Mime: "video/raw"}, false},
		{"codec only", Job{Name: "a", Input: "x", Codec: "c2.soft.zstd.encoder"}, false},
		{"missing input", Job{Name: "a", Mime: "video/raw"}, true},
		{"missing mime and codec", Job{Name: "a", Input: "x"}, true},
		{"bad mime", Job{Name: "a", Input: "x", Mime: "text/plain"}, true},
		{"negative repeat", Job{Name: "a", Input: "x", Mime: "audio/raw", Repeat: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

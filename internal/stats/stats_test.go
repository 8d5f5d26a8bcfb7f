package stats

import (
	"bytes"
	"encoding/csv"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeClock returns successive instants from a fixed base.
type fakeClock struct {
	base  time.Time
	steps []time.Duration
	i     int
}

func (c *fakeClock) now() time.Time {
	d := c.steps[c.i]
	if c.i < len(c.steps)-1 {
		c.i++
	}
	return c.base.Add(d)
}

func TestTimer(t *testing.T) {
	clock := &fakeClock{base: time.Unix(1000, 0), steps: []time.Duration{0, 1500 * time.Microsecond}}
	timer := &Timer{now: clock.now}

	if timer.Elapsed() != 0 {
		t.Error("unstarted timer should report zero")
	}
	timer.Start()
	timer.Stop()
	timer.Stop()

	if got := timer.ElapsedUs(); got != 1500 {
		t.Errorf("ElapsedUs() = %d, want 1500", got)
	}
	if !timer.StartedAt().Equal(time.Unix(1000, 0)) {
		t.Errorf("StartedAt() = %v", timer.StartedAt())
	}
}

func TestCollectorReport(t *testing.T) {
	ms := time.Millisecond
	clock := &fakeClock{
		base: time.Unix(2000, 0),
		// start, then outputs at 10ms, 20ms, 50ms, 100ms
		steps: []time.Duration{0, 10 * ms, 20 * ms, 50 * ms, 100 * ms},
	}
	c := &Collector{now: clock.now}
	c.SetInitTime(3 * ms)
	c.SetStartTime()
	for _, size := range []int{100, 200, 300, 400} {
		c.AddOutput(size)
	}

	r := c.Report(RunInfo{Input: "in.yuv", Codec: "c2.test", FramesFed: 4, FramesProduced: 4}, 200_000)

	checks := []struct {
		name      string
		got, want int64
	}{
		{"setup", r.SetupTimeUs, 3000},
		{"total", r.TotalTimeUs, 100_000},
		{"first frame", r.TimeToFirstFrameUs, 10_000},
		{"min interval", r.MinOutputIntervalUs, 10_000},
		{"max interval", r.MaxOutputIntervalUs, 50_000},
		{"avg per frame", r.AvgTimePerFrameUs, 25_000},
		{"per second of content", r.TimeToProcessOneSecondUs, 500_000},
		{"bytes", r.TotalBytes, 1000},
	}
	for _, tc := range checks {
		if tc.got != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, tc.got, tc.want)
		}
	}
	if r.FPS != 40 {
		t.Errorf("FPS = %v, want 40", r.FPS)
	}
	if r.BytesPerSecond != 10_000 {
		t.Errorf("BytesPerSecond = %v, want 10000", r.BytesPerSecond)
	}
	if r.EffectiveBitrate != 40_000 {
		t.Errorf("EffectiveBitrate = %v, want 40000", r.EffectiveBitrate)
	}
	if r.Status != StatusCompleted || r.Mode != "sync" {
		t.Errorf("status/mode = %s/%s", r.Status, r.Mode)
	}
}

func TestCollectorReportWithoutOutput(t *testing.T) {
	c := NewCollector()
	c.SetStartTime()
	r := c.Report(RunInfo{Async: true, Err: errors.New("boom")}, 0)

	if !r.Failed() || r.Error != "boom" {
		t.Errorf("report = %+v, want failed with error", r)
	}
	if r.TotalTimeUs != 0 || r.FPS != 0 {
		t.Errorf("empty run should have no throughput, got %+v", r)
	}
}

func TestCollectorReset(t *testing.T) {
	c := NewCollector()
	c.SetStartTime()
	c.AddInputTime()
	c.AddOutput(10)
	c.Reset()

	r := c.Report(RunInfo{}, 0)
	if r.TotalBytes != 0 || !r.StartedAt.IsZero() {
		t.Errorf("Reset left data behind: %+v", r)
	}
}

func TestCSVSinkWritesHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "results.csv")
	sink := NewCSVSink(path)

	for _, input := range []string{"a.yuv", "b.yuv"} {
		if err := sink.Write(Report{Input: input, Status: StatusCompleted}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if rows[0][1] != "input" || rows[2][1] != "b.yuv" {
		t.Errorf("unexpected rows: %v", rows)
	}
}

// failingCloseFile writes through to a real file but fails on Close.
type failingCloseFile struct {
	*os.File
}

func (f failingCloseFile) Close() error {
	_ = f.File.Close()
	return errors.New("disk full")
}

func TestCSVSinkReportsCloseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	sink := NewCSVSink(path)
	sink.open = func(p string) (appendFile, error) {
		f, err := os.OpenFile(p, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		return failingCloseFile{f}, nil
	}

	err := sink.Write(Report{Input: "a.yuv", Status: StatusCompleted})
	if err == nil {
		t.Fatal("Write() error = nil, want close error")
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Write() error = %v, want it to mention the close failure", err)
	}
}

func TestTOMLSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.toml")
	sink := NewTOMLSink(path)

	if err := sink.Write(Report{Input: "a", FramesProduced: 3}); err != nil {
		t.Fatal(err)
	}
	if err := sink.Write(Report{Input: "b", Status: StatusFailed, Error: "stall"}); err != nil {
		t.Fatal(err)
	}

	runs, err := LoadResults(path)
	if err != nil {
		t.Fatalf("LoadResults() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].FramesProduced != 3 || runs[1].Error != "stall" {
		t.Errorf("runs = %+v", runs)
	}

	missing, err := LoadResults(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil || missing != nil {
		t.Errorf("missing file = %v, %v; want nil, nil", missing, err)
	}
}

func TestMultiSinkAttemptsAll(t *testing.T) {
	var buf bytes.Buffer
	logSink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))
	failing := SinkFunc(func(Report) error { return errors.New("disk full") })
	var seen int
	counting := SinkFunc(func(Report) error { seen++; return nil })

	err := MultiSink{failing, logSink, nil, counting}.Write(Report{Input: "x.pcm", Status: StatusCompleted})
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Write() error = %v, want disk full", err)
	}
	if seen != 1 {
		t.Errorf("counting sink called %d times, want 1", seen)
	}
	if !strings.Contains(buf.String(), "input=x.pcm") {
		t.Errorf("log sink output = %s", buf.String())
	}
}

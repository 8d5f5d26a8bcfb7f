package stats

import (
	"strconv"
	"time"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Report is the outcome of one encode run. Durations are microseconds.
type Report struct {
	Job       string    `toml:"job,omitempty" json:"job,omitempty"`
	Input     string    `toml:"input" json:"input"`
	Codec     string    `toml:"codec" json:"codec"`
	Mime      string    `toml:"mime" json:"mime"`
	Mode      string    `toml:"mode" json:"mode" enum:"sync,async"`
	Status    string    `toml:"status" json:"status" enum:"completed,failed"`
	Error     string    `toml:"error,omitempty" json:"error,omitempty"`
	StartedAt time.Time `toml:"started_at" json:"started_at"`

	ElapsedUs                int64 `toml:"elapsed_us" json:"elapsed_us"`
	SetupTimeUs              int64 `toml:"setup_time_us" json:"setup_time_us"`
	TotalTimeUs              int64 `toml:"total_time_us" json:"total_time_us"`
	TimeToFirstFrameUs       int64 `toml:"time_to_first_frame_us" json:"time_to_first_frame_us"`
	MinOutputIntervalUs      int64 `toml:"min_output_interval_us" json:"min_output_interval_us"`
	MaxOutputIntervalUs      int64 `toml:"max_output_interval_us" json:"max_output_interval_us"`
	AvgTimePerFrameUs        int64 `toml:"avg_time_per_frame_us" json:"avg_time_per_frame_us"`
	AvgInputIntervalUs       int64 `toml:"avg_input_interval_us" json:"avg_input_interval_us"`
	TimeToProcessOneSecondUs int64 `toml:"time_to_process_one_second_us" json:"time_to_process_one_second_us"`
	ContentUs                int64 `toml:"content_us" json:"content_us"`

	FramesFed        int64   `toml:"frames_fed" json:"frames_fed"`
	FramesProduced   int64   `toml:"frames_produced" json:"frames_produced"`
	TotalBytes       int64   `toml:"total_bytes" json:"total_bytes"`
	FPS              float64 `toml:"fps" json:"fps"`
	BytesPerSecond   float64 `toml:"bytes_per_second" json:"bytes_per_second"`
	EffectiveBitrate float64 `toml:"effective_bitrate" json:"effective_bitrate" doc:"Output bits per second of content"`
}

// Failed reports whether the run ended in error.
func (r Report) Failed() bool {
	return r.Status == StatusFailed
}

// LogArgs flattens the report into slog key/value pairs.
func (r Report) LogArgs() []any {
	args := []any{
		"input", r.Input,
		"codec", r.Codec,
		"mode", r.Mode,
		"status", r.Status,
		"frames_fed", r.FramesFed,
		"frames_produced", r.FramesProduced,
		"total_bytes", r.TotalBytes,
		"elapsed_us", r.ElapsedUs,
		"setup_us", r.SetupTimeUs,
		"total_us", r.TotalTimeUs,
		"first_frame_us", r.TimeToFirstFrameUs,
		"min_interval_us", r.MinOutputIntervalUs,
		"max_interval_us", r.MaxOutputIntervalUs,
		"avg_frame_us", r.AvgTimePerFrameUs,
		"fps", strconv.FormatFloat(r.FPS, 'f', 2, 64),
		"bytes_per_sec", strconv.FormatFloat(r.BytesPerSecond, 'f', 0, 64),
	}
	if r.Job != "" {
		args = append([]any{"job", r.Job}, args...)
	}
	if r.Error != "" {
		args = append(args, "error", r.Error)
	}
	return args
}

// csvHeader is the column order used by CSVSink.
var csvHeader = []string{
	"job", "input", "codec", "mime", "mode", "status", "started_at",
	"elapsed_us", "setup_time_us", "total_time_us", "time_to_first_frame_us",
	"min_output_interval_us", "max_output_interval_us", "avg_time_per_frame_us", "avg_input_interval_us",
	"time_to_process_one_second_us", "content_us",
	"frames_fed", "frames_produced", "total_bytes", "fps", "bytes_per_second", "effective_bitrate",
	"error",
}

func (r Report) csvRecord() []string {
	i := func(v int64) string { return strconv.FormatInt(v, 10) }
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	return []string{
		r.Job, r.Input, r.Codec, r.Mime, r.Mode, r.Status, r.StartedAt.Format(time.RFC3339Nano),
		i(r.ElapsedUs), i(r.SetupTimeUs), i(r.TotalTimeUs), i(r.TimeToFirstFrameUs),
		i(r.MinOutputIntervalUs), i(r.MaxOutputIntervalUs), i(r.AvgTimePerFrameUs), i(r.AvgInputIntervalUs),
		i(r.TimeToProcessOneSecondUs), i(r.ContentUs),
		i(r.FramesFed), i(r.FramesProduced), i(r.TotalBytes), f(r.FPS), f(r.BytesPerSecond), f(r.EffectiveBitrate),
		r.Error,
	}
}

package events

import "github.com/smazurov/encbench/internal/stats"

// Event type constants for kelindar/event.
const (
	TypeRunStateChanged uint32 = iota + 1
	TypeFormatChanged
	TypeRunCompleted
	TypeJobsReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// RunStateChangedEvent is published on every encode run state transition.
type RunStateChangedEvent struct {
	Job       string `json:"job" example:"avc-720p" doc:"Job name"`
	Worker    int    `json:"worker" doc:"Runner worker that owns the encoder"`
	OldState  string `json:"old_state" example:"running" doc:"Previous state"`
	NewState  string `json:"new_state" example:"completed" doc:"New state"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RunStateChangedEvent.
func (e RunStateChangedEvent) Type() uint32 { return TypeRunStateChanged }

// FormatChangedEvent carries the output format a codec negotiated.
type FormatChangedEvent struct {
	Job       string            `json:"job" example:"avc-720p" doc:"Job name"`
	Format    map[string]string `json:"format" doc:"Output format keys and values"`
	Timestamp string            `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FormatChangedEvent.
func (e FormatChangedEvent) Type() uint32 { return TypeFormatChanged }

// RunCompletedEvent carries the statistics of a finished run.
type RunCompletedEvent struct {
	Report    stats.Report `json:"report" doc:"Run statistics"`
	Timestamp string       `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for RunCompletedEvent.
func (e RunCompletedEvent) Type() uint32 { return TypeRunCompleted }

// JobsReloadedEvent is published when the job file is loaded again.
type JobsReloadedEvent struct {
	Path      string `json:"path" example:"jobs.toml" doc:"Job file path"`
	Count     int    `json:"count" example:"3" doc:"Number of jobs loaded"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JobsReloadedEvent.
func (e JobsReloadedEvent) Type() uint32 { return TypeJobsReloaded }

package bench

import (
	"time"

	"github.com/smazurov/encbench/internal/stats"
)

// Status is the scheduling state of a job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Busy reports whether the job is queued or running.
func (s Status) Busy() bool {
	return s == StatusQueued || s == StatusRunning
}

// Info describes the latest execution of a job.
type Info struct {
	Job        string         `json:"job"`
	Status     Status         `json:"status" enum:"idle,queued,running,completed,failed"`
	Worker     int            `json:"worker" doc:"Worker that ran the job, -1 if none"`
	QueuedAt   time.Time      `json:"queued_at,omitempty"`
	StartedAt  time.Time      `json:"started_at,omitempty"`
	FinishedAt time.Time      `json:"finished_at,omitempty"`
	Runs       int            `json:"runs" doc:"Runs finished in the latest execution"`
	LastError  string         `json:"last_error,omitempty"`
	Results    []stats.Report `json:"results,omitempty"`
}

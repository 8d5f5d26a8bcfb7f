package models

import (
	"github.com/smazurov/encbench/internal/bench"
	"github.com/smazurov/encbench/internal/codec"
	"github.com/smazurov/encbench/internal/jobs"
	"github.com/smazurov/encbench/internal/metrics"
	"github.com/smazurov/encbench/internal/stats"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" example:"42" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Operating system and architecture"`
}

type VersionResponse struct {
	Body VersionData
}

// Codec models
type CodecData struct {
	VideoCodecs []codec.Info `json:"video_codecs" doc:"Registered video encoders"`
	AudioCodecs []codec.Info `json:"audio_codecs" doc:"Registered audio encoders"`
	Count       int          `json:"count" example:"3" doc:"Total number of codecs"`
}

type CodecsResponse struct {
	Body CodecData
}

// Job models
type JobData struct {
	jobs.Job
	Status     bench.Status        `json:"status" enum:"idle,queued,running,completed,failed" doc:"Latest execution status"`
	LastError  string              `json:"last_error,omitempty" doc:"Error of the latest execution"`
	Runs       int                 `json:"runs" doc:"Runs finished in the latest execution"`
	Aggregates *metrics.JobMetrics `json:"aggregates,omitempty" doc:"Totals across all executions"`
}

type JobListData struct {
	Jobs  []JobData `json:"jobs" doc:"Configured jobs"`
	Count int       `json:"count" example:"2" doc:"Number of jobs"`
}

type JobListResponse struct {
	Body JobListData
}

type JobInput struct {
	Name string `path:"name" example:"raw-720p" doc:"Job name"`
}

type JobResponse struct {
	Body JobData
}

type RunJobResponse struct {
	Body RunJobData
}

type RunJobData struct {
	Job     string       `json:"job" example:"raw-720p" doc:"Job name"`
	Status  bench.Status `json:"status" example:"queued" doc:"Status after submission"`
	Message string       `json:"message" example:"Job queued" doc:"Status message"`
}

type ResultsData struct {
	Job     string         `json:"job" example:"raw-720p" doc:"Job name"`
	Status  bench.Status   `json:"status" doc:"Latest execution status"`
	Results []stats.Report `json:"results" doc:"Reports of the latest execution"`
}

type ResultsResponse struct {
	Body ResultsData
}

// SSE models
type ConnectedData struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Status message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Connection timestamp"`
}

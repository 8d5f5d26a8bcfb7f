// Package metrics provides Prometheus metrics for encode runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/encbench/internal/stats"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encbench",
		Subsystem: "encoder",
		Name:      "runs_total",
		Help:      "Finished encode runs by codec and status",
	}, []string{"codec", "status"})

	framesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encbench",
		Subsystem: "encoder",
		Name:      "frames_produced_total",
		Help:      "Encoded frames drained from the codec",
	}, []string{"codec"})

	bytesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "encbench",
		Subsystem: "encoder",
		Name:      "bytes_produced_total",
		Help:      "Encoded bytes drained from the codec",
	}, []string{"codec"})

	encodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "encbench",
		Subsystem: "encoder",
		Name:      "encode_duration_seconds",
		Help:      "Wall time from codec start to last output",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"codec", "mode"})

	jobFPS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "encbench",
		Subsystem: "job",
		Name:      "fps",
		Help:      "Output frames per second of the last run",
	}, []string{"job"})

	jobFirstFrame = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "encbench",
		Subsystem: "job",
		Name:      "time_to_first_frame_seconds",
		Help:      "Time to first encoded frame of the last run",
	}, []string{"job"})

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "encbench",
		Subsystem: "encoder",
		Name:      "active_runs",
		Help:      "Encode runs currently in progress",
	})

	// Local cache for API access.
	jobCache   = make(map[string]*JobMetrics)
	jobCacheMu sync.RWMutex
)

// JobMetrics holds the last recorded values for a job.
type JobMetrics struct {
	Runs               int64   `json:"runs"`
	Failures           int64   `json:"failures"`
	FPS                float64 `json:"fps"`
	TimeToFirstFrameUs int64   `json:"time_to_first_frame_us"`
	BytesPerSecond     float64 `json:"bytes_per_second"`
}

// RunStarted marks an encode run as in progress.
func RunStarted() {
	activeRuns.Inc()
}

// RunFinished marks an encode run as done.
func RunFinished() {
	activeRuns.Dec()
}

// RecordReport folds a finished run into the exported metrics.
func RecordReport(r stats.Report) {
	runsTotal.WithLabelValues(r.Codec, r.Status).Inc()
	if r.FramesProduced > 0 {
		framesProduced.WithLabelValues(r.Codec).Add(float64(r.FramesProduced))
	}
	if r.TotalBytes > 0 {
		bytesProduced.WithLabelValues(r.Codec).Add(float64(r.TotalBytes))
	}
	if !r.Failed() {
		encodeDuration.WithLabelValues(r.Codec, r.Mode).Observe(float64(r.TotalTimeUs) / 1e6)
	}

	if r.Job == "" {
		return
	}
	if !r.Failed() {
		jobFPS.WithLabelValues(r.Job).Set(r.FPS)
		jobFirstFrame.WithLabelValues(r.Job).Set(float64(r.TimeToFirstFrameUs) / 1e6)
	}
	updateCache(r.Job, func(m *JobMetrics) {
		m.Runs++
		if r.Failed() {
			m.Failures++
			return
		}
		m.FPS = r.FPS
		m.TimeToFirstFrameUs = r.TimeToFirstFrameUs
		m.BytesPerSecond = r.BytesPerSecond
	})
}

// DeleteJobMetrics removes all per-job metrics.
func DeleteJobMetrics(job string) {
	jobFPS.DeleteLabelValues(job)
	jobFirstFrame.DeleteLabelValues(job)

	jobCacheMu.Lock()
	delete(jobCache, job)
	jobCacheMu.Unlock()
}

// GetJobMetrics returns current metric values for a job.
func GetJobMetrics(job string) *JobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	if m, ok := jobCache[job]; ok {
		dup := *m
		return &dup
	}
	return nil
}

// GetAllJobMetrics returns metrics for every job seen so far.
func GetAllJobMetrics() map[string]*JobMetrics {
	jobCacheMu.RLock()
	defer jobCacheMu.RUnlock()
	result := make(map[string]*JobMetrics, len(jobCache))
	for id, m := range jobCache {
		dup := *m
		result[id] = &dup
	}
	return result
}

func updateCache(job string, update func(*JobMetrics)) {
	jobCacheMu.Lock()
	defer jobCacheMu.Unlock()
	m, ok := jobCache[job]
	if !ok {
		m = &JobMetrics{}
		jobCache[job] = m
	}
	update(m)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ReportSink records reports as it receives them.
type ReportSink struct{}

func (ReportSink) Name() string { return "prometheus" }

func (ReportSink) Write(r stats.Report) error {
	RecordReport(r)
	return nil
}

package stats

import (
	"sync"
	"time"
)

// RunInfo identifies a run and carries the driver's own counters.
type RunInfo struct {
	Job            string
	Input          string
	Codec          string
	Mime           string
	Async          bool
	FramesFed      int64
	FramesProduced int64
	ElapsedUs      int64
	Err            error
}

// Collector records per-frame timestamps during an encode run.
type Collector struct {
	mu         sync.Mutex
	now        func() time.Time
	setup      time.Duration
	start      time.Time
	inputs     []time.Time
	outputs    []time.Time
	frameSizes []int
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// SetInitTime records how long codec setup took.
func (c *Collector) SetInitTime(d time.Duration) {
	c.mu.Lock()
	c.setup = d
	c.mu.Unlock()
}

// SetStartTime marks the beginning of the encode loop.
func (c *Collector) SetStartTime() {
	c.mu.Lock()
	c.start = c.clock()
	c.mu.Unlock()
}

// AddInputTime records that an input buffer was queued.
func (c *Collector) AddInputTime() {
	c.mu.Lock()
	c.inputs = append(c.inputs, c.clock())
	c.mu.Unlock()
}

// AddOutput records a drained output buffer of size bytes.
func (c *Collector) AddOutput(size int) {
	c.mu.Lock()
	c.outputs = append(c.outputs, c.clock())
	c.frameSizes = append(c.frameSizes, size)
	c.mu.Unlock()
}

// Reset clears everything recorded so far.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setup = 0
	c.start = time.Time{}
	c.inputs = c.inputs[:0]
	c.outputs = c.outputs[:0]
	c.frameSizes = c.frameSizes[:0]
}

// Report derives throughput and latency figures. durationUs is the length
// of the input content, used to express cost per second of media.
func (c *Collector) Report(info RunInfo, durationUs int64) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		Job:            info.Job,
		Input:          info.Input,
		Codec:          info.Codec,
		Mime:           info.Mime,
		Mode:           modeName(info.Async),
		Status:         StatusCompleted,
		StartedAt:      c.start,
		ElapsedUs:      info.ElapsedUs,
		SetupTimeUs:    c.setup.Microseconds(),
		FramesFed:      info.FramesFed,
		FramesProduced: info.FramesProduced,
		ContentUs:      durationUs,
	}
	if info.Err != nil {
		r.Status = StatusFailed
		r.Error = info.Err.Error()
	}

	for _, size := range c.frameSizes {
		r.TotalBytes += int64(size)
	}
	if n := len(c.inputs); n > 1 {
		r.AvgInputIntervalUs = c.inputs[n-1].Sub(c.inputs[0]).Microseconds() / int64(n-1)
	}
	if len(c.outputs) == 0 || c.start.IsZero() {
		return r
	}

	total := c.outputs[len(c.outputs)-1].Sub(c.start)
	r.TotalTimeUs = total.Microseconds()
	r.TimeToFirstFrameUs = c.outputs[0].Sub(c.start).Microseconds()
	r.AvgTimePerFrameUs = total.Microseconds() / int64(len(c.outputs))

	if len(c.outputs) > 1 {
		minInterval, maxInterval := time.Duration(-1), time.Duration(0)
		for i := 1; i < len(c.outputs); i++ {
			d := c.outputs[i].Sub(c.outputs[i-1])
			if minInterval < 0 || d < minInterval {
				minInterval = d
			}
			if d > maxInterval {
				maxInterval = d
			}
		}
		r.MinOutputIntervalUs = minInterval.Microseconds()
		r.MaxOutputIntervalUs = maxInterval.Microseconds()
	}

	if total > 0 {
		secs := total.Seconds()
		r.FPS = float64(len(c.outputs)) / secs
		r.BytesPerSecond = float64(r.TotalBytes) / secs
	}
	if durationUs > 0 {
		r.TimeToProcessOneSecondUs = total.Microseconds() * 1_000_000 / durationUs
		r.EffectiveBitrate = float64(r.TotalBytes*8) * 1e6 / float64(durationUs)
	}
	return r
}

func modeName(async bool) string {
	if async {
		return "async"
	}
	return "sync"
}

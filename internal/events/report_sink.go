package events

import (
	"time"

	"github.com/smazurov/encbench/internal/stats"
)

// ReportSink publishes every report as a RunCompletedEvent.
type ReportSink struct {
	bus *Bus
}

func NewReportSink(bus *Bus) *ReportSink {
	return &ReportSink{bus: bus}
}

func (s *ReportSink) Name() string { return "events" }

func (s *ReportSink) Write(r stats.Report) error {
	s.bus.Publish(RunCompletedEvent{Report: r, Timestamp: Now()})
	return nil
}

// Now formats the current time the way event timestamps are written.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// Package stats times encode runs and turns per-frame timestamps into a
// Report: setup cost, time to first frame, output cadence, throughput and the
// wall time needed per second of content. Reports are delivered to Sinks.
package stats

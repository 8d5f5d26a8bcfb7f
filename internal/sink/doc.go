// Package sink forwards drained encoder output: discard, elementary stream
// file, or RTP over UDP.
package sink

// Package soft is a software codec runtime implementing codec.Codec.
//
// Each Runtime runs an encode goroutine that pulls queued input through an
// Engine and, when a callback is registered, a dispatch goroutine that
// delivers events one at a time. Engines shipped here are raw passthrough
// for video and audio and a zstd frame compressor; they make the encode
// driver benchmarkable without hardware.
package soft

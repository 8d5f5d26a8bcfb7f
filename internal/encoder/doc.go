// Package encoder drives a codec through a complete encode run and measures
// it.
//
// A run moves through INIT, CONFIGURED and RUNNING to COMPLETED or FAILED,
// and always ends TORN_DOWN with the codec released. In synchronous mode the
// caller's goroutine dequeues, fills, queues and drains buffers itself. In
// asynchronous mode the Encoder registers itself as the codec's Callback and
// the caller blocks on a condition variable until the callbacks observe
// output end of stream or an error. Asynchronous runs have no timeout.
//
// Input is read from an io.ReaderAt in frame-sized chunks. When it is
// exhausted an empty buffer flagged end of stream is queued; the run
// completes when the codec returns a buffer carrying the same flag.
//
//	enc := encoder.New(encoder.Options{Registry: soft.NewRegistry()})
//	err := enc.Encode(encoder.Request{
//		Input:     f,
//		InputSize: size,
//		Mime:      "video/raw",
//		Async:     true,
//		Params:    params,
//	})
//	enc.ResetEncoder()
package encoder

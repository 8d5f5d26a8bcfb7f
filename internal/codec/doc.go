// Package codec defines the buffer-exchange contract between the encode driver
// and a codec runtime.
//
// A codec owns a pool of input and output buffers identified by index. In
// synchronous mode the caller dequeues an input buffer, fills and queues it,
// then dequeues and releases output buffers. In asynchronous mode the codec
// announces free input buffers and ready output buffers through a Callback,
// from its own goroutine.
//
// End of stream travels through the pipeline as a flag: the caller queues an
// (often empty) input buffer with FlagEndOfStream, and the codec emits a final
// output buffer carrying the same flag once everything before it is drained.
package codec

package encoder

import (
	"fmt"
	"io"
)

// cursor is a bounds-checked read position over the input. The offset only
// moves forward.
type cursor struct {
	src    io.ReaderAt
	offset int64
	size   int64
}

func (c *cursor) remaining() int64 {
	return c.size - c.offset
}

// readInto fills p from the current offset without advancing.
func (c *cursor) readInto(p []byte) error {
	if int64(len(p)) > c.remaining() {
		return fmt.Errorf("read of %d bytes past end of input at offset %d", len(p), c.offset)
	}
	n, err := c.src.ReadAt(p, c.offset)
	if n == len(p) {
		return nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("read %d of %d bytes at offset %d: %w", n, len(p), c.offset, err)
}

func (c *cursor) advance(n int) {
	c.offset += int64(n)
}

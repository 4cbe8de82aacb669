package bash

import "bytes"

// collector keeps at most maxBytes of a stream and discards the rest.
type collector struct {
	buffer    bytes.Buffer
	maxBytes  int
	truncated bool
}

func newCollector(maxBytes int) *collector {
	return &collector{maxBytes: maxBytes}
}

func (c *collector) Write(p []byte) (int, error) {
	remaining := c.maxBytes - c.buffer.Len()
	if remaining <= 0 {
		c.truncated = true

		return len(p), nil
	}

	toWrite := p
	if len(toWrite) > remaining {
		toWrite = toWrite[:remaining]
		c.truncated = true
	}

	written, err := c.buffer.Write(toWrite)
	if err != nil {
		return written, err
	}

	return len(p), nil
}

func (c *collector) String() string {
	return c.buffer.String()
}

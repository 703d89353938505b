package runner

import (
	"bytes"
	"sync"
)

// TruncatedMarker is appended to the captured output when it exceeded the limit.
const TruncatedMarker = "\n[output truncated]"

// boundedBuffer is an io.Writer that keeps up to limit bytes and discards the rest.
// A limit <= 0 means no limit.
type boundedBuffer struct {
	mu        sync.Mutex
	buffer    bytes.Buffer
	limit     int
	truncated bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

// Write never fails or does short writes, the process must not get a broken pipe
// because we stopped storing its output.
func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit <= 0 {
		return b.buffer.Write(p)
	}

	remaining := b.limit - b.buffer.Len()
	if remaining <= 0 {
		b.truncated = len(p) > 0 || b.truncated
		return len(p), nil
	}

	if len(p) > remaining {
		b.truncated = true
		_, _ = b.buffer.Write(p[:remaining])
		return len(p), nil
	}

	return b.buffer.Write(p)
}

// String returns the captured data, with TruncatedMarker at the end if data was discarded.
func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return b.buffer.String() + TruncatedMarker
	}
	return b.buffer.String()
}

// Truncated returns true if any data was discarded.
func (b *boundedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}

// Package frame implements newline-delimited message framing for the
// bridge's byte-stream transports. The assembler accumulates raw reads and
// yields one complete line per message, independent of how the bytes were
// split across reads; the writer serializes outbound lines so concurrent
// repliers never interleave.
package frame

import (
	"bytes"
	"io"
	"sync"
)

// Assembler turns an append-only byte stream into complete message
// payloads. Feed appends raw bytes as they arrive; Next drains complete
// newline-terminated segments. Partial trailing data stays buffered until
// the terminating newline arrives.
type Assembler struct {
	buf []byte
}

// Feed appends raw bytes from a read to the receive buffer
func (a *Assembler) Feed(p []byte) {
	a.buf = append(a.buf, p...)
}

// Next returns the next complete message payload, trimmed of surrounding
// whitespace, or false when no complete line is buffered. Blank lines are
// skipped; they carry no message.
func (a *Assembler) Next() ([]byte, bool) {
	for {
		i := bytes.IndexByte(a.buf, '\n')
		if i < 0 {
			return nil, false
		}
		line := bytes.TrimSpace(a.buf[:i])
		a.buf = a.buf[i+1:]
		if len(line) > 0 {
			return line, true
		}
	}
}

// Pending returns the number of buffered bytes not yet consumed
func (a *Assembler) Pending() int {
	return len(a.buf)
}

// Reset discards any buffered partial message
func (a *Assembler) Reset() {
	a.buf = nil
}

// Writer frames outbound payloads as newline-terminated lines. It is safe
// for concurrent use; each payload is written as one atomic line.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a line writer over w
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteLine writes one payload followed by a single newline
func (w *Writer) WriteLine(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, '\n')

	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	return nil
}

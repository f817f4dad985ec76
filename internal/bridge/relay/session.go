package relay

import (
	"io"
	"sync"

	"github.com/gorilla/websocket"

	"trinobridge/internal/shared/frame"
)

// Session is one logical JSON-RPC conversation with a caller. Read returns
// the next complete message payload; Write sends one payload back using
// the same framing. Write is safe for concurrent use, reads happen from a
// single goroutine.
type Session interface {
	Read() ([]byte, error)
	Write(payload []byte) error
	Close() error
	Remote() string
}

// streamSession frames a raw byte stream (TCP connection or the stdio
// pair) with newline-delimited messages.
type streamSession struct {
	r      io.Reader
	closer io.Closer
	asm    frame.Assembler
	out    *frame.Writer
	remote string
	rbuf   []byte
	eof    bool
}

func newStreamSession(r io.Reader, w io.Writer, closer io.Closer, remote string) *streamSession {
	return &streamSession{
		r:      r,
		closer: closer,
		out:    frame.NewWriter(w),
		remote: remote,
		rbuf:   make([]byte, 4096),
	}
}

// Read returns the next complete message, reading more bytes as needed.
// A final unterminated line before EOF is delivered as a last message.
func (s *streamSession) Read() ([]byte, error) {
	for {
		if line, ok := s.asm.Next(); ok {
			return line, nil
		}
		if s.eof {
			if s.asm.Pending() > 0 {
				s.asm.Feed([]byte{'\n'})
				continue
			}
			return nil, io.EOF
		}

		n, err := s.r.Read(s.rbuf)
		if n > 0 {
			s.asm.Feed(s.rbuf[:n])
		}
		if err == io.EOF {
			s.eof = true
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *streamSession) Write(payload []byte) error {
	return s.out.WriteLine(payload)
}

func (s *streamSession) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

func (s *streamSession) Remote() string {
	return s.remote
}

// wsSession carries one JSON-RPC message per WebSocket text message;
// the WebSocket frame replaces the newline as the message boundary.
type wsSession struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	remote  string
}

func newWSSession(conn *websocket.Conn) *wsSession {
	return &wsSession{
		conn:   conn,
		remote: conn.RemoteAddr().String(),
	}
}

func (s *wsSession) Read() ([]byte, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		// Tolerate newline-terminated and blank frames for parity with
		// the byte-stream transports
		asm := frame.Assembler{}
		asm.Feed(data)
		asm.Feed([]byte{'\n'})
		if line, ok := asm.Next(); ok {
			return line, nil
		}
	}
}

func (s *wsSession) Write(payload []byte) error {
	// gorilla connections allow at most one concurrent writer
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSession) Close() error {
	return s.conn.Close()
}

func (s *wsSession) Remote() string {
	return s.remote
}

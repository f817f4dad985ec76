package frame

import (
	"bytes"
	"sync"
	"testing"
)

func TestNextSingleLine(t *testing.T) {
	var a Assembler
	a.Feed([]byte("{\"jsonrpc\":\"2.0\"}\n"))

	line, ok := a.Next()
	if !ok {
		t.Fatal("Expected a complete line")
	}
	if string(line) != `{"jsonrpc":"2.0"}` {
		t.Errorf("Unexpected line: %s", line)
	}

	if _, ok := a.Next(); ok {
		t.Error("Expected no further lines")
	}
}

func TestNextPartialLine(t *testing.T) {
	var a Assembler
	a.Feed([]byte(`{"jsonrpc":`))

	if _, ok := a.Next(); ok {
		t.Fatal("Partial line should not be yielded")
	}

	a.Feed([]byte("\"2.0\"}\n"))
	line, ok := a.Next()
	if !ok {
		t.Fatal("Expected a complete line after the terminator arrived")
	}
	if string(line) != `{"jsonrpc":"2.0"}` {
		t.Errorf("Unexpected line: %s", line)
	}
}

func TestNextPipelinedMessages(t *testing.T) {
	var a Assembler
	a.Feed([]byte("{\"id\":1}\n{\"id\":2}\n"))

	first, ok := a.Next()
	if !ok || string(first) != `{"id":1}` {
		t.Errorf("Expected first message, got %q ok=%v", first, ok)
	}
	second, ok := a.Next()
	if !ok || string(second) != `{"id":2}` {
		t.Errorf("Expected second message, got %q ok=%v", second, ok)
	}
}

func TestNextSkipsBlankLines(t *testing.T) {
	var a Assembler
	a.Feed([]byte("\n  \n{\"id\":1}\n\r\n"))

	line, ok := a.Next()
	if !ok {
		t.Fatal("Expected a line past the blanks")
	}
	if string(line) != `{"id":1}` {
		t.Errorf("Unexpected line: %s", line)
	}
	if _, ok := a.Next(); ok {
		t.Error("Trailing blanks should yield nothing")
	}
}

func TestNextTrimsCarriageReturn(t *testing.T) {
	var a Assembler
	a.Feed([]byte("{\"id\":1}\r\n"))

	line, ok := a.Next()
	if !ok {
		t.Fatal("Expected a complete line")
	}
	if string(line) != `{"id":1}` {
		t.Errorf("Expected CR to be trimmed, got %q", line)
	}
}

// Framing must be read-boundary-independent: feeding the input one byte
// at a time yields the same message sequence as feeding it whole.
func TestReadBoundaryIndependence(t *testing.T) {
	input := []byte("{\"id\":1,\"method\":\"a\"}\n\n{\"id\":2}\n{\"id\":3,\"params\":{\"sql\":\"SELECT 1\"}}\n")

	collect := func(a *Assembler) []string {
		var out []string
		for {
			line, ok := a.Next()
			if !ok {
				break
			}
			out = append(out, string(line))
		}
		return out
	}

	var whole Assembler
	whole.Feed(input)
	expected := collect(&whole)

	var split Assembler
	var got []string
	for _, b := range input {
		split.Feed([]byte{b})
		got = append(got, collect(&split)...)
	}

	if len(got) != len(expected) {
		t.Fatalf("Expected %d messages, got %d", len(expected), len(got))
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Message %d: expected %q, got %q", i, expected[i], got[i])
		}
	}
}

func TestPendingAndReset(t *testing.T) {
	var a Assembler
	a.Feed([]byte("partial"))

	if a.Pending() != len("partial") {
		t.Errorf("Expected %d pending bytes, got %d", len("partial"), a.Pending())
	}

	a.Reset()
	if a.Pending() != 0 {
		t.Errorf("Expected empty buffer after reset, got %d bytes", a.Pending())
	}
}

func TestWriterTerminatesLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteLine([]byte(`{"id":1}`)); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	if err := w.WriteLine([]byte(`{"id":2}`)); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}

	if buf.String() != "{\"id\":1}\n{\"id\":2}\n" {
		t.Errorf("Unexpected output: %q", buf.String())
	}
}

func TestWriterConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.WriteLine([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`)); err != nil {
				t.Errorf("WriteLine failed: %v", err)
			}
		}()
	}
	wg.Wait()

	lines := bytes.Split(bytes.TrimSuffix(buf.Bytes(), []byte("\n")), []byte("\n"))
	if len(lines) != 20 {
		t.Fatalf("Expected 20 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if string(line) != `{"jsonrpc":"2.0","id":1,"result":{}}` {
			t.Errorf("Interleaved line: %q", line)
		}
	}
}

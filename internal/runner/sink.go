package runner

import (
	"io"
	"sync"
)

// Sink is a line oriented output destination. Implementations must be safe
// for concurrent use, as parallel operations share the same sinks.
type Sink interface {
	WriteLine(line string)
}

// WriterSink serializes lines onto an io.Writer.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteLine(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, line+"\n")
}

type discard struct{}

func (discard) WriteLine(string) {}

// Discard drops every line.
var Discard Sink = discard{}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(line string)

func (f SinkFunc) WriteLine(line string) {
	f(line)
}

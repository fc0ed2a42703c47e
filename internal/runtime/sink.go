package runtime

import (
	"io"
	"sync"
)

// switchWriter is an io.Writer whose destination can be swapped for the
// duration of one execution call and restored afterwards. The interpreter
// and the capability bindings hold the switchWriter itself, never the
// destination, so a swap retargets all of them at once.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func newSwitchWriter(w io.Writer) *switchWriter {
	return &switchWriter{w: w}
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	return w.Write(p)
}

// Swap points the writer at w and returns the previous destination.
func (s *switchWriter) Swap(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.w
	s.w = w
	return prev
}

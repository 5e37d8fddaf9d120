package hooklib

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
)

// WriterSink writes one tab separated line per event.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Record(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, "%s\t%s\t%d\t%d\t%d\t%d\n", e.Kind, e.Name, e.Depth, e.Elapsed.Nanoseconds(), e.Bytes, e.Objects)
}

type zapSink struct {
	l *zap.Logger
}

// NewZapSink logs events at debug level.
func NewZapSink(l *zap.Logger) Sink {
	return zapSink{l: l}
}

func (s zapSink) Record(e Event) {
	s.l.Debug("hook sample",
		zap.Stringer("kind", e.Kind),
		zap.String("name", e.Name),
		zap.Int("depth", e.Depth),
		zap.Duration("elapsed", e.Elapsed),
		zap.Uint64("bytes", e.Bytes),
		zap.Uint64("objects", e.Objects),
	)
}

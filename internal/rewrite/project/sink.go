package project

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ListenOcean/hookinjector/configs"
	"github.com/ListenOcean/hookinjector/internal/rewrite/syntax"

	"github.com/pkg/errors"
)

// Message is a batch of lines for one diagnostic log. All lines of a
// message are written together.
type Message struct {
	Log   string
	Lines []string
}

// Sink owns the diagnostic logs of a run. Producers post messages from any
// goroutine; a single consumer goroutine writes them.
type Sink struct {
	dir     string
	ch      chan Message
	done    chan struct{}
	once    sync.Once
	writers map[string]*bufio.Writer
	files   map[string]*os.File
	written map[string]int
	err     error
}

var sinkLogs = []string{
	configs.SyntaxErrorLog,
	configs.SyntaxWarningLog,
	configs.SemanticErrorLog,
	configs.SemanticWarningLog,
	configs.RewriteErrorLog,
}

// NewSink truncates the diagnostic logs in dir and starts the consumer.
func NewSink(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}
	s := &Sink{
		dir:     dir,
		ch:      make(chan Message, 64),
		done:    make(chan struct{}),
		writers: make(map[string]*bufio.Writer),
		files:   make(map[string]*os.File),
		written: make(map[string]int),
	}
	for _, name := range sinkLogs {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			s.closeFiles()
			return nil, errors.Wrap(err, "create log file")
		}
		s.files[name] = f
		s.writers[name] = bufio.NewWriter(f)
	}
	go s.run()
	return s, nil
}

func (s *Sink) run() {
	defer close(s.done)
	for m := range s.ch {
		w, ok := s.writers[m.Log]
		if !ok {
			if s.err == nil {
				s.err = errors.Errorf("unknown log %q", m.Log)
			}
			continue
		}
		for _, line := range m.Lines {
			if _, err := fmt.Fprintln(w, line); err != nil && s.err == nil {
				s.err = errors.Wrapf(err, "write %s", m.Log)
			}
		}
		s.written[m.Log] += len(m.Lines)
	}
}

// Post queues m. It must not be called after Close.
func (s *Sink) Post(m Message) {
	if len(m.Lines) > 0 {
		s.ch <- m
	}
}

// Close drains the queue and closes the logs. It is safe to call more than
// once.
func (s *Sink) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
		for name, w := range s.writers {
			if err := w.Flush(); err != nil && s.err == nil {
				s.err = errors.Wrapf(err, "flush %s", name)
			}
		}
		s.closeFiles()
	})
	return s.err
}

func (s *Sink) closeFiles() {
	for name, f := range s.files {
		if err := f.Close(); err != nil && s.err == nil {
			s.err = errors.Wrapf(err, "close %s", name)
		}
	}
}

// Lines returns how many lines were written to a log. Only valid after
// Close.
func (s *Sink) Lines(name string) int {
	return s.written[name]
}

func (s *Sink) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// postDiagnostics posts the diagnostics of one file, errors and warnings
// each under their own header. It reports whether any was an error.
func postDiagnostics(s *Sink, stage, file string, diags []syntax.Diagnostic) bool {
	errLog, warnLog := configs.SyntaxErrorLog, configs.SyntaxWarningLog
	if stage == "Semantic" {
		errLog, warnLog = configs.SemanticErrorLog, configs.SemanticWarningLog
	}
	var errs, warns []string
	for _, d := range diags {
		if d.Severity == syntax.SeverityError {
			if len(errs) == 0 {
				errs = append(errs, fmt.Sprintf("============<<<%s Error:%s>>>============", stage, file))
			}
			errs = append(errs, d.String())
		} else {
			if len(warns) == 0 {
				warns = append(warns, fmt.Sprintf("============<<<%s Warning:%s>>>============", stage, file))
			}
			warns = append(warns, d.String())
		}
	}
	s.Post(Message{Log: errLog, Lines: errs})
	s.Post(Message{Log: warnLog, Lines: warns})
	return len(errs) > 0
}

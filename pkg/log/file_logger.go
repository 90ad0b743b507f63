package log

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends events to a capture file. Every event reaches the file
// in a single write, so concurrent loggers never interleave partial events.
type FileLogger struct {
	path string

	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	enc    *cbor.Encoder
	fresh  bool
	closed bool

	written atomic.Uint64
	dropped atomic.Uint64
}

// NewFileLogger opens path for appending, creating it if needed. A new file
// receives the capture header with its first event.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	buf := bufio.NewWriter(f)
	return &FileLogger{
		path:  path,
		file:  f,
		buf:   buf,
		enc:   encMode.NewEncoder(buf),
		fresh: info.Size() == 0,
	}, nil
}

// Log appends the event. Failures and events logged after Close are
// counted as dropped; they never reach the caller.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.dropped.Add(1)
		return
	}
	if l.fresh {
		l.buf.Write(fileMagic)
	}
	if err := l.enc.Encode(event); err != nil {
		l.buf.Reset(l.file)
		l.dropped.Add(1)
		return
	}
	if err := l.buf.Flush(); err != nil {
		l.dropped.Add(1)
		return
	}
	l.fresh = false
	l.written.Add(1)
}

// Path returns the capture file path.
func (l *FileLogger) Path() string {
	return l.path
}

// Written returns the number of events stored.
func (l *FileLogger) Written() uint64 {
	return l.written.Load()
}

// Dropped returns the number of events that could not be stored.
func (l *FileLogger) Dropped() uint64 {
	return l.dropped.Load()
}

// Close flushes and closes the file. Further calls return nil.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return errors.Join(l.buf.Flush(), l.file.Close())
}

var _ Logger = (*FileLogger)(nil)

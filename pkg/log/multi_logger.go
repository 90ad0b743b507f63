package log

import (
	"errors"
	"io"
)

// MultiLogger fans events out to several sinks, typically a FileLogger for
// capture and a SlogAdapter for the console.
type MultiLogger struct {
	sinks []Logger
}

// NewMultiLogger creates a MultiLogger. Nil sinks are ignored.
func NewMultiLogger(sinks ...Logger) *MultiLogger {
	m := &MultiLogger{sinks: make([]Logger, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Log hands the event to every sink in order.
func (m *MultiLogger) Log(event Event) {
	for _, s := range m.sinks {
		s.Log(event)
	}
}

// Len returns the number of sinks.
func (m *MultiLogger) Len() int {
	return len(m.sinks)
}

// Close closes every sink that implements io.Closer and joins the errors.
func (m *MultiLogger) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

var _ Logger = (*MultiLogger)(nil)

// Package logger provides the logging interface used by every warpcas
// component. Login flows log ids, hosts, cookie names and step names only;
// passwords, tickets and cookie values never reach a logger.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger is implemented by every log backend.
type Logger interface {
	// Debug logs a diagnostic message (e.g., "GET authserver/login -> 200").
	// Backends drop it unless debug output is enabled.
	Debug(format string, args ...interface{})
	// Info logs an informational message (e.g., "listening on 127.0.0.1:3850").
	Info(format string, args ...interface{})
	// Warning logs a recoverable problem (e.g., "auth token rejected").
	Warning(format string, args ...interface{})
	// Error logs a failure (e.g., "open record store: disk full").
	Error(format string, args ...interface{})
	// Close releases the backend. Safe to call more than once.
	Close() error
}

// StandardLogger writes "[LEVEL] message" lines through a *log.Logger.
type StandardLogger struct {
	logger *log.Logger
	debug  bool

	once   sync.Once
	closer io.Closer
}

// NewStandardLogger wraps l. Debug lines are written only when debug is true.
func NewStandardLogger(l *log.Logger, debug bool) *StandardLogger {
	return &StandardLogger{logger: l, debug: debug}
}

// NewFileLogger appends to the file at path, creating it with mode 0600.
// Close closes the file.
func NewFileLogger(path string, debug bool) (*StandardLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	s := NewStandardLogger(log.New(f, "", log.LstdFlags), debug)
	s.closer = f
	return s, nil
}

func (s *StandardLogger) print(level, format string, args []interface{}) {
	s.logger.Printf("["+level+"] "+format, args...)
}

func (s *StandardLogger) Debug(format string, args ...interface{}) {
	if s.debug {
		s.print("DEBUG", format, args)
	}
}

func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.print("INFO", format, args)
}

func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.print("WARNING", format, args)
}

func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.print("ERROR", format, args)
}

// Close closes the underlying file of a file logger.
func (s *StandardLogger) Close() (err error) {
	if s.closer == nil {
		return nil
	}
	s.once.Do(func() { err = s.closer.Close() })
	return err
}

// NopLogger discards everything.
type NopLogger struct{}

func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (NopLogger) Debug(string, ...interface{})   {}
func (NopLogger) Info(string, ...interface{})    {}
func (NopLogger) Warning(string, ...interface{}) {}
func (NopLogger) Error(string, ...interface{})   {}
func (NopLogger) Close() error                   { return nil }

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)

// MockLogger records formatted messages per level for assertions in tests.
type MockLogger struct {
	DebugCalls   []string
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool

	mu sync.Mutex
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) record(dst *[]string, format string, args []interface{}) {
	m.mu.Lock()
	*dst = append(*dst, fmt.Sprintf(format, args...))
	m.mu.Unlock()
}

func (m *MockLogger) Debug(format string, args ...interface{}) {
	m.record(&m.DebugCalls, format, args)
}

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.record(&m.InfoCalls, format, args)
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.record(&m.WarningCalls, format, args)
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.record(&m.ErrorCalls, format, args)
}

func (m *MockLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

// All returns every recorded message, grouped by level from Debug to Error.
func (m *MockLogger) All() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	out = append(out, m.DebugCalls...)
	out = append(out, m.InfoCalls...)
	out = append(out, m.WarningCalls...)
	out = append(out, m.ErrorCalls...)
	return out
}

var _ Logger = (*MockLogger)(nil)

// ToStdLogger exposes l as a *log.Logger for net/http.Server.ErrorLog.
// Lines are forwarded at error level.
func ToStdLogger(l Logger) *log.Logger {
	return log.New(errorWriter{l}, "", 0)
}

type errorWriter struct {
	l Logger
}

func (w errorWriter) Write(p []byte) (int, error) {
	w.l.Error("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Package logger provides the logging interface used by the pairwatch
// supervisor and binaries, with console, zap and test backends.
package logger

import (
	"fmt"
	"io"
	"log"
	"sync"
)

// Logger defines the interface for logging across all pairwatch components.
type Logger interface {
	// Info logs an informational message (e.g., "guardian 812 started").
	Info(format string, args ...interface{})

	// Warning logs a warning message (e.g., "primary 811 missed 5 heartbeats").
	Warning(format string, args ...interface{})

	// Error logs an error message (e.g., "respawn guardian: exec: not found").
	Error(format string, args ...interface{})

	// Close flushes and releases resources held by the logger.
	// Safe to call multiple times. Returns nil for loggers without resources.
	Close() error
}

// StandardLogger wraps the stdlib *log.Logger for console/file output.
type StandardLogger struct {
	logger *log.Logger
	closer io.Closer
}

// NewStandardLogger creates a logger that wraps the given *log.Logger.
func NewStandardLogger(l *log.Logger) *StandardLogger {
	return &StandardLogger{logger: l}
}

// NewFileLogger creates a logger writing timestamped lines to w.
// Close closes w.
func NewFileLogger(w io.WriteCloser) *StandardLogger {
	return &StandardLogger{logger: log.New(w, "", log.LstdFlags), closer: w}
}

// Info logs an informational message with [INFO] prefix.
func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.logger.Printf("[INFO] "+format, args...)
}

// Warning logs a warning message with [WARNING] prefix.
func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.logger.Printf("[WARNING] "+format, args...)
}

// Error logs an error message with [ERROR] prefix.
func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.logger.Printf("[ERROR] "+format, args...)
}

// Close closes the file behind a logger made by NewFileLogger and is a
// no-op otherwise.
func (s *StandardLogger) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// NopLogger is a logger that discards all messages.
// Useful for testing or when logging should be disabled.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

// Info discards the message.
func (n *NopLogger) Info(format string, args ...interface{}) {}

// Warning discards the message.
func (n *NopLogger) Warning(format string, args ...interface{}) {}

// Error discards the message.
func (n *NopLogger) Error(format string, args ...interface{}) {}

// Close is a no-op.
func (n *NopLogger) Close() error {
	return nil
}

// Ensure implementations satisfy the Logger interface.
var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)

// MockLogger implements Logger for testing purposes.
// It records all log calls for verification in tests. Recording is safe
// from multiple goroutines; read the fields once logging has finished, or
// use Calls.
type MockLogger struct {
	mu sync.Mutex

	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
	CloseCalled  bool
}

// NewMockLogger creates a new MockLogger for testing.
func NewMockLogger() *MockLogger {
	return &MockLogger{
		InfoCalls:    make([]string, 0),
		WarningCalls: make([]string, 0),
		ErrorCalls:   make([]string, 0),
	}
}

// Info records the formatted message.
func (m *MockLogger) Info(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InfoCalls = append(m.InfoCalls, fmt.Sprintf(format, args...))
}

// Warning records the formatted message.
func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WarningCalls = append(m.WarningCalls, fmt.Sprintf(format, args...))
}

// Error records the formatted message.
func (m *MockLogger) Error(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCalls = append(m.ErrorCalls, fmt.Sprintf(format, args...))
}

// Close records that Close was called.
func (m *MockLogger) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
	return nil
}

// Calls returns copies of the recorded messages.
func (m *MockLogger) Calls() (info, warning, errs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info = append([]string(nil), m.InfoCalls...)
	warning = append([]string(nil), m.WarningCalls...)
	errs = append([]string(nil), m.ErrorCalls...)
	return info, warning, errs
}

// Ensure MockLogger satisfies the Logger interface.
var _ Logger = (*MockLogger)(nil)

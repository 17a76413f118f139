package logger

import "errors"

// MultiLogger fans every message out to several backends, typically the
// console and the daemon log file.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger skips nil backends.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

func (m *MultiLogger) each(f func(Logger)) {
	for _, l := range m.loggers {
		f(l)
	}
}

func (m *MultiLogger) Debug(format string, args ...interface{}) {
	m.each(func(l Logger) { l.Debug(format, args...) })
}

func (m *MultiLogger) Info(format string, args ...interface{}) {
	m.each(func(l Logger) { l.Info(format, args...) })
}

func (m *MultiLogger) Warning(format string, args ...interface{}) {
	m.each(func(l Logger) { l.Warning(format, args...) })
}

func (m *MultiLogger) Error(format string, args ...interface{}) {
	m.each(func(l Logger) { l.Error(format, args...) })
}

// Close closes every backend and joins their errors.
func (m *MultiLogger) Close() error {
	var errs []error
	m.each(func(l Logger) { errs = append(errs, l.Close()) })
	return errors.Join(errs...)
}

var _ Logger = (*MultiLogger)(nil)

package event

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is the logging abstraction used throughout the dispatcher.
// Implementations can be swapped in via WithLogger.
type Logger interface {
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
}

// defaultLogger writes leveled lines through the standard log package.
// Warnings and errors go to errOut, informational output to out.
type defaultLogger struct {
	err   *log.Logger
	warn  *log.Logger
	info  *log.Logger
	debug *log.Logger
}

// NewDefaultLogger creates a logger writing to stdout/stderr with a
// "dispatch" component tag.
func NewDefaultLogger() Logger {
	return NewLogger(os.Stdout, os.Stderr)
}

// NewLogger creates a logger writing informational output to out and
// warnings/errors to errOut.
func NewLogger(out, errOut io.Writer) Logger {
	return &defaultLogger{
		err:   log.New(errOut, "[ERROR] dispatch: ", log.LstdFlags),
		warn:  log.New(errOut, "[WARN] dispatch: ", log.LstdFlags),
		info:  log.New(out, "[INFO] dispatch: ", log.LstdFlags),
		debug: log.New(out, "[DEBUG] dispatch: ", log.LstdFlags),
	}
}

func (l *defaultLogger) Error(args ...interface{}) {
	l.err.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.err.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Warn(args ...interface{}) {
	l.warn.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Warnf(format string, args ...interface{}) {
	l.warn.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Info(args ...interface{}) {
	l.info.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Infof(format string, args ...interface{}) {
	l.info.Output(3, fmt.Sprintf(format, args...))
}

func (l *defaultLogger) Debug(args ...interface{}) {
	l.debug.Output(3, fmt.Sprint(args...))
}

func (l *defaultLogger) Debugf(format string, args ...interface{}) {
	l.debug.Output(3, fmt.Sprintf(format, args...))
}

package concurrency

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Logger is the logging surface the pool writes to.
// It is declared here so the package stays free of upward imports.
type Logger interface {
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// stdLogger implements Logger on top of the standard log package
type stdLogger struct {
	errorLogger *log.Logger
	warnLogger  *log.Logger
	infoLogger  *log.Logger
	debugLogger *log.Logger
	debug       bool
}

// NewStdLogger returns a level-prefixed Logger.
// Errors and warnings go to stderr, the rest to stdout. Debug lines are
// only written when debug is true.
func NewStdLogger(debug bool) Logger {
	return newStdLogger(os.Stderr, os.Stdout, debug)
}

func newStdLogger(errOut, out io.Writer, debug bool) *stdLogger {
	flags := log.LstdFlags | log.Lshortfile
	return &stdLogger{
		errorLogger: log.New(errOut, "[ERROR] ", flags),
		warnLogger:  log.New(errOut, "[WARN] ", flags),
		infoLogger:  log.New(out, "[INFO] ", flags),
		debugLogger: log.New(out, "[DEBUG] ", flags),
		debug:       debug,
	}
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.errorLogger.Output(2, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Warnf(format string, args ...interface{}) {
	l.warnLogger.Output(2, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.infoLogger.Output(2, fmt.Sprintf(format, args...))
}

func (l *stdLogger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.debugLogger.Output(2, fmt.Sprintf(format, args...))
}

type nopLogger struct{}

// NopLogger returns a Logger that drops everything
func NopLogger() Logger { return nopLogger{} }

func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

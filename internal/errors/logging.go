// Package errors provides structured logging for error handling.
package errors

import (
	"log"
	"os"
)

// LogLevel represents the severity level of log messages.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorLogger is a level-gated logger that understands *ChromeError: a
// verbose logger prints the full type/cause/context chain, a quiet one
// prints only the user-facing message.
type ErrorLogger struct {
	level   LogLevel
	verbose bool
	logger  *log.Logger
}

// NewErrorLogger creates a logger writing to stderr at the given level.
func NewErrorLogger(level LogLevel, verbose bool) *ErrorLogger {
	return &ErrorLogger{level: level, verbose: verbose, logger: log.New(os.Stderr, "", log.LstdFlags)}
}

// DefaultErrorLogger returns an info-level, non-verbose logger.
func DefaultErrorLogger() *ErrorLogger {
	return NewErrorLogger(LogLevelInfo, false)
}

// SetVerbose toggles verbose diagnostic logging; verbose also drops the
// level to Debug so nothing is filtered out.
func (el *ErrorLogger) SetVerbose(verbose bool) {
	el.verbose = verbose
	if verbose {
		el.level = LogLevelDebug
	}
}

func (el *ErrorLogger) shouldLog(level LogLevel) bool {
	return level >= el.level
}

func (el *ErrorLogger) log(level LogLevel, format string, args ...interface{}) {
	if !el.shouldLog(level) {
		return
	}
	el.logger.Printf("[%s] "+format, append([]interface{}{level.String()}, args...)...)
}

// Info logs at info level.
func (el *ErrorLogger) Info(format string, args ...interface{}) {
	el.log(LogLevelInfo, format, args...)
}

// Warn logs at warn level.
func (el *ErrorLogger) Warn(format string, args ...interface{}) {
	el.log(LogLevelWarn, format, args...)
}

// Fatal logs at fatal level. It never calls os.Exit; the caller decides
// whether and how to terminate.
func (el *ErrorLogger) Fatal(format string, args ...interface{}) {
	el.log(LogLevelFatal, format, args...)
}

// LogError logs err at the level its ChromeError.Type implies, printing the
// full diagnostic chain when verbose and just the user-facing message
// otherwise. A plain error is logged at error level.
func (el *ErrorLogger) LogError(err error) {
	if err == nil {
		return
	}
	ce, ok := err.(*ChromeError)
	if !ok {
		el.log(LogLevelError, "%v", err)
		return
	}
	level := el.levelForError(ce)
	if el.verbose {
		el.log(level, "%s", FormatError(err))
		return
	}
	el.log(level, "%s", ce.UserMessage())
}

func (el *ErrorLogger) levelForError(err *ChromeError) LogLevel {
	switch err.Type {
	case ValidationError, InvalidURLError, InvalidHeaderError, InvalidScriptError, ConfigurationError:
		return LogLevelWarn
	case ChromeTimeoutError, NetworkIdleError, TimeoutError:
		return LogLevelWarn
	case CancelError:
		return LogLevelInfo
	default:
		return LogLevelError
	}
}

// Package logx provides leveled logging to the console and an optional log file.
package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Logger writes timestamped, leveled messages to a console writer and,
// when configured, to a log file. It is safe for concurrent use.
type Logger struct {
	mu      sync.Mutex
	console io.Writer
	file    *os.File
	min     Level
}

// Option configures a Logger.
type Option func(*Logger)

// WithConsole sets the console writer. Defaults to os.Stderr.
func WithConsole(w io.Writer) Option {
	return func(l *Logger) { l.console = w }
}

// WithLevel sets the minimum level that is emitted.
func WithLevel(min Level) Option {
	return func(l *Logger) { l.min = min }
}

// New creates a Logger. If logFile is non-empty its parent directory is
// created and the file is opened for appending; file errors are not fatal,
// logging then goes to the console only.
func New(logFile string, opts ...Option) *Logger {
	l := &Logger{console: os.Stderr, min: LevelInfo}
	for _, opt := range opts {
		opt(l)
	}
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
			if f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
				l.file = f
			}
		}
	}
	return l
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Path returns the log file path, or "" when file logging is disabled.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

func (l *Logger) log(level Level, format string, args ...any) {
	if level < l.min {
		// Still persist suppressed levels to the file for post-hoc debugging.
		l.mu.Lock()
		if l.file != nil {
			fmt.Fprintf(l.file, "%s - %s - %s\n",
				time.Now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
		}
		l.mu.Unlock()
		return
	}
	line := fmt.Sprintf("%s - %s - %s\n",
		time.Now().Format("2006-01-02 15:04:05"), level, fmt.Sprintf(format, args...))
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.console != nil {
		fmt.Fprint(l.console, line)
	}
	if l.file != nil {
		fmt.Fprint(l.file, line)
	}
}

// Debugf logs at DEBUG level.
func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, format, args...) }

// Infof logs at INFO level.
func (l *Logger) Infof(format string, args ...any) { l.log(LevelInfo, format, args...) }

// Warnf logs at WARN level.
func (l *Logger) Warnf(format string, args ...any) { l.log(LevelWarn, format, args...) }

// Errorf logs at ERROR level.
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, format, args...) }

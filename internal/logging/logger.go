// Package logging provides the leveled logger shared by every command.
//
// Console output is coloured on a terminal. When a log file is open every
// entry is also appended to it as plain text, prefixed with the invocation
// tag so runs started by cron, by the post-backup hook and by an operator
// can be told apart in the shared file.
package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/adamgunderson/FMOS-LoadAvgCheck-Manager/internal/types"
)

const (
	timeFormat = "2006-01-02 15:04:05"
	colorReset = "\033[0m"
)

type label struct {
	name  string
	color string
}

var (
	labelStep   = label{name: "STEP", color: "\033[34m"}
	labelSkip   = label{name: "SKIP", color: "\033[35m"}
	labelNotice = label{name: "NOTICE", color: "\033[1;33m"}
)

var levelColors = map[types.LogLevel]string{
	types.LogLevelDebug:    "\033[36m",
	types.LogLevelInfo:     "\033[32m",
	types.LogLevelWarning:  "\033[33m",
	types.LogLevelError:    "\033[31m",
	types.LogLevelCritical: "\033[1;31m",
}

// Logger writes leveled entries to the console and optionally to a file.
// A nil *Logger discards everything.
type Logger struct {
	mu       sync.Mutex
	level    types.LogLevel
	useColor bool
	output   io.Writer
	file     *os.File
	tag      string
	now      func() time.Time
}

// New creates a logger writing to stdout.
func New(level types.LogLevel, useColor bool) *Logger {
	return &Logger{
		level:    level,
		useColor: useColor,
		output:   os.Stdout,
		now:      time.Now,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	l := New(types.LogLevelNone, false)
	l.output = io.Discard
	return l
}

// SetOutput sets the console writer. nil restores stdout.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	l.output = w
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level types.LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetTag sets the invocation tag written in front of file entries.
func (l *Logger) SetTag(tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tag = tag
}

// OpenLogFile appends subsequent entries to logPath. The file is shared
// by the admin identity and the elevated hook, so it is created 0644.
func (l *Logger) OpenLogFile(logPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_SYNC, 0o644)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", logPath, err)
	}
	l.file = file
	return nil
}

// CloseLogFile closes the log file, if any.
func (l *Logger) CloseLogFile() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) write(level types.LogLevel, lbl label, format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level > l.level {
		return
	}

	name := lbl.name
	if name == "" {
		name = level.String()
	}
	message := fmt.Sprintf(format, args...)
	ts := l.now().Format(timeFormat)

	if l.useColor {
		color := lbl.color
		if color == "" {
			color = levelColors[level]
		}
		fmt.Fprintf(l.output, "[%s] %s%-8s%s %s\n", ts, color, name, colorReset, message)
	} else {
		fmt.Fprintf(l.output, "[%s] %-8s %s\n", ts, name, message)
	}

	if l.file == nil {
		return
	}
	if l.tag != "" {
		fmt.Fprintf(l.file, "[%s] [%s] %-8s %s\n", ts, l.tag, name, message)
	} else {
		fmt.Fprintf(l.file, "[%s] %-8s %s\n", ts, name, message)
	}
}

// Debug writes a debug entry.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.write(types.LogLevelDebug, label{}, format, args...)
}

// Info writes an informational entry.
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(types.LogLevelInfo, label{}, format, args...)
}

// Step announces the start of an action.
func (l *Logger) Step(format string, args ...interface{}) {
	l.write(types.LogLevelInfo, labelStep, format, args...)
}

// Skip reports an action that had nothing to do.
func (l *Logger) Skip(format string, args ...interface{}) {
	l.write(types.LogLevelInfo, labelSkip, format, args...)
}

// Notice reports a condition that was corrected automatically, such as
// schedule drift. It is filtered like a warning.
func (l *Logger) Notice(format string, args ...interface{}) {
	l.write(types.LogLevelWarning, labelNotice, format, args...)
}

func (l *Logger) Warning(format string, args ...interface{}) {
	l.write(types.LogLevelWarning, label{}, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.write(types.LogLevelError, label{}, format, args...)
}

func (l *Logger) Critical(format string, args ...interface{}) {
	l.write(types.LogLevelCritical, label{}, format, args...)
}

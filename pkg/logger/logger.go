package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of a log message.
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// Entry is one buffered log line.
type Entry struct {
	Time    time.Time
	Level   LogLevel
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Time.Format("15:04:05"), e.Level, e.Message)
}

// Logger writes levelled messages through a standard library logger and keeps
// the most recent ones in memory so a window can show them.
type Logger struct {
	*sink
	prefix string
}

// sink is shared by a logger and every logger derived from it with Named.
type sink struct {
	mu        sync.Mutex
	entries   []Entry
	stdLogger *log.Logger
	maxLines  int
	minLevel  LogLevel
}

// NewLogger creates a Logger printing to stdout.
func NewLogger(maxLines int) *Logger {
	return NewLoggerTo(os.Stdout, maxLines)
}

// NewLoggerTo creates a Logger printing to w. A nil writer discards output but
// still fills the in-memory buffer.
func NewLoggerTo(w io.Writer, maxLines int) *Logger {
	if w == nil {
		w = io.Discard
	}
	if maxLines <= 0 {
		maxLines = 1
	}
	return &Logger{sink: &sink{
		stdLogger: log.New(w, "", log.Ldate|log.Ltime|log.Lshortfile),
		maxLines:  maxLines,
		entries:   make([]Entry, 0, maxLines),
		minLevel:  INFO,
	}}
}

// Named returns a logger sharing the buffer, level and output of l whose
// messages carry the given component prefix.
func (l *Logger) Named(component string) *Logger {
	return &Logger{sink: l.sink, prefix: component}
}

// SetLevel updates the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// GetLevel returns the current minimum log level.
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minLevel
}

func (l *Logger) logf(level LogLevel, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minLevel {
		return
	}

	msg := fmt.Sprintf(format, v...)
	if l.prefix != "" {
		msg = "[" + l.prefix + "] " + msg
	}
	// depth 3: Output <- logf <- Infof/... <- caller
	l.stdLogger.Output(3, fmt.Sprintf("[%s] %s", level, msg))

	l.entries = append(l.entries, Entry{Time: time.Now(), Level: level, Message: msg})
	if len(l.entries) > l.maxLines {
		l.entries = l.entries[len(l.entries)-l.maxLines:]
	}
}

// Infof logs an info message.
func (l *Logger) Infof(format string, v ...interface{}) {
	l.logf(INFO, format, v...)
}

// Warnf logs a warning message.
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logf(WARN, format, v...)
}

// Errorf logs an error message.
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(ERROR, format, v...)
}

// Debugf logs a debug message.
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logf(DEBUG, format, v...)
}

// Tracef logs a trace message.
func (l *Logger) Tracef(format string, v ...interface{}) {
	l.logf(TRACE, format, v...)
}

// Entries returns a copy of the buffered entries, oldest first.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// GetLogs returns the buffered entries formatted as lines.
func (l *Logger) GetLogs() []string {
	entries := l.Entries()
	logs := make([]string, len(entries))
	for i, e := range entries {
		logs[i] = e.String()
	}
	return logs
}

// Clear removes all in-memory log messages.
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name (case-insensitive) to a LogLevel.
func ParseLevel(name string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", name)
}

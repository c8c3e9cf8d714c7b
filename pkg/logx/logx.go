// Package logx provides leveled component logging with an in-memory
// buffer that the web UI log endpoint reads from.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Level identifies log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// LogEntry is a structured log record served by GET /api/logs.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Component string `json:"component"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// ringBuffer keeps the most recent entries for the web UI.
type ringBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	maxSize int
}

//nolint:gochecknoglobals // shared buffer feeding the /api/logs endpoint
var (
	buffer = &ringBuffer{maxSize: 1000}

	debugEnabled = os.Getenv("DEBUG") == "1" || strings.EqualFold(os.Getenv("DEBUG"), "true")
)

func (b *ringBuffer) append(entry LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// RecentEntries returns buffered entries, optionally filtered by component
// substring and a minimum timestamp.
func RecentEntries(component string, since time.Time) []LogEntry {
	buffer.mu.RLock()
	defer buffer.mu.RUnlock()

	out := make([]LogEntry, 0, len(buffer.entries))
	for i := range buffer.entries {
		entry := &buffer.entries[i]
		if component != "" && !strings.Contains(strings.ToLower(entry.Component), strings.ToLower(component)) {
			continue
		}
		if !since.IsZero() {
			ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
			if err != nil || ts.Before(since) {
				continue
			}
		}
		out = append(out, *entry)
	}
	return out
}

// Logger writes leveled messages tagged with a component name.
type Logger struct {
	component string
	logger    *log.Logger
}

// NewLogger creates a logger for the given component.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stderr, "", 0),
	}
}

func (l *Logger) logf(level Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	l.logger.Printf("[%s] [%s] %s: %s", ts, l.component, level, msg)
	buffer.append(LogEntry{
		Timestamp: ts,
		Component: l.component,
		Level:     string(level),
		Message:   msg,
	})
}

// Debug logs at DEBUG level; suppressed unless DEBUG is set.
func (l *Logger) Debug(format string, args ...any) {
	if !debugEnabled {
		return
	}
	l.logf(LevelDebug, format, args...)
}

// Info logs at INFO level.
func (l *Logger) Info(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

// Warn logs at WARN level.
func (l *Logger) Warn(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

// Error logs at ERROR level.
func (l *Logger) Error(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

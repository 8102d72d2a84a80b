// Package logging provides the daemon's file-based debug log. The
// standard log package stays on stderr for operator-facing lines; the
// debug logger captures the verbose trace.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pkg is the process-wide debug logger. Components without direct
// wiring log through Debugf.
var pkg *DebugLogger
var pkgMu sync.RWMutex

// SetDefault installs the process-wide debug logger.
func SetDefault(l *DebugLogger) {
	pkgMu.Lock()
	defer pkgMu.Unlock()
	pkg = l
}

// Debugf writes a message through the process-wide logger. No-op until
// SetDefault is called.
func Debugf(format string, args ...interface{}) {
	pkgMu.RLock()
	l := pkg
	pkgMu.RUnlock()

	if l != nil {
		l.Log(format, args...)
	}
}

// DebugLogger writes timestamped lines to a file with thread-safe
// access.
type DebugLogger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewDebugLogger creates a logger writing to the specified path. An
// empty path returns a no-op logger. Parent directories are created.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &DebugLogger{file: f, path: logPath}
	logger.Log("=== otto debug log started at %s ===", time.Now().Format(time.RFC3339))

	return logger, nil
}

// NewDebugLoggerForDir creates a per-run debug log under the data
// directory's logs folder. Returns a no-op logger when the directory
// cannot be created.
func NewDebugLoggerForDir(dataDir string) *DebugLogger {
	name := "otto-debug-" + time.Now().Format("20060102-150405") + ".log"
	logger, err := NewDebugLogger(filepath.Join(dataDir, "logs", name))
	if err != nil {
		return &DebugLogger{}
	}
	return logger
}

// NopLogger returns a no-op logger for testing or when debug logging is
// disabled.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes a timestamped message. No-op on a nil or fileless logger.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %s\n", timestamp, msg)
	l.file.Sync()
}

// Path returns the log file location, empty for a no-op logger.
func (l *DebugLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close closes the log file. Safe on a nil or fileless logger.
func (l *DebugLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

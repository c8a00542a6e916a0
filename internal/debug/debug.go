// Package debug provides component-tagged logging for livedit.
//
// Debug and trace output is gated on LIVEDIT_DEBUG (or Enable). Warnings,
// errors and info lines are always written.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// EnvVar enables debug output when set to any non-empty value.
const EnvVar = "LIVEDIT_DEBUG"

var (
	enabled atomic.Bool

	logFile     *os.File
	logFileMu   sync.Mutex
	logFilePath string

	logger *log.Logger
)

func init() {
	if os.Getenv(EnvVar) != "" {
		Enable()
	}
	logger = log.New(os.Stderr, "", log.LstdFlags)
}

// Enable turns on debug logging.
func Enable() {
	enabled.Store(true)
}

// Disable turns off debug logging.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether debug logging is enabled.
func IsEnabled() bool {
	return enabled.Load()
}

// SetOutput redirects all log lines to w.
func SetOutput(w io.Writer) {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	logger.SetOutput(w)
}

// SetLogFile mirrors log output into a file in the user's cache directory.
// An empty name restores stderr-only output.
func SetLogFile(name string) error {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}

	if name == "" {
		logger.SetOutput(os.Stderr)
		logFilePath = ""
		return nil
	}

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}

	logDir := filepath.Join(cacheDir, "livedit", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath = filepath.Join(logDir, name)
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	logFile = f
	logger.SetOutput(io.MultiWriter(os.Stderr, f))

	return nil
}

// GetLogFilePath returns the current log file path, or empty if not set.
func GetLogFilePath() string {
	logFileMu.Lock()
	defer logFileMu.Unlock()
	return logFilePath
}

// Close closes the log file if open.
func Close() {
	logFileMu.Lock()
	defer logFileMu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
}

// Log logs a debug message if debug mode is enabled.
// Format: [DEBUG] [component] message
func Log(component, format string, args ...interface{}) {
	if !enabled.Load() {
		return
	}
	logger.Printf("[DEBUG] [%s] %s", component, fmt.Sprintf(format, args...))
}

// Trace logs a high-volume message with a microsecond timestamp (debug mode only).
func Trace(component, format string, args ...interface{}) {
	if !enabled.Load() {
		return
	}
	ts := time.Now().Format("15:04:05.000000")
	logger.Printf("[TRACE] [%s] [%s] %s", ts, component, fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged).
func Error(component, format string, args ...interface{}) {
	logger.Printf("[ERROR] [%s] %s", component, fmt.Sprintf(format, args...))
}

// Warn logs a warning message (always logged).
func Warn(component, format string, args ...interface{}) {
	logger.Printf("[WARN] [%s] %s", component, fmt.Sprintf(format, args...))
}

// Info logs an info message (always logged).
func Info(component, format string, args ...interface{}) {
	logger.Printf("[INFO] [%s] %s", component, fmt.Sprintf(format, args...))
}

// Logger is a logger bound to one component name.
type Logger struct {
	component string
}

// For returns a Logger for the named component.
func For(component string) *Logger {
	return &Logger{component: component}
}

// Component returns the bound component name.
func (l *Logger) Component() string { return l.component }

func (l *Logger) Debugf(format string, args ...interface{}) { Log(l.component, format, args...) }
func (l *Logger) Tracef(format string, args ...interface{}) { Trace(l.component, format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { Info(l.component, format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { Warn(l.component, format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { Error(l.component, format, args...) }

package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// LogOptions configures the shared logger.
type LogOptions struct {
	Level  string // debug, info, warn, error
	Format string // text, json, logfmt
	Prefix string
}

var (
	loggerInstance *log.Logger
	once           sync.Once
	mu             sync.Mutex
)

// GetLogger returns the singleton logger instance.
// It writes to stderr at info level until configured otherwise.
func GetLogger() *log.Logger {
	once.Do(func() {
		loggerInstance = log.NewWithOptions(os.Stderr, log.Options{
			Level:  log.InfoLevel,
			Prefix: "todoapp",
		})
	})
	return loggerInstance
}

// Configure applies level, format and prefix to the singleton logger.
func Configure(opts LogOptions) {
	logger := GetLogger()
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(ParseLogLevel(opts.Level))
	logger.SetFormatter(ParseLogFormatter(opts.Format))
	if opts.Prefix != "" {
		logger.SetPrefix(opts.Prefix)
	}
}

// SetVerboseMode switches the global logger to debug level.
func SetVerboseMode(verbose bool) {
	if verbose {
		GetLogger().SetLevel(log.DebugLevel)
	}
}

// SetOutput redirects the global logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	GetLogger().SetOutput(w)
}

// ParseLogLevel parses a string log level, defaulting to info.
func ParseLogLevel(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ParseLogFormatter parses a formatter name, defaulting to text.
func ParseLogFormatter(format string) log.Formatter {
	switch strings.ToLower(format) {
	case "json":
		return log.JSONFormatter
	case "logfmt":
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}

// Debugf is a convenience function that logs a debug message using the global logger.
func Debugf(format string, args ...interface{}) {
	GetLogger().Debugf(format, args...)
}

// Infof is a convenience function that logs an info message using the global logger.
func Infof(format string, args ...interface{}) {
	GetLogger().Infof(format, args...)
}

// Warnf is a convenience function that logs a warning message using the global logger.
func Warnf(format string, args ...interface{}) {
	GetLogger().Warnf(format, args...)
}

// Errorf is a convenience function that logs an error message using the global logger.
func Errorf(format string, args ...interface{}) {
	GetLogger().Errorf(format, args...)
}

// NewTestLogger returns a debug-level logger writing plain text to w.
func NewTestLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Level:     log.DebugLevel,
		Formatter: log.TextFormatter,
	})
}

// FileLogger sends the global logger to a file while the terminal is taken over
// by the interactive UI.
type FileLogger struct {
	logFile  *os.File
	previous io.Writer
	enabled  bool
	filePath string
}

// NewFileLogger opens (appending) path and redirects the global logger into it.
// On failure the global logger is sent to io.Discard so the UI stays clean.
func NewFileLogger(path string) (*FileLogger, error) {
	fl := &FileLogger{
		filePath: path,
		previous: os.Stderr,
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		SetOutput(io.Discard)
		return fl, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		SetOutput(io.Discard)
		return fl, err
	}

	fl.logFile = file
	fl.enabled = true
	SetOutput(file)
	return fl, nil
}

// Close closes the log file and restores stderr output.
func (fl *FileLogger) Close() {
	SetOutput(fl.previous)
	if fl.logFile != nil {
		_ = fl.logFile.Close()
		fl.logFile = nil
	}
	fl.enabled = false
}

// GetLogPath returns the log file path.
func (fl *FileLogger) GetLogPath() string {
	return fl.filePath
}

// IsEnabled returns whether file logging is active.
func (fl *FileLogger) IsEnabled() bool {
	return fl.enabled
}

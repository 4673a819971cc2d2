package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger provides leveled logging with verbose mode support
type Logger struct {
	verbose bool
	mu      sync.RWMutex
	file    *lumberjack.Logger
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{
			verbose: false,
		}
	})
	return globalLogger
}

// SetVerbose enables or disables verbose logging
func (l *Logger) SetVerbose(verbose bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verbose = verbose
}

// IsVerbose returns whether verbose logging is enabled
func (l *Logger) IsVerbose() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.verbose
}

// Debug logs a debug message (only when verbose is enabled)
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.IsVerbose() {
		log.Printf("[DEBUG] "+format, args...)
	}
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}

// LogFileOptions configures the rotating log file
type LogFileOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

// ConfigureLogFile mirrors all log output to a size-rotated file in addition
// to stderr. An empty path disables the file.
func (l *Logger) ConfigureLogFile(opts LogFileOptions) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if opts.Path == "" {
		log.SetOutput(os.Stderr)
		return nil
	}

	if err := EnsureParentDir(opts.Path); err != nil {
		return err
	}

	l.file = &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, l.file))
	return nil
}

// Close flushes and closes the log file, if any
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	log.SetOutput(os.Stderr)
	return err
}

// output is where the standard logger currently writes
func (l *Logger) output() io.Writer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.file != nil {
		return io.MultiWriter(os.Stderr, l.file)
	}
	return os.Stderr
}

// Debugf is a convenience function for debug logging
func Debugf(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Infof is a convenience function for info logging
func Infof(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warnf is a convenience function for warning logging
func Warnf(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Errorf is a convenience function for error logging
func Errorf(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// SetVerboseMode is a convenience function to set global verbose mode
func SetVerboseMode(verbose bool) {
	logger := GetLogger()
	logger.SetVerbose(verbose)
	if verbose {
		// Also set log flags to include timestamp and file info
		log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	} else {
		// Simplified output for normal mode
		log.SetFlags(0)
	}
	log.SetOutput(logger.output())
}

// ConfigureLogFile sets up the global rotating log file
func ConfigureLogFile(opts LogFileOptions) error {
	return GetLogger().ConfigureLogFile(opts)
}

// LogOperation logs the start and end of an operation
func LogOperation(operation string, fn func() error) error {
	logger := GetLogger()
	logger.Debug("Starting operation: %s", operation)

	err := fn()

	if err != nil {
		logger.Debug("Operation failed: %s - %v", operation, err)
	} else {
		logger.Debug("Operation completed: %s", operation)
	}

	return err
}

// LogOperationf logs the start and end of an operation with formatted message
func LogOperationf(format string, fn func() error, args ...interface{}) error {
	operation := fmt.Sprintf(format, args...)
	return LogOperation(operation, fn)
}

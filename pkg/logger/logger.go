// Package logger provides the process-wide structured logger for uidriver.
// Until Init is called, all logging is discarded.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	log     = zerolog.Nop()
	logFile *os.File
)

// Init initializes the global logger writing to the specified file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	log = zerolog.New(f).With().Timestamp().Logger()
	return nil
}

// InitConsole initializes the global logger writing human-readable output
// to the given writer (used by the CLI with --verbose).
func InitConsole(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	log = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	log = zerolog.Nop()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	log.Info().Msgf(format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	log.Debug().Msgf(format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	log.Warn().Msgf(format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	log.Error().Msgf(format, v...)
}

// GetWriter returns the underlying writer for use by collaborators.
func GetWriter() io.Writer {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		return logFile
	}
	return io.Discard
}

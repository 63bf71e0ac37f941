package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates a logger writing JSON to logFile and, when console is
// non-nil, text to console. The TUI passes a nil console so log lines never
// land on the terminal it draws. Returns the logger and a cleanup function
// that closes the file.
func SetupLogger(logFile string, level slog.Level, console io.Writer) (*slog.Logger, func() error) {
	noop := func() error { return nil }
	opts := &slog.HandlerOptions{Level: level}

	var file *os.File
	err := os.MkdirAll(filepath.Dir(logFile), 0o755)
	if err == nil {
		file, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
	if err != nil {
		if console == nil {
			return slog.New(slog.NewTextHandler(io.Discard, opts)), noop
		}
		logger := slog.New(slog.NewTextHandler(console, opts))
		logger.Error("failed to open log file, using console only", "error", err, "file", logFile)
		return logger, noop
	}

	if console == nil {
		return slog.New(slog.NewJSONHandler(file, opts)), file.Close
	}
	return SetupLoggerWithWriters(console, file, level), file.Close
}

// SetupLoggerWithWriters creates a fan-out logger with custom writers.
func SetupLoggerWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
}

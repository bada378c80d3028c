package logger

import (
	"log/slog"
	"os"
	"sync"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
)

// New builds a text logger writing to stdout. Debug mode lowers the level and
// attaches source file information. The result is meant to be handed to the
// components that need it, the core server in particular takes it as a
// constructor argument instead of reaching for a global.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	return slog.New(handler)
}

// Init installs the process-wide default used by the package-level helpers
// below. DEBUG=true in the environment enables debug level logging.
func Init() {
	once.Do(func() {
		defaultLogger = New(os.Getenv("DEBUG") == "true")
		slog.SetDefault(defaultLogger)
	})
}

func get() *slog.Logger {
	if defaultLogger == nil {
		Init()
	}
	return defaultLogger
}

// Debug logs at Debug level.
func Debug(msg string, args ...any) {
	get().Debug(msg, args...)
}

// Info logs at Info level.
func Info(msg string, args ...any) {
	get().Info(msg, args...)
}

// Warn logs at Warn level.
func Warn(msg string, args ...any) {
	get().Warn(msg, args...)
}

// Error logs at Error level.
func Error(msg string, args ...any) {
	get().Error(msg, args...)
}

// Fatal logs at Error level and then exits.
func Fatal(msg string, args ...any) {
	get().Error(msg, args...)
	os.Exit(1)
}

// With returns a new logger with the given attributes.
func With(args ...any) *slog.Logger {
	return get().With(args...)
}

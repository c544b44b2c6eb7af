// Package logging provides structured logging for deliver.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelError LogLevel = "error"
)

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config holds logging configuration
type Config struct {
	Level  LogLevel  // Minimum log level to output
	Format LogFormat // Output format (json or text)
	Output io.Writer // Output destination (defaults to stderr)
	Quiet  bool      // If true, suppress non-error output
}

// Logger wraps slog.Logger with deliver-specific helpers
type Logger struct {
	logger *slog.Logger
	config Config
}

// NewLogger creates a new logger instance
func NewLogger(config Config) *Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level: convertLogLevel(config.Level),
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(config.Output, opts)
	default:
		handler = slog.NewTextHandler(config.Output, opts)
	}

	return &Logger{
		logger: slog.New(handler),
		config: config,
	}
}

// NewLoggerFromConfig creates a logger from string-typed settings.
func NewLoggerFromConfig(logLevel, logFormat string, quiet bool) *Logger {
	var level LogLevel
	switch logLevel {
	case "debug":
		level = LevelDebug
	case "error":
		level = LevelError
	default:
		level = LevelInfo
	}

	var format LogFormat
	switch logFormat {
	case "json":
		format = FormatJSON
	default:
		format = FormatText
	}

	return NewLogger(Config{
		Level:  level,
		Format: format,
		Quiet:  quiet,
	})
}

func convertLogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.logger.Debug(msg, args...)
}

// Info logs an informational message
func (l *Logger) Info(msg string, args ...any) {
	if l.config.Quiet {
		return // Suppress non-error output in quiet mode
	}
	l.logger.Info(msg, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string, args ...any) {
	l.logger.Error(msg, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, args ...any) {
	if l.config.Quiet {
		return
	}
	l.logger.Warn(msg, args...)
}

// IsQuiet returns whether the logger is in quiet mode
func (l *Logger) IsQuiet() bool {
	return l.config.Quiet
}

// LogConfigLoad logs configuration loading events
func (l *Logger) LogConfigLoad(source string) {
	l.Info("configuration loaded", "source", source)
}

// LogConfigError logs configuration errors
func (l *Logger) LogConfigError(source string, err error) {
	l.Error("configuration error",
		"source", source,
		"error", err.Error(),
	)
}

// LogStrategyLoad logs which strategy was selected for the run
func (l *Logger) LogStrategyLoad(requested, resolved string, steps int) {
	l.Info("strategy loaded",
		"requested", requested,
		"resolved", resolved,
		"steps", steps,
	)
}

// LogStepStart logs the beginning of a strategy step
func (l *Logger) LogStepStart(strategy, step string) {
	l.Info("step started",
		"strategy", strategy,
		"step", step,
	)
}

// LogStepComplete logs a finished strategy step
func (l *Logger) LogStepComplete(strategy, step string, duration time.Duration, err error) {
	if err != nil {
		l.Error("step failed",
			"strategy", strategy,
			"step", step,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	l.Info("step completed",
		"strategy", strategy,
		"step", step,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogConnection logs remote connection information
func (l *Logger) LogConnection(host string, user string, duration time.Duration) {
	l.Info("connection established",
		"host", host,
		"user", user,
		"duration_ms", duration.Milliseconds(),
		// Never log identity file paths or authentication details.
	)
}

// LogConnectionError logs remote connection errors
func (l *Logger) LogConnectionError(host string, user string, err error) {
	l.Error("connection failed",
		"host", host,
		"user", user,
		"error", err.Error(),
	)
}

// LogJobComplete logs one finished job
func (l *Logger) LogJobComplete(host string, exitCode int, duration time.Duration, err error) {
	if err != nil {
		l.Error("job failed",
			"host", host,
			"exit_code", exitCode,
			"duration_ms", duration.Milliseconds(),
			"error", err.Error(),
		)
		return
	}
	l.Info("job completed",
		"host", host,
		"exit_code", exitCode,
		"duration_ms", duration.Milliseconds(),
	)
}

// LogBatchStart logs the start of a parallel dispatch batch
func (l *Logger) LogBatchStart(hostCount int, command string) {
	l.Info("batch started",
		"host_count", hostCount,
		"command", command,
	)
}

// LogBatchComplete logs the completion of a parallel dispatch batch
func (l *Logger) LogBatchComplete(hostCount, failureCount int, duration time.Duration) {
	l.Info("batch completed",
		"host_count", hostCount,
		"failure_count", failureCount,
		"total_duration_ms", duration.Milliseconds(),
	)
}

// Package observability provides ricochet's structured logging and metrics.
package observability

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Logger wraps zap.Logger with the fields ricochet tags every line with.
type Logger struct {
	*zap.Logger
}

// LogConfig controls level, encoding and destination of the global logger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // console (default, human-facing) or json
	Output string // stderr (default) or stdout
}

// DefaultLogConfig returns the configuration used when nothing overrides it:
// console output on stderr at info level, leaving stdout free for findings
// JSONL per the CLI's output contract.
func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "console", Output: "stderr"}
}

// InitLogger initializes the process-wide logger exactly once.
func InitLogger(config LogConfig) *Logger {
	once.Do(func() {
		globalLogger = NewLogger(config)
	})
	return globalLogger
}

// GetLogger returns the global logger, initializing it with defaults if
// InitLogger was never called (useful in tests and library callers).
func GetLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewLogger(DefaultLogConfig())
	}
	return globalLogger
}

// NewLogger builds a standalone logger from config, independent of the
// global singleton. InitLogger and GetLogger build the global logger with it;
// cmd/ricochet resolves --verbose and --log-format first and then calls
// InitLogger once.
func NewLogger(config LogConfig) *Logger {
	level := zapcore.InfoLevel
	switch strings.ToLower(config.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if config.Format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	var sink zapcore.WriteSyncer
	if config.Output == "stdout" {
		sink = zapcore.AddSync(os.Stdout)
	} else {
		sink = zapcore.AddSync(os.Stderr)
	}

	core := zapcore.NewCore(encoder, sink, level)
	logger := zap.New(core, zap.AddCaller())
	return &Logger{Logger: logger}
}

// With creates a child logger carrying additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// WithError adds an error field to the logger.
func (l *Logger) WithError(err error) *Logger {
	return l.With(zap.Error(err))
}

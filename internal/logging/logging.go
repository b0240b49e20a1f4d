// Package logging provides the leveled, structured logger shared by every
// component.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LogLevelDebug is for detailed debugging information.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is for general informational messages.
	LogLevelInfo
	// LogLevelWarn is for warning messages.
	LogLevelWarn
	// LogLevelError is for error messages.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(s) {
	case "debug":
		return LogLevelDebug
	case "info":
		return LogLevelInfo
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l LogLevel) zap() zapcore.Level {
	switch l {
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Logger is a leveled logger with attached fields. Loggers derived with
// WithField share the level and the enabled state of their parent.
type Logger struct {
	base     *zap.Logger
	sugar    *zap.SugaredLogger
	level    zap.AtomicLevel
	disabled *atomic.Bool
}

// LoggerConfig configures the logger.
type LoggerConfig struct {
	// Level is the minimum log level to output.
	Level LogLevel
	// Output is where logs are written. Defaults to os.Stderr.
	Output io.Writer
	// Format is "text" or "json".
	Format string
	// Prefix names the root logger.
	Prefix string
}

// DefaultLoggerConfig returns the default logger configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:  LogLevelInfo,
		Output: os.Stderr,
		Format: "text",
		Prefix: "ghostwriter",
	}
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	}

	level := zap.NewAtomicLevelAt(cfg.Level.zap())
	base := zap.New(zapcore.NewCore(enc, zapcore.AddSync(cfg.Output), level))
	if cfg.Prefix != "" {
		base = base.Named(cfg.Prefix)
	}
	return &Logger{
		base:     base,
		sugar:    base.Sugar(),
		level:    level,
		disabled: &atomic.Bool{},
	}
}

// NullLogger returns a logger that discards all output.
func NullLogger() *Logger {
	base := zap.NewNop()
	return &Logger{
		base:     base,
		sugar:    base.Sugar(),
		level:    zap.NewAtomicLevel(),
		disabled: &atomic.Bool{},
	}
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value any) *Logger {
	return l.derive(l.base.With(zap.Any(key, value)))
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	return l.derive(l.base.With(zf...))
}

// WithComponent returns a new logger with the component field set.
func (l *Logger) WithComponent(component string) *Logger {
	return l.WithField("component", component)
}

// WithError returns a new logger carrying err.
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.base.With(zap.Error(err)))
}

func (l *Logger) derive(base *zap.Logger) *Logger {
	return &Logger{
		base:     base,
		sugar:    base.Sugar(),
		level:    l.level,
		disabled: l.disabled,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level LogLevel) {
	l.level.SetLevel(level.zap())
}

// Level returns the current minimum level.
func (l *Logger) Level() LogLevel {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return LogLevelDebug
	case zapcore.WarnLevel:
		return LogLevelWarn
	case zapcore.ErrorLevel:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Disable turns off all logging.
func (l *Logger) Disable() { l.disabled.Store(true) }

// Enable turns logging back on.
func (l *Logger) Enable() { l.disabled.Store(false) }

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...any) {
	if !l.disabled.Load() {
		l.sugar.Debugf(msg, args...)
	}
}

// Info logs an informational message.
func (l *Logger) Info(msg string, args ...any) {
	if !l.disabled.Load() {
		l.sugar.Infof(msg, args...)
	}
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...any) {
	if !l.disabled.Load() {
		l.sugar.Warnf(msg, args...)
	}
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...any) {
	if !l.disabled.Load() {
		l.sugar.Errorf(msg, args...)
	}
}

// Sync flushes buffered output.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

// Global logger instance.
var (
	globalLogger *Logger
	globalOnce   sync.Once
	globalMu     sync.RWMutex
)

// GetLogger returns the global logger instance.
func GetLogger() *Logger {
	globalOnce.Do(func() {
		globalMu.Lock()
		if globalLogger == nil {
			globalLogger = NewLogger(DefaultLoggerConfig())
		}
		globalMu.Unlock()
	})
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// SetLogger sets the global logger instance.
func SetLogger(l *Logger) {
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// OrNull returns l, or a NullLogger when l is nil.
func OrNull(l *Logger) *Logger {
	if l == nil {
		return NullLogger()
	}
	return l
}

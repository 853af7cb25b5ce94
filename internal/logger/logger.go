// Package logger provides structured logging for godedup using zap.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dbsmedya/godedup/internal/config"
)

// Logger wraps zap.SugaredLogger with helpers for run context.
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

// New creates a Logger from configuration. Output "stderr" (or empty) and
// "stdout" write to the terminal; anything else is a file path opened for
// appending.
func New(cfg *config.LoggingConfig) (*Logger, error) {
	var (
		w        zapcore.WriteSyncer
		terminal bool
	)
	switch cfg.Output {
	case "stderr", "":
		w, terminal = zapcore.Lock(os.Stderr), true
	case "stdout":
		w, terminal = zapcore.Lock(os.Stdout), true
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		w = f
	}
	return build(cfg, w, terminal)
}

// NewWithWriter creates a Logger writing to w without colors.
func NewWithWriter(cfg *config.LoggingConfig, w io.Writer) (*Logger, error) {
	return build(cfg, zapcore.AddSync(w), false)
}

// NewDefault creates a Logger with default settings (info level, text format, stderr).
func NewDefault() *Logger {
	l, _ := New(&config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"})
	return l
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return wrap(zap.NewNop())
}

func build(cfg *config.LoggingConfig, w zapcore.WriteSyncer, color bool) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = l
	}

	core := zapcore.NewCore(encoder(cfg.Format, color), w, level)
	return wrap(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))), nil
}

func encoder(format string, color bool) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if format == "json" {
		return zapcore.NewJSONEncoder(ec)
	}

	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	if color {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(ec)
}

func wrap(base *zap.Logger) *Logger {
	return &Logger{SugaredLogger: base.Sugar(), base: base}
}

func (l *Logger) with(args ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...), base: l.base}
}

// Named returns a Logger tagged with a component name (scanner, relocator).
func (l *Logger) Named(component string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(component), base: l.base}
}

// WithRoot adds the scan root to every entry.
func (l *Logger) WithRoot(root string) *Logger {
	return l.with("root", root)
}

// WithDigest adds a duplicate group digest to every entry.
func (l *Logger) WithDigest(digest string) *Logger {
	return l.with("digest", digest)
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

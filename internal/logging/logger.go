package logging

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger whose methods take a context and append its
// request, document and trace correlation fields.
type Logger struct {
	base *zap.Logger
	// zap skips the two wrapper frames so callers are reported correctly.
	zap *zap.Logger
}

// wrapperFrames is Logger.Info (or a sibling) plus Logger.log.
const wrapperFrames = 2

// FromZap wraps an existing zap logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{base: z, zap: z.WithOptions(zap.AddCallerSkip(wrapperFrames))}
}

// NewLogger builds a logger from cfg. otelProvider may be nil, in which case
// output.otel is ignored.
func NewLogger(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	core, err := buildCore(cfg, otelProvider)
	if err != nil {
		return nil, err
	}

	var opts []zap.Option
	if cfg.Caller.Enabled {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(cfg.Caller.Skip))
	}
	if cfg.Stacktrace.Enabled {
		opts = append(opts, zap.AddStacktrace(cfg.Stacktrace.Level))
	}
	for k, v := range cfg.Fields {
		opts = append(opts, zap.Fields(zap.String(k, v)))
	}

	return FromZap(zap.New(core, opts...)), nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

// log checks the level before collecting context fields, so filtered
// entries cost nothing beyond the check.
func (l *Logger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	ce := l.zap.Check(lvl, msg)
	if ce == nil {
		return
	}
	if cf := ContextFields(ctx); len(cf) > 0 {
		fields = append(cf, fields...)
	}
	ce.Write(fields...)
}

func (l *Logger) Trace(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, TraceLevel, msg, fields)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) With(fields ...zap.Field) *Logger {
	return FromZap(l.base.With(fields...))
}

func (l *Logger) Named(name string) *Logger {
	return FromZap(l.base.Named(name))
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level zapcore.Level) bool {
	return l.base.Core().Enabled(level)
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() error {
	err := l.base.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}

// Underlying returns the zap logger for components that take one directly.
func (l *Logger) Underlying() *zap.Logger {
	return l.base
}

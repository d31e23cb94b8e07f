package logging

import (
	"errors"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// otelScope is the instrumentation scope of records sent through the bridge.
const otelScope = "github.com/fyrsmithlabs/docrag"

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "ts"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = encodeLevel

	if format == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

// encodeLevel names TraceLevel, which zap would print as "Level(-2)".
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == TraceLevel {
		enc.AppendString("trace")
		return
	}
	zapcore.LowercaseLevelEncoder(l, enc)
}

// buildCore tees the enabled sinks and applies sampling on top.
func buildCore(cfg *Config, otelProvider log.LoggerProvider) (zapcore.Core, error) {
	var cores []zapcore.Core

	if cfg.Output.Stdout || cfg.Output.Stderr {
		enc, err := NewRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, fmt.Errorf("building encoder: %w", err)
		}
		if cfg.Output.Stdout {
			cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), cfg.Level))
		}
		if cfg.Output.Stderr {
			cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.Lock(os.Stderr), cfg.Level))
		}
	}

	if cfg.Output.OTEL && otelProvider != nil {
		bridge := otelzap.NewCore(otelScope, otelzap.WithLoggerProvider(otelProvider))
		// The bridge has no level of its own.
		cores = append(cores, levelBand{Core: bridge, min: cfg.Level.Zap(), max: zapcore.FatalLevel})
	}

	if len(cores) == 0 {
		return nil, errors.New("at least one output must be enabled and available")
	}
	return sample(zapcore.NewTee(cores...), cfg.Sampling), nil
}

// sample throttles entries below error. Error and above bypass the sampler.
func sample(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}
	low := levelBand{Core: core, min: TraceLevel, max: zapcore.WarnLevel}
	high := levelBand{Core: core, min: zapcore.ErrorLevel, max: zapcore.FatalLevel}
	return zapcore.NewTee(
		zapcore.NewSamplerWithOptions(low, cfg.Tick, cfg.Initial, cfg.Thereafter),
		high,
	)
}

// levelBand passes entries whose level lies in [min, max].
type levelBand struct {
	zapcore.Core
	min, max zapcore.Level
}

func (b levelBand) Enabled(l zapcore.Level) bool {
	return l >= b.min && l <= b.max && b.Core.Enabled(l)
}

func (b levelBand) With(fields []zapcore.Field) zapcore.Core {
	return levelBand{Core: b.Core.With(fields), min: b.min, max: b.max}
}

func (b levelBand) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !b.Enabled(e.Level) {
		return ce
	}
	return b.Core.Check(e, ce)
}

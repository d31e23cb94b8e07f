package logging

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap/zapcore"
)

// Config is the logging section of the docrag configuration.
type Config struct {
	Level      Level             `koanf:"level"`
	Format     string            `koanf:"format"`
	Output     OutputConfig      `koanf:"output"`
	Sampling   SamplingConfig    `koanf:"sampling"`
	Caller     CallerConfig      `koanf:"caller"`
	Stacktrace StacktraceConfig  `koanf:"stacktrace"`
	Fields     map[string]string `koanf:"fields"`
	Redaction  RedactionConfig   `koanf:"redaction"`
}

// OutputConfig selects sinks. Any combination may be enabled.
type OutputConfig struct {
	Stdout bool `koanf:"stdout"`
	// Stderr is used by the stdio MCP server, which owns stdout.
	Stderr bool `koanf:"stderr"`
	OTEL   bool `koanf:"otel"`
}

// SamplingConfig throttles repeated entries below error level. An ingestion
// of a large PDF can log per chunk; errors are always kept.
type SamplingConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Tick       time.Duration `koanf:"tick"`
	Initial    int           `koanf:"initial"`
	Thereafter int           `koanf:"thereafter"`
}

// CallerConfig adds the calling file and line. Skip applies to zap loggers
// handed out by Logger.Underlying.
type CallerConfig struct {
	Enabled bool `koanf:"enabled"`
	Skip    int  `koanf:"skip"`
}

// StacktraceConfig attaches stack traces at or above Level.
type StacktraceConfig struct {
	Enabled bool  `koanf:"enabled"`
	Level   Level `koanf:"level"`
}

// RedactionConfig masks fields by key and string values by pattern in the
// stdout/stderr encoders.
type RedactionConfig struct {
	Enabled  bool     `koanf:"enabled"`
	Fields   []string `koanf:"fields"`
	Patterns []string `koanf:"patterns"`
}

// NewDefaultConfig returns JSON logging at info to stdout.
func NewDefaultConfig() *Config {
	return &Config{
		Level:  Level(zapcore.InfoLevel),
		Format: "json",
		Output: OutputConfig{Stdout: true},
		Sampling: SamplingConfig{
			Enabled:    true,
			Tick:       time.Second,
			Initial:    100,
			Thereafter: 10,
		},
		Caller: CallerConfig{Enabled: true},
		Stacktrace: StacktraceConfig{
			Enabled: true,
			Level:   Level(zapcore.ErrorLevel),
		},
		Fields: map[string]string{"service": "docrag"},
		Redaction: RedactionConfig{
			Enabled: true,
			Fields: []string{
				"password", "secret", "token", "api_key", "qdrant_api_key",
				"authorization", "bearer", "credential", "private_key",
			},
			Patterns: []string{
				`(?i)bearer\s+\S+`,
				`(?i)api[_-]?key[=:]\s*\S+`,
			},
		},
	}
}

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("format must be 'json' or 'console', got %q", c.Format))
	}
	if !c.Output.Stdout && !c.Output.Stderr && !c.Output.OTEL {
		errs = append(errs, errors.New("at least one output must be enabled (stdout, stderr or otel)"))
	}
	if s := c.Sampling; s.Enabled {
		if s.Tick <= 0 {
			errs = append(errs, errors.New("sampling tick must be > 0 when sampling enabled"))
		}
		if s.Initial < 1 || s.Thereafter < 0 {
			errs = append(errs, errors.New("sampling initial must be >= 1 and thereafter >= 0"))
		}
	}
	if c.Caller.Skip < 0 {
		errs = append(errs, fmt.Errorf("caller skip must be >= 0, got %d", c.Caller.Skip))
	}
	if c.Redaction.Enabled {
		if _, err := compilePatterns(c.Redaction.Patterns); err != nil {
			errs = append(errs, err)
		}
	}
	for k, v := range c.Fields {
		if k == "" || v == "" {
			errs = append(errs, fmt.Errorf("static field %q has an empty key or value", k))
		}
	}
	return errors.Join(errs...)
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		if len(p) > maxPatternLen {
			return nil, fmt.Errorf("redaction pattern too long (max %d chars): %q", maxPatternLen, p)
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redaction pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

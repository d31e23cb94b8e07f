package logging

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// TraceLevel sits below Debug and carries per-chunk and per-vector detail.
const TraceLevel = zapcore.Level(-2)

// Level is the configured minimum level. Unlike zapcore.Level it accepts
// "trace" from config files and LOGGING_LEVEL.
type Level zapcore.Level

// Zap returns l as a zapcore.Level.
func (l Level) Zap() zapcore.Level { return zapcore.Level(l) }

// Enabled implements zapcore.LevelEnabler.
func (l Level) Enabled(lvl zapcore.Level) bool { return lvl >= l.Zap() }

func (l Level) String() string {
	if l.Zap() == TraceLevel {
		return "trace"
	}
	return l.Zap().String()
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	lvl, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = Level(lvl)
	return nil
}

// ParseLevel parses a level name such as "trace", "debug" or "WARN".
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "trace" || name == "TRACE" {
		return TraceLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return lvl, nil
}

package config

import (
	"encoding/json"

	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Secret holds a credential such as an embedding server token or a qdrant
// API key. Every printing or encoding path renders it as [REDACTED]; only
// Value returns the raw string.
type Secret string

// Value returns the raw credential.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.masked() }
func (s Secret) GoString() string { return "config.Secret(" + redacted + ")" }

// MarshalJSON keeps credentials out of dumped configuration.
func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }

// MarshalText is used by yaml and koanf when a config is written back out.
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

// UnmarshalText stores the raw value read from a file or the environment.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}

// MarshalLogObject lets a Secret be logged with zap.Object without leaking it.
func (s Secret) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("set", s.IsSet())
	return nil
}

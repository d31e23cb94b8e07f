package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, down to TraceLevel, for assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a Logger backed by an in-memory observer.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: FromZap(zap.New(core)), logs: logs}
}

// Entries returns the entries whose message contains msg.
func (t *TestLogger) Entries(msg string) []observer.LoggedEntry {
	var out []observer.LoggedEntry
	for _, e := range t.logs.All() {
		if strings.Contains(e.Message, msg) {
			out = append(out, e)
		}
	}
	return out
}

// AssertLogged fails tb unless an entry at level contains msg.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.Entries(msg) {
		if e.Level == level {
			return
		}
	}
	tb.Errorf("no %s entry containing %q; have %v", level, msg, t.messages())
}

// AssertNotLogged fails tb if an entry at level contains msg.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, msg string) {
	tb.Helper()
	for _, e := range t.Entries(msg) {
		if e.Level == level {
			tb.Errorf("unexpected %s entry %q", level, e.Message)
		}
	}
}

// AssertField fails tb unless an entry containing msg carries key=expected.
// Values compare in their zap-encoded form, so ints are int64.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, expected any) {
	tb.Helper()
	for _, e := range t.Entries(msg) {
		if v, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(v, expected) {
			return
		}
	}
	tb.Errorf("no entry containing %q has %s=%v", msg, key, expected)
}

// AssertDocument fails tb unless msg was logged for document id.
func (t *TestLogger) AssertDocument(tb testing.TB, msg, id string) {
	tb.Helper()
	t.AssertField(tb, msg, "document.id", id)
}

func (t *TestLogger) messages() []string {
	var out []string
	for _, e := range t.logs.All() {
		out = append(out, e.Message)
	}
	return out
}

package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level Level, f Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(WithLevel(level), WithFormatter(f), WithOutput(NewWriterOutput(&buf)))
	return l, &buf
}

func TestTextFormatterFields(t *testing.T) {
	l, buf := newBufferLogger(DebugLevel, &TextFormatter{})
	l.With(Component("registry")).Info("queue opened", Str("queue", "jobs"), Uint64("last_id", 7))

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "queue opened")
	assert.Contains(t, line, "component=registry")
	assert.Contains(t, line, "queue=jobs")
	assert.Contains(t, line, "last_id=7")
}

func TestLevelGate(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel, &TextFormatter{})
	l.Info("hidden")
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	l.SetLevel(DebugLevel)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestJSONFormatterError(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &JSONFormatter{})
	l.Error("store failed", Err(errors.New("disk full")))

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "ERROR", m["level"])
	assert.Equal(t, "disk full", m["error"])
	assert.Equal(t, "store failed", m["msg"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"", InfoLevel, false},
		{"WARN", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestApplyConfigRedaction(t *testing.T) {
	l, err := ApplyConfig(&Config{Level: "info", Format: "text", Redact: []string{"payload"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	bl := l.(*BaseLogger)
	bl.outputs = []Output{NewWriterOutput(&buf)}
	l.Info("enqueued", Str("payload", "secret"), Str("queue", "q"))

	assert.Contains(t, buf.String(), "payload=[REDACTED]")
	assert.NotContains(t, buf.String(), "secret")
}

func TestRedactionCoversBoundFields(t *testing.T) {
	l, err := ApplyConfig(&Config{Level: "info", Format: "text", Redact: []string{"payload"}})
	require.NoError(t, err)

	var buf bytes.Buffer
	l.(*BaseLogger).outputs = []Output{NewWriterOutput(&buf)}
	l.With(Str("payload", "secret")).Info("enqueued")

	assert.Contains(t, buf.String(), "payload=[REDACTED]")
	assert.NotContains(t, buf.String(), "secret")
}

func TestSlogGroupsQualifyKeys(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &TextFormatter{})
	sl := slog.New(newBridgeHandler(l.(*BaseLogger)))
	sl.WithGroup("store").With("op", "scan").Info("slow", slog.Group("rows", "n", 3))

	assert.Contains(t, buf.String(), "store.op=scan")
	assert.Contains(t, buf.String(), "store.rows.n=3")
}

func TestSampling(t *testing.T) {
	l, err := ApplyConfig(&Config{Level: "info", Format: "text", SampleInitial: 1, SampleThereafter: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	l.(*BaseLogger).outputs = []Output{NewWriterOutput(&buf)}
	for i := 0; i < 5; i++ {
		l.Info("tick")
	}
	l.Warn("tick")

	assert.Equal(t, 4, strings.Count(buf.String(), "tick"), buf.String())
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	_, err := ApplyConfig(&Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestStdLoggerBridge(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &TextFormatter{})
	std := ToStdLogger(l, WarnLevel)
	std.Printf("pebble: compaction %d", 3)
	out := buf.String()
	assert.True(t, strings.Contains(out, "WARN"), out)
	assert.Contains(t, out, "pebble: compaction 3")
}

func TestNopLogger(t *testing.T) {
	l := NewNopLogger()
	l.Error("dropped")
	assert.Equal(t, FatalLevel+1, l.GetLevel())
}

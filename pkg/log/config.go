package log

import (
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"strings"
)

// Config declares how a process logger is built.
type Config struct {
	Level  string      `json:"level" yaml:"level"`
	Format string      `json:"format" yaml:"format"`
	File   *FileConfig `json:"file,omitempty" yaml:"file,omitempty"`
	// Console disables stderr output when explicitly false and a file is set.
	Console *bool `json:"console,omitempty" yaml:"console,omitempty"`
	// Redact lists field keys whose values are replaced before formatting.
	Redact []string `json:"redact,omitempty" yaml:"redact,omitempty"`
	// SampleInitial/SampleThereafter enable per-message sampling when
	// SampleThereafter > 0.
	SampleInitial    int `json:"sampleInitial,omitempty" yaml:"sampleInitial,omitempty"`
	SampleThereafter int `json:"sampleThereafter,omitempty" yaml:"sampleThereafter,omitempty"`
}

// ApplyConfig builds a Logger from cfg.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		return nil, errors.New("log: nil config")
	}
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		formatter = &TextFormatter{}
	case "json":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(lvl), WithFormatter(formatter)}
	if cfg.File != nil && cfg.File.Filename != "" {
		opts = append(opts, WithOutput(NewFileOutput(*cfg.File)))
		if cfg.Console == nil || *cfg.Console {
			opts = append(opts, WithOutput(NewConsoleOutput()))
		}
	}
	l := NewLogger(opts...).(*BaseLogger)

	h := newBridgeHandler(l, bridgeRedact(cfg.Redact), bridgeSample(cfg.SampleInitial, cfg.SampleThereafter))
	l.slogLogger = slog.New(h)
	return l, nil
}

// RedirectStdLog routes the standard library logger through l at info level.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(stdWriter{l: l, level: InfoLevel})
}

// ToStdLogger returns a *log.Logger whose lines are written through l.
func ToStdLogger(l Logger, level Level) *stdlog.Logger {
	return stdlog.New(stdWriter{l: l, level: level}, "", 0)
}

type stdWriter struct {
	l     Logger
	level Level
}

var _ io.Writer = stdWriter{}

func (w stdWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.l.Debug(msg)
	case WarnLevel:
		w.l.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.l.Error(msg)
	default:
		w.l.Info(msg)
	}
	return len(p), nil
}

package log

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsoleOutput writes formatted entries to a writer, stderr by default.
type ConsoleOutput struct {
	w io.Writer
}

// NewConsoleOutput returns an output writing to stderr.
func NewConsoleOutput() *ConsoleOutput { return &ConsoleOutput{w: os.Stderr} }

// NewWriterOutput returns an output writing to w.
func NewWriterOutput(w io.Writer) *ConsoleOutput { return &ConsoleOutput{w: w} }

func (o *ConsoleOutput) Write(_ *Entry, b []byte) error {
	w := o.w
	if w == nil {
		w = os.Stderr
	}
	_, err := w.Write(b)
	return err
}

func (o *ConsoleOutput) Close() error { return nil }

// FileOutput writes to a size-rotated file.
type FileOutput struct {
	lj *lumberjack.Logger
}

// FileConfig configures rotation for FileOutput.
type FileConfig struct {
	Filename   string `json:"filename" yaml:"filename"`
	MaxSizeMB  int    `json:"maxSizeMB" yaml:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	MaxAgeDays int    `json:"maxAgeDays" yaml:"maxAgeDays"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// NewFileOutput opens a rotating file output. Zero limits fall back to
// 100MB per file, 10 backups, 30 days.
func NewFileOutput(cfg FileConfig) *FileOutput {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 10
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = 30
	}
	return &FileOutput{lj: &lumberjack.Logger{
		Filename:   cfg.Filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}}
}

func (o *FileOutput) Write(_ *Entry, b []byte) error {
	_, err := o.lj.Write(b)
	return err
}

func (o *FileOutput) Close() error { return o.lj.Close() }

// NullOutput drops everything.
type NullOutput struct{}

func (NullOutput) Write(*Entry, []byte) error { return nil }
func (NullOutput) Close() error               { return nil }

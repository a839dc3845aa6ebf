package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/rzbill/pqueue/internal/codec"
	pebblestore "github.com/rzbill/pqueue/internal/storage/pebble"
	"github.com/rzbill/pqueue/pkg/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Duration is a time.Duration that reads and writes as "30s" style text in
// JSON, YAML and environment variables.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error { return d.UnmarshalText([]byte(n.Value)) }

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir string `json:"dataDir" yaml:"dataDir" env:"DATA_DIR"`
	// Backend selects the table store: pebble or sqlite.
	Backend       string   `json:"backend" yaml:"backend" env:"BACKEND"`
	Fsync         string   `json:"fsync" yaml:"fsync" env:"FSYNC"`
	FsyncInterval Duration `json:"fsyncInterval" yaml:"fsyncInterval" env:"FSYNC_INTERVAL"`
	// ClockIDs seeds pebble item ids from the wall clock in nanoseconds.
	ClockIDs          bool     `json:"clockIds" yaml:"clockIds" env:"CLOCK_IDS"`
	SQLiteBusyTimeout Duration `json:"sqliteBusyTimeout" yaml:"sqliteBusyTimeout" env:"SQLITE_BUSY_TIMEOUT"`

	DefaultQueueName        string   `json:"defaultQueueName" yaml:"defaultQueueName" env:"DEFAULT_QUEUE_NAME"`
	QueueNameRegex          string   `json:"queueNameRegex" yaml:"queueNameRegex" env:"QUEUE_NAME_REGEX"`
	DefaultInvisibleTimeout Duration `json:"defaultInvisibleTimeout" yaml:"defaultInvisibleTimeout" env:"DEFAULT_INVISIBLE_TIMEOUT"`

	Codec                string `json:"codec" yaml:"codec" env:"CODEC"`
	Compression          string `json:"compression" yaml:"compression" env:"COMPRESSION"`
	CompressionThreshold int    `json:"compressionThreshold" yaml:"compressionThreshold" env:"COMPRESSION_THRESHOLD"`

	Log LogConfig `json:"log" yaml:"log" envPrefix:"LOG_"`
}

// LogConfig is the file/env shape of log.Config.
type LogConfig struct {
	Level      string   `json:"level" yaml:"level" env:"LEVEL"`
	Format     string   `json:"format" yaml:"format" env:"FORMAT"`
	File       string   `json:"file" yaml:"file" env:"FILE"`
	MaxSizeMB  int      `json:"maxSizeMB" yaml:"maxSizeMB" env:"MAX_SIZE_MB"`
	MaxBackups int      `json:"maxBackups" yaml:"maxBackups" env:"MAX_BACKUPS"`
	Redact     []string `json:"redact" yaml:"redact" env:"REDACT" envSeparator:","`
}

// Logger converts c to a log.Config.
func (c LogConfig) Logger() *log.Config {
	out := &log.Config{Level: c.Level, Format: c.Format, Redact: c.Redact}
	if c.File != "" {
		out.File = &log.FileConfig{Filename: c.File, MaxSizeMB: c.MaxSizeMB, MaxBackups: c.MaxBackups}
	}
	return out
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:                 DefaultDataDir(),
		Backend:                 "pebble",
		Fsync:                   "always",
		FsyncInterval:           Duration(5 * time.Millisecond),
		SQLiteBusyTimeout:       Duration(5 * time.Second),
		DefaultQueueName:        "default",
		QueueNameRegex:          `^[A-Za-z0-9_-][A-Za-z0-9._-]{0,127}$`,
		DefaultInvisibleTimeout: Duration(30 * time.Second),
		Codec:                   "gob",
		Compression:             "none",
		CompressionThreshold:    256,
		Log:                     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads configuration from a JSON or YAML file (by extension) on top of
// Default. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: dataDir is empty")
	}
	switch c.Backend {
	case "pebble", "sqlite":
	default:
		return fmt.Errorf("config: unknown backend %q; use pebble|sqlite", c.Backend)
	}
	if _, err := pebblestore.ParseFsyncMode(c.Fsync); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := codec.ByName(c.Codec); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := codec.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	re, err := regexp.Compile(c.QueueNameRegex)
	if err != nil {
		return fmt.Errorf("config: queueNameRegex: %w", err)
	}
	if !re.MatchString(c.DefaultQueueName) {
		return fmt.Errorf("config: defaultQueueName %q does not match queueNameRegex", c.DefaultQueueName)
	}
	if c.DefaultInvisibleTimeout <= 0 {
		return errors.New("config: defaultInvisibleTimeout must be positive")
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

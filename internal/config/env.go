package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PQUEUE_"

// FromEnv overlays PQUEUE_* environment variables onto cfg. Unset variables
// leave the current value alone.
func FromEnv(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. An empty path loads
// ./.env when it exists.
func LoadDotEnv(path string) error {
	if path == "" {
		err := godotenv.Load()
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

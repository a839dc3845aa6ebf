package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "pqueue"

// DefaultDataDir returns where queue directories live when no data dir is
// configured: $XDG_DATA_HOME/pqueue if set, otherwise the per-user data
// directory of the host OS. Without a home directory it is ./data.
func DefaultDataDir() string {
	return dataDirFor(runtime.GOOS, os.Getenv, os.UserHomeDir)
}

func dataDirFor(goos string, getenv func(string) string, home func() (string, error)) string {
	if xdg := getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	h, err := home()
	if err != nil || h == "" {
		return "./data"
	}
	switch goos {
	case "darwin", "ios":
		return filepath.Join(h, "Library", "Application Support", "PQueue")
	case "windows":
		if local := getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "PQueue")
		}
		return filepath.Join(h, "AppData", "Local", "PQueue")
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly", "solaris", "illumos":
		return filepath.Join(h, ".local", "share", appDir)
	default:
		return filepath.Join(h, "."+appDir)
	}
}

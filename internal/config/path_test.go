package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestDataDirFor(t *testing.T) {
	noHome := func() (string, error) { return "", errors.New("no home") }
	home := func() (string, error) { return "/home/u", nil }

	tests := []struct {
		name string
		goos string
		env  map[string]string
		home func() (string, error)
		want string
	}{
		{"xdg wins", "linux", map[string]string{"XDG_DATA_HOME": "/custom/data"}, home, filepath.Join("/custom/data", "pqueue")},
		{"xdg without home", "linux", map[string]string{"XDG_DATA_HOME": "/x"}, noHome, filepath.Join("/x", "pqueue")},
		{"no home", "linux", nil, noHome, "./data"},
		{"linux", "linux", nil, home, filepath.Join("/home/u", ".local", "share", "pqueue")},
		{"darwin", "darwin", nil, home, filepath.Join("/home/u", "Library", "Application Support", "PQueue")},
		{"windows local app data", "windows", map[string]string{"LOCALAPPDATA": "/lad"}, home, filepath.Join("/lad", "PQueue")},
		{"windows fallback", "windows", nil, home, filepath.Join("/home/u", "AppData", "Local", "PQueue")},
		{"other", "plan9", nil, home, filepath.Join("/home/u", ".pqueue")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			getenv := func(k string) string { return tt.env[k] }
			if got := dataDirFor(tt.goos, getenv, tt.home); got != tt.want {
				t.Fatalf("dataDirFor(%s) = %q, want %q", tt.goos, got, tt.want)
			}
		})
	}
}

func TestDefaultDataDirHonorsXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got, want := DefaultDataDir(), filepath.Join("/custom/data", "pqueue"); got != want {
		t.Fatalf("DefaultDataDir() = %q, want %q", got, want)
	}
	if got := Default().DataDir; got != DefaultDataDir() {
		t.Fatalf("Default().DataDir = %q", got)
	}
}

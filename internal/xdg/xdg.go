// Package xdg resolves XDG Base Directory paths for jsonquery. Directories
// are created with private permissions on first use.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "jsonquery"

// ConfigDir returns $XDG_CONFIG_HOME/jsonquery, falling back to
// ~/.config/jsonquery.
func ConfigDir() (string, error) {
	return dir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/jsonquery, falling back to
// ~/.local/state/jsonquery. The default COPY root lives below it.
func StateDir() (string, error) {
	return dir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func dir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	d := filepath.Join(base, appName)
	if err := os.MkdirAll(d, 0o700); err != nil { // private dir
		return "", err
	}
	return d, nil
}

// Package dirs resolves the per-user directories webmcut reads from.
package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "webmcut"

// AppName returns the canonical application name for directory paths.
func AppName() string {
	return appName
}

// base describes where one kind of directory lives on each platform.
type base struct {
	xdgEnv   string   // honored on Linux
	linux    []string // below $HOME when xdgEnv is unset
	darwin   []string // below $HOME
	fallback func() (string, error)
}

var (
	configBase = base{
		xdgEnv:   "XDG_CONFIG_HOME",
		linux:    []string{".config"},
		darwin:   []string{"Library", "Application Support"},
		fallback: os.UserConfigDir,
	}
	cacheBase = base{
		xdgEnv:   "XDG_CACHE_HOME",
		linux:    []string{".cache"},
		darwin:   []string{"Library", "Caches"},
		fallback: os.UserCacheDir,
	}
)

func (b base) resolve(goos string) (string, error) {
	var parts []string
	switch goos {
	case "linux":
		if xdg := os.Getenv(b.xdgEnv); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		parts = b.linux
	case "darwin":
		parts = b.darwin
	default:
		dir, err := b.fallback()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, parts...), appName)...), nil
}

// ConfigDir holds config.{yaml,json,toml}.
// Linux: $XDG_CONFIG_HOME/webmcut or ~/.config/webmcut; macOS:
// ~/Library/Application Support/webmcut; elsewhere os.UserConfigDir.
func ConfigDir() (string, error) {
	return configBase.resolve(runtime.GOOS)
}

// CacheDir is the suggested place for kept job workdirs.
func CacheDir() (string, error) {
	return cacheBase.resolve(runtime.GOOS)
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

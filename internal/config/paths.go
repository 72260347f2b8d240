package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "yk-ddns"

// Paths holds the resolved locations of the configuration document and the cache file.
type Paths struct {
	Config string
	Cache  string
}

// ResolvePaths picks the config and cache file locations. Explicit arguments win,
// then the CONF_DIR / DATA_DIR environment variables, then the per-user OS directories.
func ResolvePaths(configFile, cacheFile string) (*Paths, error) {
	if configFile == "" {
		dir := os.Getenv("CONF_DIR")
		if dir == "" {
			base, err := os.UserConfigDir()
			if err != nil {
				return nil, fmt.Errorf("resolving config directory: %w", err)
			}
			dir = filepath.Join(base, appName)
		}
		configFile = filepath.Join(dir, "config.yaml")
	}

	if cacheFile == "" {
		dir := os.Getenv("DATA_DIR")
		if dir == "" {
			base, err := userDataDir()
			if err != nil {
				return nil, fmt.Errorf("resolving data directory: %w", err)
			}
			dir = filepath.Join(base, appName)
		}
		cacheFile = filepath.Join(dir, "cache.yaml")
	}

	return &Paths{Config: configFile, Cache: cacheFile}, nil
}

// userDataDir mirrors os.UserConfigDir for application data.
func userDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LocalAppData"); dir != "" {
			return dir, nil
		}
		return "", fmt.Errorf("%%LocalAppData%% is not defined")
	case "darwin", "ios":
		return os.UserConfigDir()
	}
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

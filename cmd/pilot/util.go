package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vinayprograms/pilot/internal/config"
	"github.com/vinayprograms/pilot/internal/oracle"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// expandHome resolves a leading ~ against the user's home directory.
func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// loadConfig resolves the effective configuration: an explicit path must
// load, pilot.toml in the working directory may be absent, and a missing
// file falls back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadDefault()
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// parseRetryConfig converts config values to oracle retry settings.
func parseRetryConfig(maxRetries int, backoffStr string) oracle.RetryConfig {
	cfg := oracle.RetryConfig{
		MaxRetries: maxRetries,
	}
	if backoffStr != "" {
		if d, err := time.ParseDuration(backoffStr); err == nil {
			cfg.MaxBackoff = d
		}
	}
	return cfg
}

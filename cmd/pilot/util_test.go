package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsTerminal(t *testing.T) {
	// A temp file is definitely not a terminal.
	f, err := os.CreateTemp("", "test-terminal-*")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if isTerminal(f) {
		t.Error("expected temp file to not be a terminal")
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		in   string
		want string
	}{
		{"~/.local/pilot", filepath.Join(home, ".local/pilot")},
		{"/tmp/x", "/tmp/x"},
		{"relative/path", "relative/path"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := expandHome(tt.in); got != tt.want {
			t.Errorf("expandHome(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadConfig_ExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.toml")
	content := "[run]\nmax_iterations = 7\nmax_consecutive_failures = 2\ntimeout_ms = 1000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Run.MaxIterations != 7 {
		t.Errorf("max_iterations = %d, want 7", cfg.Run.MaxIterations)
	}
}

func TestLoadConfig_MissingExplicitPath(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestLoadConfig_DefaultsWhenAbsent(t *testing.T) {
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(origDir)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Run.MaxIterations != 50 {
		t.Errorf("max_iterations = %d, want default 50", cfg.Run.MaxIterations)
	}
}

func TestParseRetryConfig(t *testing.T) {
	tests := []struct {
		name        string
		maxRetries  int
		backoffStr  string
		wantMax     int
		wantBackoff time.Duration
	}{
		{
			name:        "defaults",
			maxRetries:  3,
			backoffStr:  "",
			wantMax:     3,
			wantBackoff: 0,
		},
		{
			name:        "with backoff",
			maxRetries:  5,
			backoffStr:  "30s",
			wantMax:     5,
			wantBackoff: 30 * time.Second,
		},
		{
			name:        "invalid backoff",
			maxRetries:  2,
			backoffStr:  "invalid",
			wantMax:     2,
			wantBackoff: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := parseRetryConfig(tt.maxRetries, tt.backoffStr)
			if cfg.MaxRetries != tt.wantMax {
				t.Errorf("MaxRetries = %v, want %v", cfg.MaxRetries, tt.wantMax)
			}
			if cfg.MaxBackoff != tt.wantBackoff {
				t.Errorf("MaxBackoff = %v, want %v", cfg.MaxBackoff, tt.wantBackoff)
			}
		})
	}
}

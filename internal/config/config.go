// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the pilot configuration.
type Config struct {
	Pilot     PilotConfig        `toml:"pilot"`
	Run       RunConfig          `toml:"run"`       // Execution loop settings
	Oracle    OracleConfig       `toml:"oracle"`    // Default planner model settings
	Profiles  map[string]Profile `toml:"profiles"`  // Capability profiles
	Audit     AuditConfig        `toml:"audit"`     // Audit trail destinations
	Telemetry TelemetryConfig    `toml:"telemetry"`
}

// PilotConfig contains instance identification settings.
type PilotConfig struct {
	ID        string `toml:"id"`
	Workspace string `toml:"workspace"`
}

// RunConfig contains execution loop settings.
type RunConfig struct {
	MaxIterations          int  `toml:"max_iterations"`           // Total loop iterations before giving up (default 50)
	MaxConsecutiveFailures int  `toml:"max_consecutive_failures"` // Failures in a row before reassessment (default 3)
	TimeoutMs              int  `toml:"timeout_ms"`               // Per-command wall clock limit (default 60000)
	DryRun                 bool `toml:"dry_run"`                  // Preview commands without executing
	AutoApprove            bool `toml:"auto_approve"`             // Skip approval prompts for risky commands
	AllowDangerous         bool `toml:"allow_dangerous"`          // Alias tier for auto_approve; never unblocks rule matches
	Verify                 bool `toml:"verify"`                   // Ask the model to judge the outcome after completion
}

// OracleConfig contains planner model settings.
type OracleConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKeyEnv    string `toml:"api_key_env"`
	MaxTokens    int    `toml:"max_tokens"`
	BaseURL      string `toml:"base_url"`      // Custom API endpoint (OpenRouter, LiteLLM, Ollama, LMStudio)
	Thinking     string `toml:"thinking"`      // Thinking level: off|low|medium|high
	MaxRetries   int    `toml:"max_retries"`   // Max retry attempts (default 5)
	RetryBackoff string `toml:"retry_backoff"` // Max backoff duration (default "60s")
}

// Profile represents a capability profile mapping to a specific model configuration.
type Profile struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint
	Thinking  string `toml:"thinking"` // Thinking level: off|low|medium|high
}

// AuditConfig contains audit trail destinations.
type AuditConfig struct {
	Dir         string `toml:"dir"`          // Directory for per-run trail files
	DB          string `toml:"db"`           // SQLite run index, empty to disable
	NATSURL     string `toml:"nats_url"`     // Broadcast server, empty to disable
	NATSSubject string `toml:"nats_subject"` // Subject for broadcast records
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool              `toml:"enabled"`
	Endpoint string            `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string            `toml:"protocol"` // grpc (default) or http
	Insecure bool              `toml:"insecure"` // Disable TLS (default false)
	Headers  map[string]string `toml:"headers"`  // Auth headers (e.g., DD-API-KEY, x-honeycomb-team)
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Run: RunConfig{
			MaxIterations:          50,
			MaxConsecutiveFailures: 3,
			TimeoutMs:              60000,
		},
		Oracle: OracleConfig{
			MaxTokens: 8192,
		},
		Audit: AuditConfig{
			Dir:         "~/.local/pilot/runs",
			DB:          "~/.local/pilot/index.db",
			NATSSubject: "pilot.audit",
		},
		Telemetry: TelemetryConfig{
			Protocol: "grpc",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads configuration from pilot.toml in the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	return LoadFile(filepath.Join(cwd, "pilot.toml"))
}

// Validate rejects loop settings a run could not make progress with.
func (c *Config) Validate() error {
	if c.Run.MaxIterations <= 0 {
		return fmt.Errorf("run.max_iterations must be > 0, got %d", c.Run.MaxIterations)
	}
	if c.Run.MaxConsecutiveFailures <= 0 {
		return fmt.Errorf("run.max_consecutive_failures must be > 0, got %d", c.Run.MaxConsecutiveFailures)
	}
	if c.Run.TimeoutMs <= 0 {
		return fmt.Errorf("run.timeout_ms must be > 0, got %d", c.Run.TimeoutMs)
	}
	return nil
}

// CommandTimeout returns the per-command limit as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Run.TimeoutMs) * time.Millisecond
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.Oracle.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.Oracle.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}

// GetProfile returns the oracle config for a capability profile.
// Falls back to the default oracle config if profile not found.
func (c *Config) GetProfile(name string) OracleConfig {
	if name == "" {
		return c.Oracle
	}
	if profile, ok := c.Profiles[name]; ok {
		// Fill in defaults from the main oracle config
		result := OracleConfig{
			Provider:  profile.Provider,
			Model:     profile.Model,
			APIKeyEnv: profile.APIKeyEnv,
			MaxTokens: profile.MaxTokens,
			BaseURL:   profile.BaseURL,
			Thinking:  profile.Thinking,
		}
		if result.Provider == "" {
			result.Provider = c.Oracle.Provider
		}
		if result.APIKeyEnv == "" {
			result.APIKeyEnv = c.Oracle.APIKeyEnv
		}
		if result.MaxTokens == 0 {
			result.MaxTokens = c.Oracle.MaxTokens
		}
		return result
	}
	return c.Oracle
}

// GetProfileAPIKey returns the API key for a specific profile.
func (c *Config) GetProfileAPIKey(profileName string) string {
	oracleCfg := c.GetProfile(profileName)
	if oracleCfg.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(oracleCfg.APIKeyEnv)
}

// Package credentials loads API keys from standard locations.
package credentials

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credentials holds API keys loaded from credentials.toml
type Credentials struct {
	Anthropic *ProviderCreds `toml:"anthropic"`
	OpenAI    *ProviderCreds `toml:"openai"`
	Google    *ProviderCreds `toml:"google"`
	Mistral   *ProviderCreds `toml:"mistral"`
	Groq      *ProviderCreds `toml:"groq"`
}

// ProviderCreds holds credentials for a single provider
type ProviderCreds struct {
	APIKey string `toml:"api_key"`
}

// DefaultPath returns the location Save writes to.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "credentials.toml"
	}
	return filepath.Join(home, ".config", "pilot", "credentials.toml")
}

// StandardPaths returns the standard credential file locations in order of priority
func StandardPaths() []string {
	paths := []string{}

	// 1. Current directory
	paths = append(paths, "credentials.toml")

	// 2. ~/.config/pilot/credentials.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "pilot", "credentials.toml"))
	}

	// 3. ~/.pilot/credentials.toml (fallback)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".pilot", "credentials.toml"))
	}

	return paths
}

// Load loads credentials from the first available standard location
func Load() (*Credentials, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			creds, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return creds, path, nil
		}
	}
	return nil, "", nil // No credentials file found (not an error)
}

// LoadFile loads credentials from a specific file
func LoadFile(path string) (*Credentials, error) {
	var creds Credentials
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SetAPIKey records the key for a provider. Unknown providers are
// ignored; they are configured through api_key_env instead.
func (c *Credentials) SetAPIKey(provider, key string) {
	switch provider {
	case "anthropic":
		c.Anthropic = &ProviderCreds{APIKey: key}
	case "openai":
		c.OpenAI = &ProviderCreds{APIKey: key}
	case "google":
		c.Google = &ProviderCreds{APIKey: key}
	case "mistral":
		c.Mistral = &ProviderCreds{APIKey: key}
	case "groq":
		c.Groq = &ProviderCreds{APIKey: key}
	}
}

// Save writes the credentials to DefaultPath with owner-only access.
func (c *Credentials) Save() error {
	path := DefaultPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

// Apply sets environment variables from loaded credentials (if not already set)
func (c *Credentials) Apply() {
	if c == nil {
		return
	}

	for envVar, p := range map[string]*ProviderCreds{
		"ANTHROPIC_API_KEY": c.Anthropic,
		"OPENAI_API_KEY":    c.OpenAI,
		"GOOGLE_API_KEY":    c.Google,
		"MISTRAL_API_KEY":   c.Mistral,
		"GROQ_API_KEY":      c.Groq,
	} {
		if p != nil && p.APIKey != "" {
			setIfEmpty(envVar, p.APIKey)
		}
	}
}

func setIfEmpty(key, value string) {
	if os.Getenv(key) == "" {
		os.Setenv(key, value)
	}
}

// Package oracle talks to the external decision maker that drives plan
// execution. The engine hands it redacted step context and receives
// discriminated actions back; transport, retry, and model selection all
// live behind the Provider boundary so tests can swap in deterministic
// stand-ins.
package oracle

import (
	"context"
	"fmt"
	"time"
)

// Message is a single chat turn.
type Message struct {
	Role       string // "system", "user", "assistant", "tool"
	Content    string
	ToolCalls  []ToolCallResponse
	ToolCallID string
}

// ToolDef describes a tool offered to the model.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ChatRequest is a single model invocation.
type ChatRequest struct {
	Messages  []Message
	Tools     []ToolDef
	MaxTokens int
}

// ToolCallResponse is a tool invocation requested by the model.
type ToolCallResponse struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// ChatResponse is the model's reply.
type ChatResponse struct {
	Content      string
	Thinking     string
	ToolCalls    []ToolCallResponse
	StopReason   string
	InputTokens  int
	OutputTokens int
	Model        string
}

// Provider is the transport boundary to a language model.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ThinkingLevel selects how much extended reasoning to request.
type ThinkingLevel string

const (
	ThinkingOff    ThinkingLevel = "off"
	ThinkingLow    ThinkingLevel = "low"
	ThinkingMedium ThinkingLevel = "medium"
	ThinkingHigh   ThinkingLevel = "high"
)

// ThinkingConfig controls extended reasoning. An explicit BudgetTokens
// wins over the level mapping for providers that take a token budget.
type ThinkingConfig struct {
	Level        ThinkingLevel `toml:"level" json:"level"`
	BudgetTokens int64         `toml:"budget_tokens" json:"budget_tokens"`
}

// RetryConfig tunes transient-error retries. Zero values fall back to
// package defaults.
type RetryConfig struct {
	MaxRetries  int           `toml:"max_retries" json:"max_retries"`
	InitBackoff time.Duration `toml:"init_backoff" json:"init_backoff"`
	MaxBackoff  time.Duration `toml:"max_backoff" json:"max_backoff"`
}

// Config selects and configures a provider. Provider may be left empty
// when the model name is distinctive enough to infer it.
type Config struct {
	Provider  string         `toml:"provider" json:"provider"`
	Model     string         `toml:"model" json:"model"`
	APIKey    string         `toml:"api_key" json:"-"`
	BaseURL   string         `toml:"base_url" json:"base_url"`
	MaxTokens int            `toml:"max_tokens" json:"max_tokens"`
	Thinking  ThinkingConfig `toml:"thinking" json:"thinking"`
	Retry     RetryConfig    `toml:"retry" json:"retry"`
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	switch c.Provider {
	case "openai-compat", "openrouter", "litellm", "ollama", "lmstudio":
		if c.BaseURL == "" {
			return fmt.Errorf("base_url is required for provider %s", c.Provider)
		}
	}
	return nil
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxTokens <= 0 {
		c.MaxTokens = 8192
	}
	if c.Thinking.Level == "" {
		c.Thinking.Level = ThinkingOff
	}
}

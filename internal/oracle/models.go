package oracle

import (
	"context"
	"fmt"
	"os"
	"sync"

	"charm.land/catwalk/pkg/catwalk"
)

// Catalog lists known providers and models via catwalk, caching the
// result after the first fetch.
type Catalog struct {
	mu        sync.RWMutex
	providers []catwalk.Provider
	loaded    bool
}

// NewCatalog creates an empty catalog. The first lookup fetches.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Providers returns all available providers.
func (c *Catalog) Providers(ctx context.Context) ([]catwalk.Provider, error) {
	c.mu.RLock()
	if c.loaded {
		defer c.mu.RUnlock()
		return c.providers, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.loaded {
		return c.providers, nil
	}

	client := catwalk.New()
	providers, err := client.GetProviders(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch providers from catwalk: %w", err)
	}

	c.providers = providers
	c.loaded = true
	return providers, nil
}

// Models returns all models for a specific provider.
func (c *Catalog) Models(ctx context.Context, providerID string) ([]catwalk.Model, error) {
	providers, err := c.Providers(ctx)
	if err != nil {
		return nil, err
	}

	for _, p := range providers {
		if string(p.ID) == providerID {
			return p.Models, nil
		}
	}

	return nil, fmt.Errorf("provider %q not found", providerID)
}

// FindModel returns the provider ID owning a model, falling back to
// name-based inference when the catalog is unreachable or the model is
// not listed.
func (c *Catalog) FindModel(ctx context.Context, modelID string) (string, *catwalk.Model, error) {
	providers, err := c.Providers(ctx)
	if err != nil {
		inferred := InferProviderFromModel(modelID)
		if inferred != "" {
			return inferred, nil, nil
		}
		return "", nil, fmt.Errorf("model %q not found and cannot infer provider", modelID)
	}

	for _, p := range providers {
		for i, m := range p.Models {
			if m.ID == modelID {
				return string(p.ID), &p.Models[i], nil
			}
		}
	}

	inferred := InferProviderFromModel(modelID)
	if inferred != "" {
		return inferred, nil, nil
	}

	return "", nil, fmt.Errorf("model %q not found in any provider", modelID)
}

// List returns a flat list of all models across all providers.
func (c *Catalog) List(ctx context.Context) ([]ModelInfo, error) {
	providers, err := c.Providers(ctx)
	if err != nil {
		return nil, err
	}

	var models []ModelInfo
	for _, p := range providers {
		for _, m := range p.Models {
			models = append(models, ModelInfo{
				ID:             m.ID,
				Name:           m.Name,
				Provider:       string(p.ID),
				ContextWindow:  m.ContextWindow,
				CostPer1MIn:    m.CostPer1MIn,
				CostPer1MOut:   m.CostPer1MOut,
				CanReason:      m.CanReason,
				SupportsImages: m.SupportsImages,
			})
		}
	}
	return models, nil
}

// ProviderAPIKey resolves a provider's API key from the environment
// variable named in its catalog entry (e.g. "$ANTHROPIC_API_KEY").
func ProviderAPIKey(provider catwalk.Provider) string {
	if provider.APIKey != "" && provider.APIKey[0] == '$' {
		envVar := provider.APIKey[1:]
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}
	return ""
}

// ModelInfo is a simplified model representation for listing.
type ModelInfo struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Provider       string  `json:"provider"`
	ContextWindow  int64   `json:"context_window"`
	CostPer1MIn    float64 `json:"cost_per_1m_in"`
	CostPer1MOut   float64 `json:"cost_per_1m_out"`
	CanReason      bool    `json:"can_reason"`
	SupportsImages bool    `json:"supports_images"`
}

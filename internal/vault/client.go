// Package vault sources market data provider API keys from HashiCorp Vault,
// with a local in-memory fallback for development.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"
)

// Config holds the Vault connection settings
type Config struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// ProviderKey is the API key material stored for one data provider
type ProviderKey struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client *api.Client
	config Config

	mu    sync.RWMutex
	cache map[string]ProviderKey
}

// NewClient creates a new Vault client. When Vault is disabled the client
// operates against the local cache only.
func NewClient(cfg Config) (*Client, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "secret"
	}
	if !cfg.Enabled {
		return &Client{config: cfg, cache: make(map[string]ProviderKey)}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address
	if cfg.TLSEnabled && cfg.CACert != "" {
		if err := vaultConfig.ConfigureTLS(&api.TLSConfig{CACert: cfg.CACert}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, config: cfg, cache: make(map[string]ProviderKey)}, nil
}

// StoreProviderKey writes a provider API key to Vault
func (c *Client) StoreProviderKey(ctx context.Context, key ProviderKey) error {
	c.mu.Lock()
	c.cache[key.Provider] = key
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	_, err := c.client.Logical().WriteWithContext(ctx, c.secretPath(key.Provider), map[string]interface{}{
		"data": map[string]interface{}{
			"provider": key.Provider,
			"api_key":  key.APIKey,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to store provider key: %w", err)
	}
	return nil
}

// GetProviderKey reads a provider API key, preferring the local cache
func (c *Client) GetProviderKey(ctx context.Context, provider string) (ProviderKey, error) {
	c.mu.RLock()
	cached, ok := c.cache[provider]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	if !c.config.Enabled {
		return ProviderKey{}, fmt.Errorf("no API key configured for provider %q", provider)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(provider))
	if err != nil {
		return ProviderKey{}, fmt.Errorf("failed to read provider key: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return ProviderKey{}, fmt.Errorf("no API key stored for provider %q", provider)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return ProviderKey{}, fmt.Errorf("unexpected secret format for provider %q", provider)
	}
	apiKey, _ := data["api_key"].(string)
	if apiKey == "" {
		return ProviderKey{}, fmt.Errorf("empty API key stored for provider %q", provider)
	}

	key := ProviderKey{Provider: provider, APIKey: apiKey}
	c.mu.Lock()
	c.cache[provider] = key
	c.mu.Unlock()
	return key, nil
}

func (c *Client) secretPath(provider string) string {
	return fmt.Sprintf("%s/data/marketflow/providers/%s", c.config.MountPath, provider)
}

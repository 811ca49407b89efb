// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/catalogit/core"
)

// Supported embedding providers.
const (
	// ProviderRemote talks to the catalog embedding service (POST /embed, GET /health).
	ProviderRemote = "remote"
	// ProviderOpenAI talks to any OpenAI-compatible embeddings API.
	ProviderOpenAI = "openai"
	// ProviderMock produces deterministic vectors without a network.
	ProviderMock = "mock"
)

// Config holds configuration for the embedding provider.
type Config struct {
	// Provider selects the implementation: remote, openai or mock.
	Provider string `toml:"provider"`

	// EmbeddingHost is the base URL of the embedding service.
	// Example: "http://localhost:8000" for the catalog embedding service,
	// "http://localhost:11434/v1" for a local OpenAI-compatible server
	EmbeddingHost string `toml:"host"`

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "all-MiniLM-L6-v2", "text-embedding-3-small"
	EmbeddingModel string `toml:"model"`

	// APIKey is sent as the bearer token by the openai provider.
	// Local OpenAI-compatible servers accept any value.
	APIKey string `toml:"api_key"`

	// Dimension is the vector length the model produces.
	// Default: 384
	Dimension int `toml:"dimension"`

	// NormalizeVectors requests unit-length vectors.
	NormalizeVectors bool `toml:"normalize_vectors"`

	// Timeout bounds each HTTP request to the service.
	Timeout time.Duration `toml:"timeout"`

	// MaxRetries is the number of attempts for transient transport failures.
	MaxRetries int `toml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff between attempts.
	RetryDelay time.Duration `toml:"retry_delay"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider sets the provider name.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the API key for the openai provider.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimension sets the expected vector dimension.
func WithDimension(dimension int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dimension
	}
}

// WithNormalizeVectors toggles unit-length vectors.
func WithNormalizeVectors(normalize bool) ConfigOption {
	return func(c *Config) {
		c.NormalizeVectors = normalize
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetries sets the transport retry policy.
func WithRetries(maxRetries int, delay time.Duration) ConfigOption {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// DefaultConfig returns a Config for the catalog embedding service on localhost.
func DefaultConfig() *Config {
	return &Config{
		Provider:         ProviderRemote,
		EmbeddingHost:    "http://localhost:8000",
		EmbeddingModel:   "all-MiniLM-L6-v2",
		Dimension:        core.DefaultDimension,
		NormalizeVectors: true,
		Timeout:          60 * time.Second,
		MaxRetries:       3,
		RetryDelay:       500 * time.Millisecond,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderOpenAI),
//	    WithEmbeddingHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("nomic-embed-text"),
//	    WithDimension(768),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts the configuration in canonical form. OpenAI-compatible hosts
// get the /v1 suffix most servers (Ollama, LocalAI, vLLM) expect; remote
// hosts lose any trailing slash.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.EmbeddingHost == "" {
		return
	}
	switch c.Provider {
	case ProviderOpenAI:
		if !strings.HasSuffix(c.EmbeddingHost, "/v1") {
			c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/") + "/v1"
		}
	default:
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
	}
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderRemote, ProviderOpenAI, ProviderMock:
	default:
		return fmt.Errorf("ai config: %w: %q", ErrUnknownProvider, c.Provider)
	}

	if c.Provider != ProviderMock && c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.Provider == ProviderOpenAI && c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be positive")
	}
	if c.Timeout < 0 {
		return errors.New("ai config: Timeout cannot be negative")
	}
	if c.MaxRetries < 1 {
		return errors.New("ai config: MaxRetries must be at least 1")
	}
	return nil
}

package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderRemote, cfg.Provider)
	assert.Equal(t, "http://localhost:8000", cfg.EmbeddingHost)
	assert.Equal(t, "all-MiniLM-L6-v2", cfg.EmbeddingModel)
	assert.Equal(t, 384, cfg.Dimension)
	assert.True(t, cfg.NormalizeVectors)
	assert.Equal(t, 3, cfg.MaxRetries)
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with openai provider", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderOpenAI),
			WithEmbeddingHost("http://localhost:11434"),
			WithEmbeddingModel("nomic-embed-text"),
			WithAPIKey("secret"),
			WithDimension(768),
		)

		assert.Equal(t, ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
		assert.Equal(t, "secret", cfg.APIKey)
		assert.Equal(t, 768, cfg.Dimension)
	})

	t.Run("with transport settings", func(t *testing.T) {
		cfg := NewConfig(
			WithTimeout(5*time.Second),
			WithRetries(5, time.Second),
			WithNormalizeVectors(false),
		)

		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Equal(t, 5, cfg.MaxRetries)
		assert.Equal(t, time.Second, cfg.RetryDelay)
		assert.False(t, cfg.NormalizeVectors)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		host     string
		expected string
	}{
		{"openai already has /v1", ProviderOpenAI, "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"openai missing /v1", ProviderOpenAI, "http://localhost:11434", "http://localhost:11434/v1"},
		{"openai trailing slash", ProviderOpenAI, "http://localhost:11434/", "http://localhost:11434/v1"},
		{"remote trailing slash", ProviderRemote, "http://embed:8000/", "http://embed:8000"},
		{"remote untouched", ProviderRemote, "http://embed:8000", "http://embed:8000"},
		{"empty host", ProviderOpenAI, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, EmbeddingHost: tt.host}
			cfg.Normalize()
			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
		})
	}

	t.Run("provider is lowercased", func(t *testing.T) {
		cfg := &Config{Provider: " OpenAI "}
		cfg.Normalize()
		assert.Equal(t, ProviderOpenAI, cfg.Provider)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.Provider = "bert-server"
		assert.ErrorIs(t, cfg.Validate(), ErrUnknownProvider)
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := valid()
		cfg.EmbeddingHost = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingHost")
	})

	t.Run("mock needs no host", func(t *testing.T) {
		cfg := valid()
		cfg.Provider = ProviderMock
		cfg.EmbeddingHost = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("openai needs a model", func(t *testing.T) {
		cfg := valid()
		cfg.Provider = ProviderOpenAI
		cfg.EmbeddingModel = ""
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "EmbeddingModel")
	})

	t.Run("non-positive dimension", func(t *testing.T) {
		cfg := valid()
		cfg.Dimension = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Dimension")
	})

	t.Run("zero retries", func(t *testing.T) {
		cfg := valid()
		cfg.MaxRetries = 0
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "MaxRetries")
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/catalogit/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "catalog.db", cfg.Store.Path)
	assert.Equal(t, 50000, cfg.Source.MaxRecords)
	assert.Equal(t, 10*time.Minute, cfg.Source.DownloadTimeout)
	assert.Equal(t, ai.ProviderRemote, cfg.AI.Provider)
	assert.Equal(t, 32, cfg.Pipeline.BatchSize)
	assert.Equal(t, 3, cfg.Normalize.MinTitleLength)
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogit.toml")
	data := `
[store]
path = "/tmp/products.db"
index_dir = "/tmp/vectors"
ledger_dir = "/tmp/runs"

[source]
max_records = 200
download_timeout = "90s"
enable_s3 = true

[source.s3]
region = "eu-west-1"
use_path_style = true

[ai]
provider = "openai"
host = "http://localhost:11434"
model = "nomic-embed-text"
dimension = 768

[pipeline]
batch_size = 16
rate_limit = 4.5
write_timeout = "1m"

[normalize.columns]
id = ["sku", "asin"]

[reembed]
retry_delay = "250ms"

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/products.db", cfg.Store.Path)
	assert.Equal(t, "/tmp/vectors", cfg.Store.IndexDir)
	assert.Equal(t, "/tmp/runs", cfg.Store.LedgerDir)
	assert.Equal(t, 200, cfg.Source.MaxRecords)
	assert.Equal(t, 90*time.Second, cfg.Source.DownloadTimeout)
	assert.True(t, cfg.Source.EnableS3)
	assert.Equal(t, "eu-west-1", cfg.Source.S3.Region)
	assert.True(t, cfg.Source.S3.UsePathStyle)
	assert.Equal(t, ai.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 768, cfg.AI.Dimension)
	assert.Equal(t, 16, cfg.Pipeline.BatchSize)
	assert.InDelta(t, 4.5, cfg.Pipeline.RateLimit, 1e-9)
	assert.Equal(t, time.Minute, cfg.Pipeline.WriteTimeout)
	assert.Equal(t, []string{"sku", "asin"}, cfg.Normalize.Columns["id"])
	assert.Equal(t, 250*time.Millisecond, cfg.Reembed.RetryDelay)
	assert.Equal(t, "debug", cfg.Log.Level)

	// untouched sections keep their defaults
	assert.Equal(t, 10, cfg.Search.Limit)
	assert.Equal(t, 100, cfg.Store.PageSize)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.EmbeddingHost)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Parse("[store]\npaht = \"typo.db\"\n")
		assert.ErrorIs(t, err, ErrUnknownKeys)
	})

	t.Run("malformed toml", func(t *testing.T) {
		_, err := Parse("[store\n")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnknownKeys)
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := Parse("[pipeline]\nwrite_timeout = \"soon\"\n")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty store path", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"zero page size", func(c *Config) { c.Store.PageSize = 0 }, "store.page_size"},
		{"page size over the variable limit", func(c *Config) { c.Store.PageSize = 3000 }, "store.page_size cannot exceed"},
		{"negative max records", func(c *Config) { c.Source.MaxRecords = -1 }, "source.max_records"},
		{"zero batch size", func(c *Config) { c.Pipeline.BatchSize = 0 }, "pipeline.batch_size"},
		{"negative rate", func(c *Config) { c.Pipeline.RateLimit = -1 }, "pipeline.rate_limit"},
		{"similarity above one", func(c *Config) { c.Search.MinSimilarity = 1.5 }, "search.min_similarity"},
		{"zero retries", func(c *Config) { c.Reembed.MaxRetries = 0 }, "reembed.max_retries"},
		{"unknown column field", func(c *Config) { c.Normalize.Columns = map[string][]string{"colour": {"color"}} }, "normalize.columns"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad provider", func(c *Config) { c.AI.Provider = "bert" }, "unknown embedding provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

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


package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/embedding"
	"github.com/poiesic/catalogit/ingestion"
	"github.com/poiesic/catalogit/normalize"
	"github.com/poiesic/catalogit/reembed"
	"github.com/poiesic/catalogit/search"
	"github.com/poiesic/catalogit/source"
	"github.com/poiesic/catalogit/storage/sqlite"
)

// Config is the complete catalogit configuration.
type Config struct {
	Store     StoreConfig     `toml:"store"`
	Source    SourceConfig    `toml:"source"`
	AI        ai.Config       `toml:"ai"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Normalize NormalizeConfig `toml:"normalize"`
	Search    SearchConfig    `toml:"search"`
	Reembed   ReembedConfig   `toml:"reembed"`
	Log       LogConfig       `toml:"log"`
}

// StoreConfig locates the catalog store and the run ledger.
type StoreConfig struct {
	// Path is the SQLite database file.
	Path string `toml:"path"`
	// PageSize is the number of rows per multi-row INSERT.
	PageSize int `toml:"page_size"`
	// IndexDir holds the HNSW vector indexes. Empty places them beside Path.
	IndexDir string `toml:"index_dir"`
	// LedgerDir is the badger directory of the run ledger. Empty disables it.
	LedgerDir string `toml:"ledger_dir"`
}

// SourceConfig controls catalog downloads.
type SourceConfig struct {
	MaxRecords      int                `toml:"max_records"`
	DownloadDir     string             `toml:"download_dir"`
	DownloadTimeout time.Duration      `toml:"download_timeout"`
	EnableS3        bool               `toml:"enable_s3"`
	S3              source.S3Config    `toml:"s3"`
	Minio           source.MinioConfig `toml:"minio"`
}

// PipelineConfig tunes the ingestion run.
type PipelineConfig struct {
	BatchSize        int           `toml:"batch_size"`
	RateLimit        float64       `toml:"rate_limit"`
	RateBurst        int           `toml:"rate_burst"`
	PoolSize         int           `toml:"pool_size"`
	ConnectTimeout   time.Duration `toml:"connect_timeout"`
	EmbedCallTimeout time.Duration `toml:"embed_call_timeout"`
	WriteTimeout     time.Duration `toml:"write_timeout"`
}

// NormalizeConfig tunes row normalization.
type NormalizeConfig struct {
	MinTitleLength int `toml:"min_title_length"`
	ReportInterval int `toml:"report_interval"`
	// Columns overrides the fallback column chain of a field, keyed by field
	// name (id, title, description, brand, categories, price, image_url,
	// rating, review_count).
	Columns map[string][]string `toml:"columns"`
}

// SearchConfig sets search defaults.
type SearchConfig struct {
	Limit         int     `toml:"limit"`
	MinSimilarity float32 `toml:"min_similarity"`
	LogQueries    bool    `toml:"log_queries"`
}

// ReembedConfig tunes re-embedding.
type ReembedConfig struct {
	PageSize       int           `toml:"page_size"`
	ReportInterval int           `toml:"report_interval"`
	MaxRetries     int           `toml:"max_retries"`
	RetryDelay     time.Duration `toml:"retry_delay"`
}

// LogConfig configures logging. An empty File logs to stderr only.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Store: StoreConfig{
			Path:     "catalog.db",
			PageSize: sqlite.DefaultPageSize,
		},
		Source: SourceConfig{
			MaxRecords:      source.DefaultMaxRecords,
			DownloadTimeout: ingestion.DefaultDownloadTimeout,
		},
		AI: *ai.DefaultConfig(),
		Pipeline: PipelineConfig{
			BatchSize:        embedding.DefaultBatchSize,
			ConnectTimeout:   ingestion.DefaultConnectTimeout,
			EmbedCallTimeout: ingestion.DefaultEmbedCallTimeout,
			WriteTimeout:     ingestion.DefaultWriteTimeout,
		},
		Normalize: NormalizeConfig{
			MinTitleLength: normalize.DefaultMinTitleLength,
			ReportInterval: normalize.DefaultReportInterval,
		},
		Search: SearchConfig{
			Limit:         search.DefaultLimit,
			MinSimilarity: search.DefaultMinSimilarity,
			LogQueries:    true,
		},
		Reembed: ReembedConfig{
			PageSize:       reembed.DefaultPageSize,
			ReportInterval: 1000,
			MaxRetries:     3,
			RetryDelay:     time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads a TOML file over the defaults. Keys the file omits keep their
// default value; keys no section defines are an error.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w in %s: %s", ErrUnknownKeys, path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Parse decodes TOML text over the defaults.
func Parse(data string) (*Config, error) {
	cfg := Defaults()
	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKeys, undecoded)
	}
	return cfg, nil
}

// Validate checks ranges and cross-section consistency.
func (c *Config) Validate() error {
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Store.Path != "", "store.path is required"},
		{c.Store.PageSize > 0, "store.page_size must be positive"},
		{c.Store.PageSize <= sqlite.MaxPageSize, fmt.Sprintf("store.page_size cannot exceed %d", sqlite.MaxPageSize)},
		{c.Source.MaxRecords >= 0, "source.max_records cannot be negative"},
		{c.Source.DownloadTimeout >= 0, "source.download_timeout cannot be negative"},
		{c.Pipeline.BatchSize > 0, "pipeline.batch_size must be positive"},
		{c.Pipeline.RateLimit >= 0, "pipeline.rate_limit cannot be negative"},
		{c.Pipeline.RateBurst >= 0, "pipeline.rate_burst cannot be negative"},
		{c.Pipeline.PoolSize >= 0, "pipeline.pool_size cannot be negative"},
		{c.Pipeline.ConnectTimeout >= 0, "pipeline.connect_timeout cannot be negative"},
		{c.Pipeline.EmbedCallTimeout >= 0, "pipeline.embed_call_timeout cannot be negative"},
		{c.Pipeline.WriteTimeout >= 0, "pipeline.write_timeout cannot be negative"},
		{c.Normalize.MinTitleLength >= 0, "normalize.min_title_length cannot be negative"},
		{c.Search.Limit > 0, "search.limit must be positive"},
		{c.Search.MinSimilarity >= -1 && c.Search.MinSimilarity <= 1, "search.min_similarity must be within [-1, 1]"},
		{c.Reembed.PageSize > 0, "reembed.page_size must be positive"},
		{c.Reembed.MaxRetries > 0, "reembed.max_retries must be positive"},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("%w: %s", ErrInvalid, check.msg)
		}
	}

	if len(c.Normalize.Columns) > 0 {
		if _, err := normalize.SchemaFromColumns(c.Normalize.Columns); err != nil {
			return fmt.Errorf("%w: normalize.columns: %w", ErrInvalid, err)
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log.level %q must be one of debug, info, warn, error", ErrInvalid, c.Log.Level)
	}
	return nil
}

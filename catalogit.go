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


package catalogit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/ai/mock"
	"github.com/poiesic/catalogit/ai/openai"
	"github.com/poiesic/catalogit/ai/remote"
	"github.com/poiesic/catalogit/config"
	"github.com/poiesic/catalogit/embedding"
	"github.com/poiesic/catalogit/ingestion"
	"github.com/poiesic/catalogit/normalize"
	"github.com/poiesic/catalogit/reembed"
	"github.com/poiesic/catalogit/search"
	"github.com/poiesic/catalogit/source"
	"github.com/poiesic/catalogit/storage"
	"github.com/poiesic/catalogit/storage/badger"
	"github.com/poiesic/catalogit/storage/sqlite"
)

// ErrConfigRequired is returned by Open when no configuration is given.
var ErrConfigRequired = errors.New("configuration is required")

// Catalog wires the catalog store, run ledger, embedding provider and
// source together from one configuration.
type Catalog struct {
	cfg      *config.Config
	store    storage.CatalogRepository
	runs     storage.RunRepository
	provider ai.AIProvider
	source   *source.Source
	logger   *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithProvider uses provider instead of building one from the AI section.
// The Catalog takes ownership and closes it.
func WithProvider(provider ai.AIProvider) Option {
	return func(c *Catalog) {
		c.provider = provider
	}
}

// Open validates cfg and opens every configured component. The store schema
// is not provisioned here; ingestion runs do that.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Catalog, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Catalog{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	if c.provider == nil {
		provider, err := newProvider(&cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
		c.provider = provider
	}

	store, err := sqlite.NewStore(cfg.Store.Path, cfg.AI.Dimension,
		sqlite.WithPageSize(cfg.Store.PageSize),
		sqlite.WithIndexDir(cfg.Store.IndexDir),
		sqlite.WithLogger(c.logger),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opening catalog store: %w", err)
	}
	c.store = store

	if cfg.Store.LedgerDir != "" {
		runs, err := badger.NewRunRepository(cfg.Store.LedgerDir, badger.WithBackendLogger(c.logger))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.runs = runs
	}

	src, err := c.newSource(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("configuring source: %w", err)
	}
	c.source = src

	return c, nil
}

func newProvider(cfg *ai.Config) (ai.AIProvider, error) {
	switch cfg.Provider {
	case ai.ProviderOpenAI:
		return openai.NewProvider(cfg)
	case ai.ProviderMock:
		return mock.NewProvider(cfg)
	default:
		return remote.NewProvider(cfg)
	}
}

func (c *Catalog) newSource(ctx context.Context) (*source.Source, error) {
	sc := c.cfg.Source
	opts := []source.Option{
		source.WithMaxRecords(sc.MaxRecords),
		source.WithLogger(c.logger),
	}
	if sc.DownloadDir != "" {
		opts = append(opts, source.WithDownloadDir(sc.DownloadDir))
	}
	if sc.EnableS3 {
		client, err := source.NewS3Client(ctx, sc.S3)
		if err != nil {
			return nil, err
		}
		opts = append(opts, source.WithS3Client(client))
	}
	if sc.Minio.Endpoint != "" {
		getter, err := source.NewMinioGetter(sc.Minio)
		if err != nil {
			return nil, err
		}
		opts = append(opts, source.WithObjectGetter(getter))
	}
	return source.New(opts...)
}

// Close releases the provider, ledger and store, in that order, and
// returns the first error.
func (c *Catalog) Close() error {
	var first error
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			c.logger.Error("error closing embedding provider", "err", err)
			first = err
		}
	}
	if c.runs != nil {
		if err := c.runs.Close(); err != nil {
			c.logger.Error("error closing run ledger", "err", err)
			if first == nil {
				first = err
			}
		}
	}
	if c.store != nil {
		if err := c.store.Close(); err != nil {
			c.logger.Error("error closing catalog store", "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (c *Catalog) Config() *config.Config {
	return c.cfg
}

func (c *Catalog) Store() storage.CatalogRepository {
	return c.store
}

// Runs returns the run ledger, or nil when none is configured.
func (c *Catalog) Runs() storage.RunRepository {
	return c.runs
}

func (c *Catalog) Embedder() ai.Embedder {
	return c.provider.Embedder()
}

func (c *Catalog) batcherOptions() []embedding.Option {
	pc := c.cfg.Pipeline
	return []embedding.Option{
		embedding.WithBatchSize(pc.BatchSize),
		embedding.WithRateLimit(pc.RateLimit, pc.RateBurst),
		embedding.WithCallTimeout(pc.EmbedCallTimeout),
		embedding.WithNormalizeVectors(c.cfg.AI.NormalizeVectors),
		embedding.WithLogger(c.logger),
	}
}

// NewPipeline creates an ingestion pipeline from the configuration. Options
// given here are applied after the configured ones.
func (c *Catalog) NewPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	nc := c.cfg.Normalize
	schema, err := normalize.SchemaFromColumns(nc.Columns)
	if err != nil {
		return nil, err
	}
	normOpts := []normalize.Option{
		normalize.WithSchema(schema),
		normalize.WithMinTitleLength(nc.MinTitleLength),
		normalize.WithReportInterval(nc.ReportInterval),
	}
	if c.cfg.Pipeline.PoolSize > 0 {
		normOpts = append(normOpts, normalize.WithPoolSize(c.cfg.Pipeline.PoolSize))
	}

	pc := c.cfg.Pipeline
	base := []ingestion.Option{
		ingestion.WithLogger(c.logger),
		ingestion.WithNormalizerOptions(normOpts...),
		ingestion.WithBatcherOptions(c.batcherOptions()...),
		ingestion.WithTimeouts(pc.ConnectTimeout, c.cfg.Source.DownloadTimeout, pc.EmbedCallTimeout, pc.WriteTimeout),
	}
	if c.runs != nil {
		base = append(base, ingestion.WithRunRepository(c.runs))
	}
	return ingestion.NewPipeline(c.store, c.source, c.Embedder(), append(base, opts...)...)
}

// Ingest runs a single ingestion of the catalog file at location with a
// pipeline built from the configuration.
func (c *Catalog) Ingest(ctx context.Context, location string, opts ...ingestion.Option) (*ingestion.Report, error) {
	pipeline, err := c.NewPipeline(opts...)
	if err != nil {
		return nil, err
	}
	defer pipeline.Release()
	return pipeline.Run(ctx, location)
}

// NewSearcher creates a searcher with the configured defaults.
func (c *Catalog) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	sc := c.cfg.Search
	base := []search.Option{
		search.WithLogger(c.logger),
		search.WithDefaultLimit(sc.Limit),
		search.WithMinSimilarity(sc.MinSimilarity),
		search.WithQueryLogging(sc.LogQueries),
	}
	return search.NewSearcher(c.store, c.Embedder(), append(base, opts...)...)
}

// NewReembedder creates a reembedder that writes progress to progress.
func (c *Catalog) NewReembedder(progress io.Writer) (*reembed.Reembedder, error) {
	batcher, err := embedding.NewBatcher(c.Embedder(), c.batcherOptions()...)
	if err != nil {
		return nil, err
	}
	rc := c.cfg.Reembed
	return reembed.NewReembedder(c.store, batcher, &reembed.Config{
		PageSize:       rc.PageSize,
		ReportInterval: rc.ReportInterval,
		MaxRetries:     rc.MaxRetries,
		RetryDelay:     rc.RetryDelay,
	}, progress)
}

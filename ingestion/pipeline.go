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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/embedding"
	"github.com/poiesic/catalogit/normalize"
	"github.com/poiesic/catalogit/source"
	"github.com/poiesic/catalogit/storage"
)

// Default per-call timeouts.
const (
	DefaultConnectTimeout   = 30 * time.Second
	DefaultDownloadTimeout  = 10 * time.Minute
	DefaultEmbedCallTimeout = 2 * time.Minute
	DefaultWriteTimeout     = 5 * time.Minute
)

// Store is the part of the catalog store a run needs.
type Store interface {
	storage.SchemaManager
	storage.CatalogWriter
}

// Source makes a catalog file available and reads its rows.
type Source interface {
	Download(ctx context.Context, location string) (*source.Download, error)
	ReadRows(ctx context.Context, d *source.Download) (*source.ReadResult, error)
}

var _ Source = (*source.Source)(nil)

// Report summarizes a run. It is returned for failed runs too, filled in up
// to the stage that failed.
type Report struct {
	RunID     string
	Source    string
	Digest    string
	StartedAt time.Time
	Duration  time.Duration
	// Stage is the last stage the run reached.
	Stage Stage

	RowsRead  int
	Truncated bool
	Accepted  int
	Dropped   int
	Reasons   map[normalize.DropReason]int

	// Processed is the number of records persisted.
	Processed int
}

// Pipeline runs Download → Normalize → Filter → Embed → Persist for one
// catalog file at a time.
type Pipeline struct {
	store      Store
	source     Source
	embedder   ai.Embedder
	runs       storage.RunRepository
	normalizer *normalize.Normalizer
	batcher    *embedding.Batcher
	monitor    RunMonitor

	normalizerOpts  []normalize.Option
	batcherOpts     []embedding.Option
	connectTimeout  time.Duration
	downloadTimeout time.Duration
	embedTimeout    time.Duration
	writeTimeout    time.Duration
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithNormalizerOptions passes options through to the record normalizer.
func WithNormalizerOptions(opts ...normalize.Option) Option {
	return func(p *Pipeline) error {
		p.normalizerOpts = append(p.normalizerOpts, opts...)
		return nil
	}
}

// WithBatcherOptions passes options through to the embedding batcher.
func WithBatcherOptions(opts ...embedding.Option) Option {
	return func(p *Pipeline) error {
		p.batcherOpts = append(p.batcherOpts, opts...)
		return nil
	}
}

// WithRunRepository records every run in a ledger. Ledger failures are
// logged and never fail a run.
func WithRunRepository(runs storage.RunRepository) Option {
	return func(p *Pipeline) error {
		p.runs = runs
		return nil
	}
}

// WithMonitor sets a run observer.
func WithMonitor(monitor RunMonitor) Option {
	return func(p *Pipeline) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		p.monitor = monitor
		return nil
	}
}

// WithTimeouts sets the per-call timeouts. Zero keeps the default for that call.
func WithTimeouts(connect, download, embedCall, write time.Duration) Option {
	return func(p *Pipeline) error {
		for _, d := range []time.Duration{connect, download, embedCall, write} {
			if d < 0 {
				return fmt.Errorf("timeouts cannot be negative: %s", d)
			}
		}
		if connect > 0 {
			p.connectTimeout = connect
		}
		if download > 0 {
			p.downloadTimeout = download
		}
		if embedCall > 0 {
			p.embedTimeout = embedCall
		}
		if write > 0 {
			p.writeTimeout = write
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(store Store, src Source, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if src == nil {
		return nil, ErrSourceRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		store:           store,
		source:          src,
		embedder:        embedder,
		monitor:         &noopMonitor{},
		connectTimeout:  DefaultConnectTimeout,
		downloadTimeout: DefaultDownloadTimeout,
		embedTimeout:    DefaultEmbedCallTimeout,
		writeTimeout:    DefaultWriteTimeout,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	base := p.logger
	p.logger = base.With("component", "ingestion")

	// Components are built after options so they get the final config.
	normalizer, err := normalize.NewNormalizer(append([]normalize.Option{
		normalize.WithLogger(base),
	}, append(p.normalizerOpts, normalize.WithProgress(func(done, total int) {
		p.monitor.Progress(StageNormalized, done, total)
	}))...)...)
	if err != nil {
		return nil, fmt.Errorf("creating normalizer: %w", err)
	}

	batcher, err := embedding.NewBatcher(embedder, append([]embedding.Option{
		embedding.WithLogger(base),
		embedding.WithCallTimeout(p.embedTimeout),
	}, append(p.batcherOpts, embedding.WithProgress(func(done, total int) {
		p.monitor.Progress(StageEmbedded, done, total)
	}))...)...)
	if err != nil {
		normalizer.Release()
		return nil, fmt.Errorf("creating batcher: %w", err)
	}

	p.normalizer = normalizer
	p.batcher = batcher
	return p, nil
}

// Release releases the normalizer's worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.normalizer != nil {
		p.normalizer.Release()
	}
}

// Run ingests the catalog file at location. It either persists every
// accepted record or returns a *StageError wrapping exactly one of
// ErrConnectivity, ErrSourceUnavailable, ErrEmptyResult, ErrVectorization or
// ErrPersistence. All records go through a single UpsertBatch call, so a
// failed run commits nothing.
func (p *Pipeline) Run(ctx context.Context, location string) (report *Report, err error) {
	report = &Report{
		RunID:     uuid.NewString(),
		Source:    location,
		StartedAt: time.Now().UTC(),
		Reasons:   make(map[normalize.DropReason]int),
	}
	run := &core.Run{
		ID:        report.RunID,
		Source:    location,
		Model:     p.embedder.ModelName(),
		Dimension: p.embedder.Dimension(),
		StartedAt: report.StartedAt,
		Stage:     StageIdle.String(),
		Status:    core.RunStatusRunning,
	}
	logger := p.logger.With("run_id", report.RunID)

	p.saveRun(ctx, logger, run)
	p.monitor.Start(report.RunID, location)
	logger.Info("starting ingestion run", "source", location)

	defer func() {
		report.Duration = time.Since(report.StartedAt)

		run.FinishedAt = time.Now().UTC()
		run.Stage = report.Stage.String()
		run.SourceDigest = report.Digest
		run.RowsRead = report.RowsRead
		run.Accepted = report.Accepted
		run.Dropped = report.Dropped
		run.Persisted = report.Processed
		if err != nil {
			run.Status = core.RunStatusFailed
			run.Error = err.Error()
			logger.Error("ingestion run failed", "stage", report.Stage, "err", err)
		} else {
			run.Status = core.RunStatusSucceeded
			logger.Info("ingestion run complete",
				"processed", report.Processed,
				"dropped", report.Dropped,
				"elapsed", report.Duration)
		}
		p.saveRun(context.WithoutCancel(ctx), logger, run)
		p.monitor.Finish(report, err)
	}()

	err = p.run(ctx, logger, report)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, report *Report) error {
	p.enter(report, StageConnectivityCheck)
	if err := p.checkConnectivity(ctx); err != nil {
		return err
	}

	p.enter(report, StageSchemaReady)
	sctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	err := p.store.EnsureSchema(sctx)
	cancel()
	if err != nil {
		return stageError(StageSchemaReady, ErrPersistence, err)
	}

	p.enter(report, StageDownloaded)
	dctx, cancel := context.WithTimeout(ctx, p.downloadTimeout)
	download, err := p.source.Download(dctx, report.Source)
	cancel()
	if err != nil {
		return stageError(StageDownloaded, ErrSourceUnavailable, err)
	}
	defer func() {
		if err := download.Remove(); err != nil {
			logger.Warn("failed to remove downloaded file", "path", download.Path, "err", err)
		}
	}()
	report.Digest = download.Digest
	logger.Info("source downloaded", "path", download.Path, "bytes", download.Size, "digest", download.Digest)

	p.enter(report, StageNormalized)
	read, err := p.source.ReadRows(ctx, download)
	if err != nil {
		return stageError(StageNormalized, ErrSourceUnavailable, err)
	}
	report.RowsRead = len(read.Rows) + read.Malformed
	report.Truncated = read.Truncated

	result, err := p.normalizer.NormalizeAll(ctx, read.Rows)
	if err != nil {
		return stageError(StageNormalized, ErrSourceUnavailable, err)
	}
	result.AddDropped(normalize.ReasonMalformed, read.Malformed)
	report.Accepted = result.Accepted
	report.Dropped = result.Dropped
	for reason, n := range result.Reasons {
		report.Reasons[reason] = n
	}

	p.enter(report, StageFiltered)
	if result.Accepted == 0 {
		return stageError(StageFiltered, ErrEmptyResult,
			fmt.Errorf("%d rows read, %d dropped", report.RowsRead, report.Dropped))
	}

	p.enter(report, StageEmbedded)
	embedded, err := p.batcher.Embed(ctx, result.Records)
	if err != nil {
		return stageError(StageEmbedded, ErrVectorization, err)
	}

	p.enter(report, StagePersisted)
	wctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	written, err := p.store.UpsertBatch(wctx, embedded...)
	cancel()
	if err != nil {
		return stageError(StagePersisted, ErrPersistence, err)
	}
	report.Processed = written

	p.enter(report, StageDone)
	return nil
}

func (p *Pipeline) checkConnectivity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()

	if err := p.store.TestConnectivity(ctx); err != nil {
		return stageError(StageConnectivityCheck, ErrConnectivity, err)
	}

	checker, ok := p.embedder.(ai.HealthChecker)
	if !ok {
		return nil
	}
	health, err := checker.Health(ctx)
	if err != nil {
		return stageError(StageConnectivityCheck, ErrVectorization, err)
	}
	if !health.Ready() {
		return stageError(StageConnectivityCheck, ErrVectorization,
			fmt.Errorf("%w: status %q", ai.ErrModelNotReady, health.Status))
	}
	return nil
}

func (p *Pipeline) enter(report *Report, stage Stage) {
	report.Stage = stage
	p.logger.Debug("entering stage", "run_id", report.RunID, "stage", stage)
	p.monitor.Transition(stage)
}

func (p *Pipeline) saveRun(ctx context.Context, logger *slog.Logger, run *core.Run) {
	if p.runs == nil {
		return
	}
	if err := p.runs.SaveRun(ctx, run); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("failed to record run in ledger", "err", err)
	}
}

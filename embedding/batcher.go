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


package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/core"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DefaultBatchSize is the number of records sent per vectorization call.
const DefaultBatchSize = 32

// ProgressFunc receives the number of records embedded so far and the total.
type ProgressFunc func(done, total int)

// Batcher turns catalog records into embedded records, one batch at a time.
type Batcher struct {
	embedder    ai.Embedder
	batchSize   int
	limiter     *rate.Limiter
	callTimeout time.Duration
	normalize   bool
	progress    ProgressFunc
	logger      *slog.Logger
}

// Option configures a Batcher.
type Option func(*Batcher) error

// WithBatchSize sets the number of records per batch.
func WithBatchSize(size int) Option {
	return func(b *Batcher) error {
		if size <= 0 {
			return ErrInvalidBatchSize
		}
		b.batchSize = size
		return nil
	}
}

// WithRateLimit paces vectorization calls to perSecond with the given burst.
// A zero rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(b *Batcher) error {
		if perSecond < 0 {
			return ErrInvalidRateLimit
		}
		if perSecond == 0 {
			b.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		return nil
	}
}

// WithCallTimeout bounds every vectorization call. Zero means no timeout.
func WithCallTimeout(timeout time.Duration) Option {
	return func(b *Batcher) error {
		b.callTimeout = timeout
		return nil
	}
}

// WithNormalizeVectors scales every returned vector to unit length.
func WithNormalizeVectors(normalize bool) Option {
	return func(b *Batcher) error {
		b.normalize = normalize
		return nil
	}
}

// WithProgress registers a callback invoked after each batch.
func WithProgress(fn ProgressFunc) Option {
	return func(b *Batcher) error {
		b.progress = fn
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Batcher) error {
		if logger != nil {
			b.logger = logger.With("component", "embedding-batcher")
		}
		return nil
	}
}

// NewBatcher creates a batcher around embedder.
func NewBatcher(embedder ai.Embedder, opts ...Option) (*Batcher, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	b := &Batcher{
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		logger:    slog.Default().With("component", "embedding-batcher"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// BatchSize returns the configured batch size.
func (b *Batcher) BatchSize() int {
	return b.batchSize
}

// Dimension returns the vector length of the underlying embedder.
func (b *Batcher) Dimension() int {
	return b.embedder.Dimension()
}

// ModelName returns the model of the underlying embedder.
func (b *Batcher) ModelName() string {
	return b.embedder.ModelName()
}

// Embed embeds records in contiguous batches, strictly in input order. The
// output is index-aligned with records. The first failed call aborts the
// whole operation and no partial output is returned.
func (b *Batcher) Embed(ctx context.Context, records []*core.CatalogRecord) ([]*core.EmbeddedRecord, error) {
	out := make([]*core.EmbeddedRecord, 0, len(records))
	total := len(records)
	batches := (total + b.batchSize - 1) / b.batchSize

	for start, n := 0, 0; start < total; start, n = start+b.batchSize, n+1 {
		end := min(start+b.batchSize, total)

		embedded, err := b.EmbedBatch(ctx, records[start:end])
		if err != nil {
			b.logger.Error("batch failed", "batch", n+1, "batches", batches, "err", err)
			return nil, fmt.Errorf("batch %d/%d: %w", n+1, batches, err)
		}
		out = append(out, embedded...)

		b.logger.Debug("batch embedded", "batch", n+1, "batches", batches, "records", len(embedded))
		if b.progress != nil {
			b.progress(len(out), total)
		}
	}

	return out, nil
}

// EmbedBatch embeds one batch with exactly three vectorization calls, one per
// projection. The calls run concurrently and all of them must succeed.
func (b *Batcher) EmbedBatch(ctx context.Context, batch []*core.CatalogRecord) ([]*core.EmbeddedRecord, error) {
	if len(batch) == 0 {
		return []*core.EmbeddedRecord{}, nil
	}

	projections := BuildProjections(batch)
	vectors := make([][][]float32, len(core.VectorColumns))

	g, gctx := errgroup.WithContext(ctx)
	for i, col := range core.VectorColumns {
		g.Go(func() error {
			v, err := b.call(gctx, col, projections.Texts(col))
			if err != nil {
				return err
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*core.EmbeddedRecord, len(batch))
	for i, r := range batch {
		out[i] = &core.EmbeddedRecord{
			CatalogRecord:     *r,
			TitleVector:       vectors[0][i],
			DescriptionVector: vectors[1][i],
			CombinedVector:    vectors[2][i],
		}
	}
	return out, nil
}

func (b *Batcher) call(ctx context.Context, col core.VectorColumn, texts []string) ([][]float32, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %s projection: %w", ErrEmbedCall, col, err)
		}
	}

	if b.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.callTimeout)
		defer cancel()
	}

	vectors, err := b.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s projection: %w", ErrEmbedCall, col, err)
	}

	dim := b.embedder.Dimension()
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: %s projection returned %d vectors for %d texts",
			ai.ErrDimensionMismatch, col, len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: %s projection vector %d has length %d, expected %d",
				ai.ErrDimensionMismatch, col, i, len(v), dim)
		}
		if b.normalize {
			vectors[i] = NormalizeVector(v)
		}
	}
	return vectors, nil
}

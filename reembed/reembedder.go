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


package reembed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/embedding"
	"github.com/poiesic/catalogit/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// PageSize is the number of records read, re-embedded and written together
	PageSize int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for a page's embed and write
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PageSize:       DefaultPageSize,
		ReportInterval: 1000,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Store is the part of the catalog store reembedding needs.
type Store interface {
	Pager
	storage.CatalogWriter
	CountRecords(ctx context.Context) (int, error)
}

// Reembedder recomputes the vectors of every stored record, typically after
// switching embedding models. Each page is committed on its own, so an
// interrupted run can simply be started again.
type Reembedder struct {
	store     Store
	batcher   *embedding.Batcher
	config    *Config
	progress  io.Writer
	processor *PageProcessor
	iterator  *RecordIterator
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store Store, batcher *embedding.Batcher, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if batcher == nil {
		return nil, ErrBatcherRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		store:     store,
		batcher:   batcher,
		config:    config,
		progress:  progress,
		processor: NewPageProcessor(store, batcher, config.MaxRetries, config.RetryDelay),
		iterator:  NewRecordIterator(store, config.PageSize),
	}, nil
}

// Run re-embeds all records and returns how many were rewritten.
// Progress is reported to the configured writer.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	totalRecords, err := r.store.CountRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}

	if totalRecords == 0 {
		fmt.Fprintf(r.progress, "No records found in catalog (0 records)\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Reembedding %d records with %s (page size: %d, batch size: %d)\n",
		totalRecords, r.batcher.ModelName(), r.iterator.pageSize, r.batcher.BatchSize())

	tracker := NewProgressTracker(r.progress, totalRecords, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(records []*core.EmbeddedRecord) error {
		if err := r.processor.Process(ctx, records); err != nil {
			return fmt.Errorf("page after %d records: %w", processed, err)
		}

		processed += len(records)
		tracker.Update(processed)
		return nil
	})
	if err != nil {
		return processed, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d records in %v (%.1f records/sec)\n",
		processed, elapsed.Round(time.Second), float64(processed)/elapsed.Seconds())

	return processed, nil
}

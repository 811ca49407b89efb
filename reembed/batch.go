package reembed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/embedding"
	"github.com/poiesic/catalogit/retry"
	"github.com/poiesic/catalogit/storage"
)

// PageProcessor recomputes the three projection vectors of a page of stored
// records and writes them back.
type PageProcessor struct {
	writer         storage.CatalogWriter
	batcher        *embedding.Batcher
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewPageProcessor creates a new page processor.
// maxRetries: maximum number of attempts for the embed and the write
// retryBaseDelay: base delay for exponential backoff
func NewPageProcessor(writer storage.CatalogWriter, batcher *embedding.Batcher, maxRetries int, retryBaseDelay time.Duration) *PageProcessor {
	return &PageProcessor{
		writer:         writer,
		batcher:        batcher,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process re-embeds records and upserts the page as one transaction.
func (pp *PageProcessor) Process(ctx context.Context, records []*core.EmbeddedRecord) error {
	if len(records) == 0 {
		return nil
	}

	catalog := make([]*core.CatalogRecord, len(records))
	for i, r := range records {
		catalog[i] = &r.CatalogRecord
	}

	var embedded []*core.EmbeddedRecord
	err := retry.WithBackoff(ctx, func() error {
		var err error
		embedded, err = pp.batcher.Embed(ctx, catalog)
		if errors.Is(err, ai.ErrDimensionMismatch) {
			return retry.Permanent(err)
		}
		return err
	}, pp.maxRetries, pp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	err = retry.WithBackoff(ctx, func() error {
		_, err := pp.writer.UpsertBatch(ctx, embedded...)
		if errors.Is(err, core.ErrInvalidEmbeddedRecord) || errors.Is(err, storage.ErrStorageClosed) {
			return retry.Permanent(err)
		}
		return err
	}, pp.maxRetries, pp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to update records: %w", err)
	}

	return nil
}

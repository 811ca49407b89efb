// Package embedding vectorizes catalog records in bounded batches.
//
// Every record has three text projections: its title, its description
// (falling back to the title) and a combined title/description/brand text.
// A Batcher partitions records into contiguous batches and issues exactly
// one EmbedTexts call per projection per batch, so a batch of 32 records
// costs three calls instead of ninety-six.
//
//	batcher, err := embedding.NewBatcher(embedder, embedding.WithBatchSize(64))
//	embedded, err := batcher.Embed(ctx, records)
package embedding

// Package reembed rewrites the stored vectors of every catalog record with
// the currently configured embedding model.
//
// Records are read in ID order with keyset pagination. Each page is
// re-embedded through the same batcher ingestion uses, so the three
// projections are built identically, and then upserted in one transaction.
// Both the embed and the write are retried with exponential backoff.
package reembed

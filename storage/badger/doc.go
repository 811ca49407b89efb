// Package badger stores the ingestion run ledger in BadgerDB.
//
// Runs are JSON documents keyed by run id. A secondary index keyed by the
// big-endian start time lets ListRuns walk the ledger newest first with a
// reverse prefix iterator.
package badger

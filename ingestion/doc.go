// Package ingestion runs the catalog ingestion state machine.
//
// A run moves strictly forward through
//
//	Idle → ConnectivityCheck → SchemaReady → Downloaded → Normalized →
//	Filtered → Embedded → Persisted → Done
//
// Bad rows are dropped and counted during normalization; every other failure
// aborts the run with a *StageError wrapping one of the taxonomy sentinels in
// errors.go. The pipeline never retries. Re-running a failed run is safe
// because the store upserts by record ID.
package ingestion

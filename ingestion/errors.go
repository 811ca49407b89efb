package ingestion

import (
	"errors"
	"fmt"
)

// Run-level failure taxonomy. Every failed run returns exactly one of these,
// wrapped in a *StageError.
var (
	// ErrConnectivity indicates the store failed its liveness check.
	ErrConnectivity = errors.New("store unreachable")

	// ErrSourceUnavailable indicates the catalog file could not be downloaded or read.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEmptyResult indicates normalization left no usable records.
	ErrEmptyResult = errors.New("no valid records after filtering")

	// ErrVectorization indicates a failed embedding call, a dimension
	// mismatch or an embedding model that is not ready.
	ErrVectorization = errors.New("vectorization failed")

	// ErrPersistence indicates a schema or write failure. No partial batch is committed.
	ErrPersistence = errors.New("persistence failed")
)

var (
	// ErrStoreRequired is returned when a catalog store is not provided.
	ErrStoreRequired = errors.New("catalog store required")

	// ErrSourceRequired is returned when a source is not provided.
	ErrSourceRequired = errors.New("source required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")
)

// StageError reports the stage a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, kind, cause error) *StageError {
	return &StageError{Stage: stage, Err: fmt.Errorf("%w: %w", kind, cause)}
}

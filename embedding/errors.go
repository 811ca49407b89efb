package embedding

import "errors"

var (
	// ErrEmbedderRequired is returned when NewBatcher is given a nil embedder.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrInvalidRateLimit is returned for a negative call rate.
	ErrInvalidRateLimit = errors.New("rate limit cannot be negative")

	// ErrEmbedCall wraps a failed vectorization call.
	ErrEmbedCall = errors.New("embedding call failed")
)

package ai

import "errors"

var (
	// ErrDimensionMismatch indicates vectors whose length differs from the declared dimension,
	// or a response with a different number of vectors than texts sent.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelNotReady indicates the embedding service is up but its model is not loaded.
	ErrModelNotReady = errors.New("embedding model not ready")

	// ErrUnknownProvider indicates an unsupported provider name in Config.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

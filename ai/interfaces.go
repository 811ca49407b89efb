package ai

import "context"

// Embedder generates vector embeddings from text.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in one call.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the length of every vector this embedder returns.
	Dimension() int

	// ModelName identifies the model producing the vectors.
	ModelName() string
}

// Health is the liveness report of an embedding service.
type Health struct {
	Status      string
	ModelLoaded bool
	ModelName   string
}

// Ready reports whether the service can serve embedding calls.
func (h *Health) Ready() bool {
	return h != nil && h.ModelLoaded
}

// HealthChecker is implemented by embedders that can tell "model not yet
// loaded" apart from "ready" before any embedding call is made.
type HealthChecker interface {
	Health(ctx context.Context) (*Health, error)
}

// AIProvider owns an Embedder and the resources behind it.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	Close() error
}

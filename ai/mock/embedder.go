package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync/atomic"

	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/core"
)

// MockEmbedder is a test double for ai.Embedder and ai.HealthChecker.
// It allows custom behavior injection via function fields.
type MockEmbedder struct {
	// EmbedTextFunc is called by EmbedText if set.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc is called by EmbedTexts if set.
	// If nil, uses default deterministic behavior.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// HealthFunc is called by Health if set.
	// If nil, the mock reports a loaded model.
	HealthFunc func(ctx context.Context) (*ai.Health, error)

	// Dim is the vector length. Zero means core.DefaultDimension.
	Dim int

	// Model is reported by ModelName. Empty means "mock-embedder".
	Model string

	callCount atomic.Int64
}

var (
	_ ai.Embedder      = (*MockEmbedder)(nil)
	_ ai.HealthChecker = (*MockEmbedder)(nil)
)

// NewMockEmbedder creates a mock embedder with default deterministic behavior.
// Note: Returns concrete type to allow test assertions via CallCount().
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}

	return DeterministicVector(text, m.Dimension()), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.callCount.Add(1)

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = DeterministicVector(text, m.Dimension())
	}
	return embeddings, nil
}

// Health reports a loaded model unless HealthFunc says otherwise.
func (m *MockEmbedder) Health(ctx context.Context) (*ai.Health, error) {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return &ai.Health{Status: "healthy", ModelLoaded: true, ModelName: m.ModelName()}, nil
}

// Dimension returns the configured vector length.
func (m *MockEmbedder) Dimension() int {
	if m.Dim <= 0 {
		return core.DefaultDimension
	}
	return m.Dim
}

// ModelName returns the configured model name.
func (m *MockEmbedder) ModelName() string {
	if m.Model == "" {
		return "mock-embedder"
	}
	return m.Model
}

// CallCount returns the number of times any embed method was called.
func (m *MockEmbedder) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and injected behavior.
func (m *MockEmbedder) Reset() {
	m.callCount.Store(0)
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
	m.HealthFunc = nil
}

// DeterministicVector creates a unit-length embedding vector from text.
// The same text always produces the same vector.
func DeterministicVector(text string, dim int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dim)
	for i := 0; i < dim; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 - 0.5
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1.0 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}

	return vector
}

package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/catalogit/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(host string, dim int) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(host),
		ai.WithDimension(dim),
		ai.WithRetries(3, time.Millisecond),
		ai.WithTimeout(5*time.Second),
	)
}

func vectorsFor(texts []string, dim int) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
		out[i][0] = float32(i + 1)
	}
	return out
}

func TestEmbedTexts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Normalize)

		_ = json.NewEncoder(w).Encode(embedResponse{
			Embeddings: vectorsFor(req.Texts, 4),
			ModelName:  "all-MiniLM-L6-v2",
			Dimension:  4,
		})
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL, 4))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, float32(3), vectors[2][0])

	single, err := embedder.EmbedText(context.Background(), "a")
	require.NoError(t, err)
	assert.Len(t, single, 4)

	assert.Equal(t, 4, embedder.Dimension())
	assert.Equal(t, "all-MiniLM-L6-v2", embedder.ModelName())
}

func TestEmbedTextsEmptyInput(t *testing.T) {
	embedder, err := NewEmbedder(testConfig("http://127.0.0.1:1", 4))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEmbedTextsRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
			return
		}
		var req embedRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: vectorsFor(req.Texts, 2), Dimension: 2})
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL, 2))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedTextsDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad payload", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	embedder, err := NewEmbedder(testConfig(server.URL, 2))
	require.NoError(t, err)

	_, err = embedder.EmbedTexts(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServiceStatus)
	assert.Contains(t, err.Error(), "422")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedTextsDimensionMismatch(t *testing.T) {
	tests := []struct {
		name       string
		embeddings [][]float32
	}{
		{"wrong length", [][]float32{{1, 2, 3}}},
		{"wrong count", [][]float32{{1, 2}, {3, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(embedResponse{Embeddings: tt.embeddings})
			}))
			defer server.Close()

			embedder, err := NewEmbedder(testConfig(server.URL, 2))
			require.NoError(t, err)

			_, err = embedder.EmbedTexts(context.Background(), []string{"x"})
			assert.ErrorIs(t, err, ai.ErrDimensionMismatch)
		})
	}
}

func TestHealth(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/health", r.URL.Path)
			_ = json.NewEncoder(w).Encode(healthResponse{Status: "healthy", ModelLoaded: true, ModelName: "m"})
		}))
		defer server.Close()

		embedder, err := newEmbedder(testConfig(server.URL, 2), nil)
		require.NoError(t, err)

		h, err := embedder.Health(context.Background())
		require.NoError(t, err)
		assert.True(t, h.Ready())
		assert.Equal(t, "m", h.ModelName)
	})

	t.Run("model loading", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		embedder, err := newEmbedder(testConfig(server.URL, 2), nil)
		require.NoError(t, err)

		h, err := embedder.Health(context.Background())
		require.NoError(t, err)
		assert.False(t, h.Ready())
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		embedder, err := newEmbedder(testConfig(url, 2), nil)
		require.NoError(t, err)

		_, err = embedder.Health(context.Background())
		assert.Error(t, err)
	})
}

func TestProviderClose(t *testing.T) {
	p, err := NewProvider(testConfig("http://localhost:8000", 2))
	require.NoError(t, err)
	assert.NotNil(t, p.Embedder())
	assert.NoError(t, p.Close())
}

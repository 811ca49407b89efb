// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/retry"
)

// maxErrorBody caps how much of an error response is kept for the message.
const maxErrorBody = 512

var (
	_ ai.Embedder      = (*Embedder)(nil)
	_ ai.HealthChecker = (*Embedder)(nil)
)

// Embedder talks to the catalog embedding service.
type Embedder struct {
	client     *http.Client
	baseURL    string
	model      string
	dimension  int
	normalize  bool
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

type embedRequest struct {
	Texts     []string `json:"texts"`
	Normalize bool     `json:"normalize"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	ModelName  string      `json:"model_name"`
	Dimension  int         `json:"dimension"`
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	ModelName   string `json:"model_name"`
}

func newEmbedder(config *ai.Config, client *http.Client) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return &Embedder{
		client:     client,
		baseURL:    config.EmbeddingHost,
		model:      config.EmbeddingModel,
		dimension:  config.Dimension,
		normalize:  config.NormalizeVectors,
		maxRetries: config.MaxRetries,
		retryDelay: config.RetryDelay,
		logger:     slog.Default().With("component", "remote-embedder"),
	}, nil
}

// NewEmbedder creates an embedder for the service at config.EmbeddingHost.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config, nil)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts sends all texts in one POST /embed call. Transport failures,
// 429 and 5xx responses are retried with backoff; other 4xx responses are not.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts, Normalize: e.normalize})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp embedResponse
	err = retry.WithBackoff(ctx, func() error {
		return e.post(ctx, body, &resp)
	}, e.maxRetries, e.retryDelay)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrDimensionMismatch, len(resp.Embeddings), len(texts))
	}
	for i, v := range resp.Embeddings {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("%w: vector %d has length %d, expected %d", ai.ErrDimensionMismatch, i, len(v), e.dimension)
		}
	}

	e.logger.Debug("generated embeddings", "count", len(texts), "model", resp.ModelName)
	return resp.Embeddings, nil
}

func (e *Embedder) post(ctx context.Context, body []byte, out *embedResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := readStatusError(resp)
		if retryable(resp.StatusCode) {
			return statusErr
		}
		return retry.Permanent(statusErr)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Health calls GET /health. A 503 means the service is up with no model
// loaded, which is reported as a not-ready Health rather than an error.
func (e *Embedder) Health(ctx context.Context) (*ai.Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return &ai.Health{Status: "unavailable", ModelLoaded: false, ModelName: e.model}, nil
	default:
		return nil, readStatusError(resp)
	}

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &ai.Health{Status: h.Status, ModelLoaded: h.ModelLoaded, ModelName: h.ModelName}, nil
}

// Dimension returns the configured vector length.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// ModelName returns the configured model name.
func (e *Embedder) ModelName() string {
	return e.model
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

func readStatusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%w: status %d (failed to read body: %w)", ErrServiceStatus, resp.StatusCode, err)
	}
	return fmt.Errorf("%w: status %d: %s", ErrServiceStatus, resp.StatusCode, bytes.TrimSpace(body))
}

package remote

import (
	"log/slog"
	"net/http"

	"github.com/poiesic/catalogit/ai"
)

// Provider implements ai.AIProvider for the catalog embedding service.
type Provider struct {
	embedder *Embedder
	logger   *slog.Logger
}

// NewProvider creates a provider for the service at config.EmbeddingHost.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	return NewProviderWithClient(config, nil)
}

// NewProviderWithClient is NewProvider with a caller-supplied HTTP client.
func NewProviderWithClient(config *ai.Config, client *http.Client) (ai.AIProvider, error) {
	embedder, err := newEmbedder(config, client)
	if err != nil {
		return nil, err
	}
	return &Provider{
		embedder: embedder,
		logger:   slog.Default().With("component", "remote-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Close releases idle connections held by the HTTP client.
func (p *Provider) Close() error {
	p.logger.Debug("closing remote provider")
	p.embedder.client.CloseIdleConnections()
	return nil
}

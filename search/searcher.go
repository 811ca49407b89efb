package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/poiesic/catalogit/ai"
	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
)

// Scoring weights for merged results.
const (
	bothBoost     = 1.5
	textOnlyScore = 0.5
	verbatimBoost = 0.3
)

// Store is the part of the catalog store searching needs.
type Store interface {
	FindSimilar(ctx context.Context, q storage.SimilarityQuery) ([]*core.SearchResult, error)
	SearchTitles(ctx context.Context, query string, limit int) ([]*core.SearchResult, error)
	storage.QueryLogger
}

// Searcher provides hybrid semantic and full-text search over the catalog.
type Searcher struct {
	store         Store
	embedder      ai.Embedder
	limit         int
	minSimilarity float32
	logQueries    bool
	logger        *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithDefaultLimit sets the result cap for queries that set none.
func WithDefaultLimit(limit int) Option {
	return func(s *Searcher) error {
		if limit <= 0 {
			return fmt.Errorf("%w: limit must be greater than 0", storage.ErrInvalidQuery)
		}
		s.limit = limit
		return nil
	}
}

// WithMinSimilarity sets the default cosine similarity threshold.
func WithMinSimilarity(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < -1 || threshold > 1 {
			return fmt.Errorf("%w: similarity threshold %v outside [-1, 1]", storage.ErrInvalidQuery, threshold)
		}
		s.minSimilarity = threshold
		return nil
	}
}

// WithQueryLogging toggles writing each query to the analytics log.
// Default is enabled.
func WithQueryLogging(enabled bool) Option {
	return func(s *Searcher) error {
		s.logQueries = enabled
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store Store, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:         store,
		embedder:      embedder,
		limit:         DefaultLimit,
		minSimilarity: DefaultMinSimilarity,
		logQueries:    true,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Search finds catalog records relevant to q.Text.
// Returns up to q.Limit results, ranked by relevance score.
func (s *Searcher) Search(ctx context.Context, q Query) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, q, nil)
}

// SearchWithMonitor searches like Search and reports each stage to monitor.
//
// Semantic hits score their cosine similarity. Records that also match the
// full-text title search are boosted by 1.5x; text-only hits score a flat
// 0.5. Records whose title, brand or categories contain every query word get
// a further +0.3.
func (s *Searcher) SearchWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	q.Text = strings.TrimSpace(q.Text)
	if q.Text == "" {
		return nil, ErrEmptyQuery
	}
	if q.Column == "" {
		q.Column = core.VectorCombined
	}
	if q.Limit <= 0 {
		q.Limit = s.limit
	}
	minSimilarity := s.minSimilarity
	if q.MinSimilarity > 0 {
		minSimilarity = q.MinSimilarity
	}

	start := time.Now()
	monitor.Start(q)

	// 1. Semantic search
	vector, err := s.embedder.EmbedText(ctx, q.Text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", q.Text, "err", err)
		return nil, err
	}

	matches, err := s.store.FindSimilar(ctx, q.similarityQuery(vector, minSimilarity, q.Limit))
	if err != nil {
		s.logger.Error("error querying for similar records", "column", q.Column, "err", err)
		return nil, err
	}

	semanticScores := make(map[string]float32, len(matches))
	records := make(map[string]*core.CatalogRecord, len(matches))
	semanticIDs := make([]string, 0, len(matches))
	for _, match := range matches {
		semanticScores[match.Record.ID] = match.Score
		records[match.Record.ID] = match.Record
		semanticIDs = append(semanticIDs, match.Record.ID)
	}
	monitor.AfterSemanticSearch(semanticIDs)

	// 2. Full-text title search, filtered like the semantic side
	textSet := make(map[string]bool)
	if !q.SemanticOnly {
		hits, err := s.store.SearchTitles(ctx, q.Text, q.Limit)
		if err != nil {
			s.logger.Error("error running title search", "query", q.Text, "err", err)
			return nil, err
		}
		textIDs := make([]string, 0, len(hits))
		for _, hit := range hits {
			if !q.matches(hit.Record) {
				continue
			}
			textSet[hit.Record.ID] = true
			if _, ok := records[hit.Record.ID]; !ok {
				records[hit.Record.ID] = hit.Record
			}
			textIDs = append(textIDs, hit.Record.ID)
		}
		monitor.AfterTextSearch(textIDs)
	}

	// 3. Combine and score
	terms := queryTerms(q.Text)
	results := make([]*core.SearchResult, 0, len(records))
	for id, record := range records {
		similarity, inSemantic := semanticScores[id]
		inText := textSet[id]

		var score float32
		switch {
		case inSemantic && inText:
			score = bothBoost * similarity
			monitor.SemanticAndTextHit(record)
		case inText:
			score = textOnlyScore
			monitor.TextHit(record)
		default:
			score = similarity
			monitor.SemanticHit(record)
		}

		if matchesAllTerms(record, terms) {
			score += verbatimBoost
		}

		results = append(results, &core.SearchResult{Record: record, Score: score})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ID < results[j].Record.ID
	})
	if len(results) > q.Limit {
		results = results[:q.Limit]
	}

	latency := time.Since(start)
	s.logQuery(ctx, q.Text, len(results), latency)
	monitor.Finish(results, latency)

	return results, nil
}

// SearchTitles runs only the full-text title match, best match first.
func (s *Searcher) SearchTitles(ctx context.Context, text string, limit int) ([]*core.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = s.limit
	}

	start := time.Now()
	results, err := s.store.SearchTitles(ctx, text, limit)
	if err != nil {
		s.logger.Error("error running title search", "query", text, "err", err)
		return nil, err
	}
	s.logQuery(ctx, text, len(results), time.Since(start))
	return results, nil
}

// logQuery appends to the analytics log. Failures never fail the search.
func (s *Searcher) logQuery(ctx context.Context, text string, count int, latency time.Duration) {
	if !s.logQueries {
		return
	}
	err := s.store.LogQuery(ctx, &core.QueryLog{
		Query:       text,
		ResultCount: count,
		Latency:     latency,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to log query", "err", err)
	}
}

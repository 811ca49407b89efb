package search

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/catalogit/ai/mock"
	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
	"github.com/poiesic/catalogit/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 8

func axis(weights ...float32) []float32 {
	v := make([]float32, testDim)
	copy(v, weights)
	return v
}

// recordingStore captures query log entries.
type recordingStore struct {
	Store
	mu   sync.Mutex
	logs []*core.QueryLog
}

func (r *recordingStore) LogQuery(ctx context.Context, entry *core.QueryLog) error {
	r.mu.Lock()
	r.logs = append(r.logs, entry)
	r.mu.Unlock()
	return r.Store.LogQuery(ctx, entry)
}

func product(id, title, brand string, categories []string, price, rating *float64, vec []float32) *core.EmbeddedRecord {
	return &core.EmbeddedRecord{
		CatalogRecord: core.CatalogRecord{
			ID:         id,
			Title:      title,
			Brand:      brand,
			Categories: categories,
			Price:      price,
			Rating:     rating,
		},
		TitleVector:       vec,
		DescriptionVector: vec,
		CombinedVector:    vec,
	}
}

func setupSearcher(t *testing.T, opts ...Option) (*Searcher, *recordingStore) {
	t.Helper()
	ctx := context.Background()

	catalog, err := sqlite.NewStore(filepath.Join(t.TempDir(), "catalog.db"), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	require.NoError(t, catalog.EnsureSchema(ctx))

	_, err = catalog.UpsertBatch(ctx,
		product("M1", "Wireless Mouse", "Logi", []string{"Electronics", "Accessories"}, core.Float64(19.99), core.Float64(4.5), axis(1)),
		product("M2", "Gaming Mouse Pro", "Razer", []string{"Electronics", "Gaming"}, core.Float64(59), core.Float64(4.8), axis(0.6, 0.8)),
		product("K1", "Mechanical Keyboard", "KeyCo", []string{"Electronics", "Keyboards"}, core.Float64(89), nil, axis(0, 1)),
		product("C1", "Coffee Mug", "Acme", []string{"Kitchen"}, nil, nil, axis(0, 0, 1)),
	)
	require.NoError(t, err)

	embedder := &mock.MockEmbedder{Dim: testDim}
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		switch text {
		case "mouse", "keyboard":
			return axis(1), nil
		case "coffee":
			return axis(0, 0, 1), nil
		}
		return axis(0, 0, 0, 1), nil
	}

	store := &recordingStore{Store: catalog}
	searcher, err := NewSearcher(store, embedder, opts...)
	require.NoError(t, err)
	return searcher, store
}

func ids(results []*core.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Record.ID
	}
	return out
}

func TestNewSearcher(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	store := &recordingStore{}

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(store, embedder)
		require.NoError(t, err)
		assert.Equal(t, DefaultLimit, searcher.limit)
		assert.Equal(t, float32(DefaultMinSimilarity), searcher.minSimilarity)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(store, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher.logger)
	})

	t.Run("with custom settings", func(t *testing.T) {
		searcher, err := NewSearcher(store, embedder,
			WithLogger(slog.Default()), WithDefaultLimit(3), WithMinSimilarity(0.7), WithQueryLogging(false))
		require.NoError(t, err)
		assert.Equal(t, 3, searcher.limit)
		assert.Equal(t, float32(0.7), searcher.minSimilarity)
		assert.False(t, searcher.logQueries)
	})

	t.Run("invalid settings", func(t *testing.T) {
		_, err := NewSearcher(store, embedder, WithDefaultLimit(0))
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
		_, err = NewSearcher(store, embedder, WithMinSimilarity(1.5))
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(store, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestSearch_HybridScoring(t *testing.T) {
	searcher, _ := setupSearcher(t)

	results, err := searcher.Search(context.Background(), Query{Text: "mouse"})
	require.NoError(t, err)
	require.Equal(t, []string{"M1", "M2"}, ids(results))

	// Semantic and text hit, plus every query word in the title.
	assert.InDelta(t, 1.5*1.0+0.3, results[0].Score, 1e-5)
	assert.InDelta(t, 1.5*0.6+0.3, results[1].Score, 1e-5)
}

func TestSearch_TextOnlyHit(t *testing.T) {
	searcher, _ := setupSearcher(t)

	results, err := searcher.Search(context.Background(), Query{Text: "keyboard"})
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "K1", "M2"}, ids(results))
	assert.InDelta(t, 0.5+0.3, results[1].Score, 1e-5)

	results, err = searcher.Search(context.Background(), Query{Text: "keyboard", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "K1"}, ids(results))
}

func TestSearch_SemanticOnly(t *testing.T) {
	searcher, _ := setupSearcher(t)

	results, err := searcher.Search(context.Background(), Query{Text: "keyboard", SemanticOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2"}, ids(results))
}

func TestSearch_Filters(t *testing.T) {
	searcher, _ := setupSearcher(t)
	ctx := context.Background()

	results, err := searcher.Search(ctx, Query{Text: "mouse", Brand: "Razer"})
	require.NoError(t, err)
	assert.Equal(t, []string{"M2"}, ids(results))

	results, err = searcher.Search(ctx, Query{Text: "mouse", MinPrice: core.Float64(50)})
	require.NoError(t, err)
	assert.Equal(t, []string{"M2"}, ids(results))

	results, err = searcher.Search(ctx, Query{Text: "keyboard", MinRating: core.Float64(4.0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"M1", "M2"}, ids(results), "unrated records never pass a rating bound")

	results, err = searcher.Search(ctx, Query{Text: "keyboard", Category: "Keyboards"})
	require.NoError(t, err)
	assert.Equal(t, []string{"K1"}, ids(results))
}

func TestSearch_MinSimilarity(t *testing.T) {
	searcher, _ := setupSearcher(t)

	results, err := searcher.Search(context.Background(), Query{Text: "mouse", MinSimilarity: 0.9, SemanticOnly: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"M1"}, ids(results))
}

func TestSearch_NoMatches(t *testing.T) {
	searcher, _ := setupSearcher(t)

	results, err := searcher.Search(context.Background(), Query{Text: "telescope"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_InvalidInput(t *testing.T) {
	searcher, _ := setupSearcher(t)
	ctx := context.Background()

	_, err := searcher.Search(ctx, Query{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = searcher.Search(ctx, Query{Text: "mouse", Column: "bogus"})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestSearch_EmbedderFailure(t *testing.T) {
	searcher, _ := setupSearcher(t)
	boom := errors.New("embedding service down")
	searcher.embedder.(*mock.MockEmbedder).EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, boom
	}

	_, err := searcher.Search(context.Background(), Query{Text: "mouse"})
	assert.ErrorIs(t, err, boom)
}

func TestSearch_LogsQueries(t *testing.T) {
	searcher, store := setupSearcher(t)
	ctx := context.Background()

	_, err := searcher.Search(ctx, Query{Text: "mouse"})
	require.NoError(t, err)
	_, err = searcher.SearchTitles(ctx, "coffee mug", 5)
	require.NoError(t, err)

	require.Len(t, store.logs, 2)
	assert.Equal(t, "mouse", store.logs[0].Query)
	assert.Equal(t, 2, store.logs[0].ResultCount)
	assert.Positive(t, store.logs[0].Latency)
	assert.Equal(t, "coffee mug", store.logs[1].Query)
	assert.Equal(t, 1, store.logs[1].ResultCount)
}

func TestSearch_QueryLoggingDisabled(t *testing.T) {
	searcher, store := setupSearcher(t, WithQueryLogging(false))

	_, err := searcher.Search(context.Background(), Query{Text: "mouse"})
	require.NoError(t, err)
	assert.Empty(t, store.logs)
}

func TestSearchTitles(t *testing.T) {
	searcher, _ := setupSearcher(t)

	results, err := searcher.SearchTitles(context.Background(), "mouse", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"M1", "M2"}, ids(results))

	_, err = searcher.SearchTitles(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

type recordingMonitor struct {
	started      Query
	semantic     []string
	text         []string
	both         []string
	semanticOnly []string
	textOnly     []string
	results      []*core.SearchResult
	latency      time.Duration
}

func (m *recordingMonitor) Start(q Query) {
	m.started = q
}

func (m *recordingMonitor) AfterSemanticSearch(ids []string) {
	m.semantic = ids
}

func (m *recordingMonitor) AfterTextSearch(ids []string) {
	m.text = ids
}

func (m *recordingMonitor) SemanticAndTextHit(r *core.CatalogRecord) {
	m.both = append(m.both, r.ID)
}

func (m *recordingMonitor) SemanticHit(r *core.CatalogRecord) {
	m.semanticOnly = append(m.semanticOnly, r.ID)
}

func (m *recordingMonitor) TextHit(r *core.CatalogRecord) {
	m.textOnly = append(m.textOnly, r.ID)
}

func (m *recordingMonitor) Finish(results []*core.SearchResult, latency time.Duration) {
	m.results = results
	m.latency = latency
}

func TestSearchWithMonitor(t *testing.T) {
	searcher, _ := setupSearcher(t)
	monitor := &recordingMonitor{}

	results, err := searcher.SearchWithMonitor(context.Background(), Query{Text: "keyboard"}, monitor)
	require.NoError(t, err)

	assert.Equal(t, "keyboard", monitor.started.Text)
	assert.Equal(t, core.VectorCombined, monitor.started.Column)
	assert.Equal(t, DefaultLimit, monitor.started.Limit)
	assert.Equal(t, []string{"M1", "M2"}, monitor.semantic)
	assert.Equal(t, []string{"K1"}, monitor.text)
	assert.Empty(t, monitor.both)
	assert.ElementsMatch(t, []string{"M1", "M2"}, monitor.semanticOnly)
	assert.Equal(t, []string{"K1"}, monitor.textOnly)
	assert.Equal(t, results, monitor.results)
}

func TestQueryTerms(t *testing.T) {
	assert.Equal(t, []string{"wireless", "mouse", "gaming"}, queryTerms("The Wireless mouse, for gaming!"))
	assert.Empty(t, queryTerms("the best of"))
}

func TestMatchesAllTerms(t *testing.T) {
	record := &core.CatalogRecord{Title: "Wireless Mouse", Brand: "Logi", Categories: []string{"Electronics"}}

	assert.True(t, matchesAllTerms(record, queryTerms("logi mouse")))
	assert.True(t, matchesAllTerms(record, queryTerms("electronics")))
	assert.False(t, matchesAllTerms(record, queryTerms("wireless keyboard")))
	assert.False(t, matchesAllTerms(record, nil))
}

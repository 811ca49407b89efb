package search

import (
	"slices"

	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
)

const (
	// DefaultLimit is the number of results returned when a query sets none.
	DefaultLimit = 10

	// DefaultMinSimilarity is the cosine similarity a semantic hit must reach.
	DefaultMinSimilarity = 0.5
)

// Query is a catalog search request.
type Query struct {
	Text string

	// Column selects the projection to compare against. Default: combined.
	Column core.VectorColumn

	// Limit caps the results. Zero uses the searcher default.
	Limit int

	// MinSimilarity overrides the searcher's similarity threshold when > 0.
	MinSimilarity float32

	// SemanticOnly skips the full-text title match.
	SemanticOnly bool

	Brand     string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
}

func (q Query) similarityQuery(vector []float32, minSimilarity float32, limit int) storage.SimilarityQuery {
	return storage.SimilarityQuery{
		Column:        q.Column,
		Vector:        vector,
		MinSimilarity: minSimilarity,
		Limit:         limit,
		Brand:         q.Brand,
		Category:      q.Category,
		MinPrice:      q.MinPrice,
		MaxPrice:      q.MaxPrice,
		MinRating:     q.MinRating,
	}
}

// matches applies the scalar filters to a record found by full-text search,
// with the same semantics as the store: absent prices and ratings never
// satisfy a bound.
func (q Query) matches(r *core.CatalogRecord) bool {
	if q.Brand != "" && r.Brand != q.Brand {
		return false
	}
	if q.Category != "" && !slices.Contains(r.Categories, q.Category) {
		return false
	}
	if q.MinPrice != nil && (r.Price == nil || *r.Price < *q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && (r.Price == nil || *r.Price > *q.MaxPrice) {
		return false
	}
	if q.MinRating != nil && (r.Rating == nil || *r.Rating < *q.MinRating) {
		return false
	}
	return true
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
)

const catalogSelect = `p.id, p.title, p.description, p.brand, p.categories, p.price, p.image_url, p.rating, p.review_count`

const embeddedSelect = catalogSelect + `, p.title_vec, p.description_vec, p.combined_vec, p.created_at, p.updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// catalogFields returns scan destinations for catalogSelect, plus a finish
// func that copies the nullable columns into r.
func catalogFields(r *core.CatalogRecord) ([]any, func() error) {
	var categories string
	var price, rating sql.NullFloat64
	dest := []any{&r.ID, &r.Title, &r.Description, &r.Brand, &categories, &price, &r.ImageURL, &rating, &r.ReviewCount}
	finish := func() error {
		if price.Valid {
			r.Price = core.Float64(price.Float64)
		}
		if rating.Valid {
			r.Rating = core.Float64(rating.Float64)
		}
		r.Categories = []string{}
		if err := json.Unmarshal([]byte(categories), &r.Categories); err != nil {
			return fmt.Errorf("%w: categories of %s: %w", storage.ErrSerializationFailed, r.ID, err)
		}
		return nil
	}
	return dest, finish
}

func scanCatalog(row scanner, extra ...any) (*core.CatalogRecord, error) {
	var r core.CatalogRecord
	dest, finish := catalogFields(&r)
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanEmbedded(row scanner) (*core.EmbeddedRecord, error) {
	var r core.EmbeddedRecord
	var titleVec, descVec, combinedVec []byte
	dest, finish := catalogFields(&r.CatalogRecord)
	dest = append(dest, &titleVec, &descVec, &combinedVec, &r.CreatedAt, &r.UpdatedAt)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := finish(); err != nil {
		return nil, err
	}
	r.TitleVector = bytesToFloat32Slice(titleVec)
	r.DescriptionVector = bytesToFloat32Slice(descVec)
	r.CombinedVector = bytesToFloat32Slice(combinedVec)
	return &r, nil
}

// GetRecord retrieves a single record by ID.
func (s *Store) GetRecord(ctx context.Context, id string) (*core.EmbeddedRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, "SELECT "+embeddedSelect+" FROM products p WHERE p.id = ?", id)
	r, err := scanEmbedded(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting record %s: %w", id, err)
	}
	return r, nil
}

// ListRecords returns up to limit records with ID > afterID, ordered by ID.
func (s *Store) ListRecords(ctx context.Context, afterID string, limit int) ([]*core.EmbeddedRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than 0", storage.ErrInvalidQuery)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+embeddedSelect+" FROM products p WHERE p.id > ? ORDER BY p.id LIMIT ?", afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	var out []*core.EmbeddedRecord
	for rows.Next() {
		r, err := scanEmbedded(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountRecords returns the number of stored records.
func (s *Store) CountRecords(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// FindByBrand returns records with exactly this brand.
func (s *Store) FindByBrand(ctx context.Context, brand string, limit int) ([]*core.CatalogRecord, error) {
	return s.queryCatalog(ctx,
		"SELECT "+catalogSelect+" FROM products p WHERE p.brand = ? ORDER BY p.id LIMIT ?", brand, limit)
}

// FindByCategory returns records whose categories contain category.
func (s *Store) FindByCategory(ctx context.Context, category string, limit int) ([]*core.CatalogRecord, error) {
	return s.queryCatalog(ctx, `
		SELECT `+catalogSelect+` FROM products p
		WHERE p.pk IN (SELECT product_pk FROM product_categories WHERE category = ?)
		ORDER BY p.id LIMIT ?`, category, limit)
}

func (s *Store) queryCatalog(ctx context.Context, query string, arg any, limit int) ([]*core.CatalogRecord, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than 0", storage.ErrInvalidQuery)
	}
	rows, err := s.db.QueryContext(ctx, query, arg, limit)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var out []*core.CatalogRecord
	for rows.Next() {
		r, err := scanCatalog(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchTitles matches query against the title full-text index. Every
// whitespace separated term must appear. Scores are negated bm25 ranks, so
// higher is better.
func (s *Store) SearchTitles(ctx context.Context, query string, limit int) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than 0", storage.ErrInvalidQuery)
	}
	match := ftsQuery(query)
	if match == "" {
		return []*core.SearchResult{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+catalogSelect+`, bm25(products_fts) AS rank
		FROM products_fts
		JOIN products p ON p.pk = products_fts.rowid
		WHERE products_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("searching titles: %w", err)
	}
	defer rows.Close()

	out := []*core.SearchResult{}
	for rows.Next() {
		var rank float64
		r, err := scanCatalog(rows, &rank)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		out = append(out, &core.SearchResult{Record: r, Score: float32(-rank)})
	}
	return out, rows.Err()
}

// ftsQuery quotes each term so user input never reaches the FTS5 query syntax.
func ftsQuery(query string) string {
	terms := strings.Fields(query)
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}

// filteredOversample widens the first index search when scalar filters may
// reject some of the nearest neighbours.
const filteredOversample = 4

// FindSimilar searches the column's HNSW index for the nearest neighbours of
// q.Vector and keeps those passing the similarity floor and the scalar
// filters. When filters leave fewer than q.Limit results the search widens
// until the index is exhausted.
func (s *Store) FindSimilar(ctx context.Context, q storage.SimilarityQuery) ([]*core.SearchResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if _, err := vectorColumnName(q.Column); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if len(q.Vector) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d values, expected %d", storage.ErrInvalidQuery, len(q.Vector), s.dimension)
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than 0", storage.ErrInvalidQuery)
	}

	where, args := similarityFilters(q)

	total, err := s.CountRecords(ctx)
	if err != nil {
		return nil, err
	}

	k := q.Limit
	if len(where) > 0 {
		k *= filteredOversample
	}

	results := []*core.SearchResult{}
	for total > 0 {
		k = min(k, total)
		hits, err := s.searchIndex(ctx, q.Column, q.Vector, k)
		if err != nil {
			return nil, err
		}

		// hits are ordered by similarity, so everything after the first
		// miss is below the floor too
		cut := len(hits)
		for i, h := range hits {
			if h.score < q.MinSimilarity {
				cut = i
				break
			}
		}

		results, err = s.loadHits(ctx, hits[:cut], where, args, q.Limit)
		if err != nil {
			return nil, err
		}
		if len(results) >= q.Limit || cut < len(hits) || len(hits) < k || k >= total {
			break
		}
		k *= 2
	}
	return results, nil
}

func similarityFilters(q storage.SimilarityQuery) ([]string, []any) {
	var where []string
	var args []any
	if q.Brand != "" {
		where = append(where, "p.brand = ?")
		args = append(args, q.Brand)
	}
	if q.Category != "" {
		where = append(where, "p.pk IN (SELECT product_pk FROM product_categories WHERE category = ?)")
		args = append(args, q.Category)
	}
	if q.MinPrice != nil {
		where = append(where, "p.price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		where = append(where, "p.price <= ?")
		args = append(args, *q.MaxPrice)
	}
	if q.MinRating != nil {
		where = append(where, "p.rating >= ?")
		args = append(args, *q.MinRating)
	}
	return where, args
}

// loadHits fetches the rows behind hits that pass the filters, in hit order,
// up to limit. The rowids travel as one JSON array so the statement never
// approaches the bound-variable limit.
func (s *Store) loadHits(ctx context.Context, hits []hit, where []string, args []any, limit int) ([]*core.SearchResult, error) {
	if len(hits) == 0 {
		return []*core.SearchResult{}, nil
	}
	pks := make([]int64, len(hits))
	for i, h := range hits {
		pks[i] = h.pk
	}
	pkJSON, err := json.Marshal(pks)
	if err != nil {
		return nil, fmt.Errorf("%w: candidate ids: %w", storage.ErrSerializationFailed, err)
	}

	conds := append([]string{"p.pk IN (SELECT value FROM json_each(?))"}, where...)
	query := "SELECT " + catalogSelect + ", p.pk FROM products p WHERE " + strings.Join(conds, " AND ")
	rows, err := s.db.QueryContext(ctx, query, append([]any{string(pkJSON)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}
	defer rows.Close()

	found := make(map[int64]*core.CatalogRecord, len(hits))
	for rows.Next() {
		var pk int64
		r, err := scanCatalog(rows, &pk)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		found[pk] = r
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, min(limit, len(found)))
	for _, h := range hits {
		r, ok := found[h.pk]
		if !ok {
			continue
		}
		results = append(results, &core.SearchResult{Record: r, Score: h.score})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

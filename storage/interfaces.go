package storage

import (
	"context"

	"github.com/poiesic/catalogit/core"
)

// SchemaManager provisions and checks the catalog store.
type SchemaManager interface {
	// EnsureSchema creates every table, index and trigger the catalog needs.
	// It is idempotent and safe to call on every run.
	EnsureSchema(ctx context.Context) error

	// TestConnectivity is a cheap liveness check. It never creates anything.
	TestConnectivity(ctx context.Context) error
}

// CatalogWriter writes embedded records.
type CatalogWriter interface {
	// UpsertBatch inserts new records and fully overwrites records whose ID
	// already exists, in one transaction. Either every record is applied or
	// none is. Returns the number of records written.
	UpsertBatch(ctx context.Context, records ...*core.EmbeddedRecord) (int, error)
}

// SimilarityQuery describes a nearest-neighbor lookup over one vector column.
type SimilarityQuery struct {
	Column        core.VectorColumn
	Vector        []float32
	MinSimilarity float32
	Limit         int

	// Optional scalar filters. Zero values disable a filter.
	Brand     string
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	MinRating *float64
}

// CatalogReader reads stored records.
type CatalogReader interface {
	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id string) (*core.EmbeddedRecord, error)

	// ListRecords returns up to limit records with ID > afterID, ordered by ID.
	ListRecords(ctx context.Context, afterID string, limit int) ([]*core.EmbeddedRecord, error)

	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// FindByBrand returns records with exactly this brand, ordered by ID.
	FindByBrand(ctx context.Context, brand string, limit int) ([]*core.CatalogRecord, error)

	// FindByCategory returns records whose categories contain category, ordered by ID.
	FindByCategory(ctx context.Context, category string, limit int) ([]*core.CatalogRecord, error)

	// SearchTitles runs a full-text match over titles, best match first.
	SearchTitles(ctx context.Context, query string, limit int) ([]*core.SearchResult, error)

	// FindSimilar returns records whose vector in q.Column has cosine
	// similarity >= q.MinSimilarity, highest first, up to q.Limit results.
	FindSimilar(ctx context.Context, q SimilarityQuery) ([]*core.SearchResult, error)
}

// QueryLogger appends to the query analytics log.
type QueryLogger interface {
	LogQuery(ctx context.Context, entry *core.QueryLog) error
}

// CatalogRepository is the full catalog store.
// Implementations must be thread-safe and support concurrent access.
type CatalogRepository interface {
	SchemaManager
	CatalogWriter
	CatalogReader
	QueryLogger

	// Close closes the storage backend and releases resources.
	Close() error
}

// RunRepository persists the ingestion run ledger.
type RunRepository interface {
	// SaveRun creates or replaces a run entry.
	SaveRun(ctx context.Context, run *core.Run) error

	// GetRun retrieves a run by ID.
	// Returns ErrNotFound if the run doesn't exist.
	GetRun(ctx context.Context, id string) (*core.Run, error)

	// ListRuns returns up to limit runs, most recently started first.
	ListRuns(ctx context.Context, limit int) ([]*core.Run, error)

	// PruneRuns keeps the keep most recently started runs, deletes the rest
	// and returns how many were deleted.
	PruneRuns(ctx context.Context, keep int) (int, error)

	// Close closes the ledger and releases resources.
	Close() error
}

package core

import (
	"encoding/hex"
	"hash"
	"time"

	"github.com/go-crypt/x/blake2b"
)

const (
	// DefaultDimension is the embedding width used when none is configured.
	DefaultDimension = 384

	// MaxCategories is the number of categories a record keeps after normalization.
	MaxCategories = 5

	// MaxRating is the upper bound of the rating scale.
	MaxRating = 5.0
)

// CatalogRecord is the canonical, normalized product representation.
// Records are immutable once produced by the normalizer.
type CatalogRecord struct {
	ID          string
	Title       string
	Description string
	Brand       string
	Categories  []string
	Price       *float64 // nil when the source value was absent or unparseable
	ImageURL    string
	Rating      *float64 // nil when unparseable, otherwise within [0, MaxRating]
	ReviewCount int64
}

// VectorColumn names one of the three embedded projections of a record.
type VectorColumn string

const (
	VectorTitle       VectorColumn = "title"
	VectorDescription VectorColumn = "description"
	VectorCombined    VectorColumn = "combined"
)

// VectorColumns lists every projection in the order they are embedded.
var VectorColumns = []VectorColumn{VectorTitle, VectorDescription, VectorCombined}

// ParseVectorColumn maps a projection name to its VectorColumn.
func ParseVectorColumn(name string) (VectorColumn, error) {
	for _, col := range VectorColumns {
		if string(col) == name {
			return col, nil
		}
	}
	return "", ErrUnknownVectorColumn
}

// EmbeddedRecord is a CatalogRecord plus one vector per projection.
type EmbeddedRecord struct {
	CatalogRecord
	TitleVector       []float32
	DescriptionVector []float32
	CombinedVector    []float32
	CreatedAt         time.Time // set by the store
	UpdatedAt         time.Time // refreshed by the store on every overwrite
}

// Vector returns the vector stored for the given projection.
func (r *EmbeddedRecord) Vector(col VectorColumn) []float32 {
	switch col {
	case VectorTitle:
		return r.TitleVector
	case VectorDescription:
		return r.DescriptionVector
	case VectorCombined:
		return r.CombinedVector
	}
	return nil
}

// SearchResult is a catalog record matched by a query, with its relevance score.
type SearchResult struct {
	Record *CatalogRecord
	Score  float32
}

// QueryLog is one entry of the append-only query log.
type QueryLog struct {
	Query       string
	ResultCount int
	Latency     time.Duration
	CreatedAt   time.Time
}

// RunStatus is the outcome of an ingestion run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the ledger entry describing one ingestion run.
type Run struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	SourceDigest string    `json:"source_digest,omitempty"`
	Model        string    `json:"model,omitempty"`
	Dimension    int       `json:"dimension,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitzero"`
	Stage        string    `json:"stage"`
	Status       RunStatus `json:"status"`
	RowsRead     int       `json:"rows_read"`
	Accepted     int       `json:"accepted"`
	Dropped      int       `json:"dropped"`
	Persisted    int       `json:"persisted"`
	Error        string    `json:"error,omitempty"`
}

// Float64 returns a pointer to v. Handy for the optional numeric fields.
func Float64(v float64) *float64 {
	return &v
}

// NewDigest returns the hash used to fingerprint downloaded catalog files.
func NewDigest() hash.Hash {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	return h
}

// FormatSum renders a digest sum as lowercase hex.
func FormatSum(sum []byte) string {
	return hex.EncodeToString(sum)
}

// DigestContent returns the hex encoded BLAKE2b-256 digest of data.
func DigestContent(data []byte) string {
	sum := blake2b.Sum256(data)
	return FormatSum(sum[:])
}

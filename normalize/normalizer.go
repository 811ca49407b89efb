package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/catalogit/core"
)

const (
	// DefaultMinTitleLength is the length a trimmed title must exceed.
	DefaultMinTitleLength = 3

	// DefaultReportInterval is how many rows pass between progress log lines.
	DefaultReportInterval = 1000

	defaultChunkSize = 256
)

// ProgressFunc receives the number of rows normalized so far. It may be
// called from several pool workers at once.
type ProgressFunc func(processed, total int)

// Normalizer turns raw rows into validated CatalogRecords. Normalize is pure;
// NormalizeAll fans rows out over a worker pool.
type Normalizer struct {
	schema         Schema
	minTitleLength int
	pool           *ants.Pool
	chunkSize      int
	reportInterval int
	progress       ProgressFunc
	logger         *slog.Logger
}

type Option func(*Normalizer) error

// WithSchema replaces the default column fallback rules.
func WithSchema(schema Schema) Option {
	return func(n *Normalizer) error {
		n.schema = schema
		return nil
	}
}

// WithMinTitleLength sets the length a trimmed title must exceed to be kept.
func WithMinTitleLength(length int) Option {
	return func(n *Normalizer) error {
		if length < 0 {
			return ErrInvalidMinTitleLength
		}
		n.minTitleLength = length
		return nil
	}
}

func WithPoolSize(size int) Option {
	return func(n *Normalizer) error {
		if size < 1 {
			size = 1
		}

		if n.pool != nil {
			n.pool.Release()
			n.pool = nil
		}

		pool, err := newPool(size, n.logger)
		if err != nil {
			return err
		}
		n.pool = pool
		return nil
	}
}

// WithReportInterval sets how often progress is logged. Zero disables logging.
func WithReportInterval(rows int) Option {
	return func(n *Normalizer) error {
		if rows < 0 {
			rows = 0
		}
		n.reportInterval = rows
		return nil
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(n *Normalizer) error {
		n.progress = fn
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		n.logger = logger.With("component", "normalizer")
		return nil
	}
}

// NewNormalizer creates a Normalizer using DefaultSchema unless overridden.
// Call Release when done to stop the worker pool.
func NewNormalizer(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		schema:         DefaultSchema(),
		minTitleLength: DefaultMinTitleLength,
		chunkSize:      defaultChunkSize,
		reportInterval: DefaultReportInterval,
		logger:         slog.Default().With("component", "normalizer"),
	}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			n.Release()
			return nil, err
		}
	}

	if n.pool == nil {
		size := runtime.NumCPU()
		pool, err := newPool(size, n.logger)
		if err != nil {
			return nil, err
		}
		n.pool = pool
	}

	return n, nil
}

func newPool(size int, logger *slog.Logger) (*ants.Pool, error) {
	return ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		logger.Error("normalization worker panicked", "panic", p)
	}))
}

// Release stops the worker pool.
func (n *Normalizer) Release() {
	if n.pool != nil {
		n.pool.Release()
	}
}

// Normalize maps one raw row onto a CatalogRecord. Failures are confined to
// the row and reported as a dropped Outcome.
func (n *Normalizer) Normalize(row core.RawRow) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%w: row %d: %v", ErrRowParse, row.Index, r)
			n.logger.Warn("dropping row", "row", row.Index, "err", err)
			out = Dropped(row.Index, ReasonRowError, err)
		}
	}()

	record := n.resolve(row)
	cleanup(record, n.schema.Placeholder(row.Index))

	if utf8.RuneCountInString(record.Title) <= n.minTitleLength {
		n.logger.Debug("dropping row with short title", "row", row.Index, "id", record.ID)
		return Dropped(row.Index, ReasonShortTitle, nil)
	}

	if err := core.ValidateCatalogRecord(record); err != nil {
		err = fmt.Errorf("%w: row %d: %w", ErrRowParse, row.Index, err)
		n.logger.Warn("dropping invalid row", "row", row.Index, "err", err)
		return Dropped(row.Index, ReasonInvalid, err)
	}

	return Accepted(row.Index, record)
}

func (n *Normalizer) resolve(row core.RawRow) *core.CatalogRecord {
	text := func(field Field) string {
		v, _ := n.schema.Resolve(row, field)
		return strings.TrimSpace(v)
	}

	record := &core.CatalogRecord{
		ID:          text(FieldID),
		Title:       text(FieldTitle),
		Description: text(FieldDescription),
		Brand:       text(FieldBrand),
		ImageURL:    text(FieldImageURL),
		Categories:  []string{},
	}

	if v, ok := n.schema.Resolve(row, FieldCategories); ok {
		record.Categories = ParseCategories(v)
	}
	if v, ok := n.schema.Resolve(row, FieldPrice); ok {
		record.Price = ParsePrice(v)
	}
	if v, ok := n.schema.Resolve(row, FieldRating); ok {
		record.Rating = ParseRating(v)
	}
	if v, ok := n.schema.Resolve(row, FieldReviewCount); ok {
		record.ReviewCount = ParseReviewCount(v)
	}

	return record
}

// cleanup resets any null-sentinel value to its field default.
func cleanup(record *core.CatalogRecord, placeholder string) {
	for _, s := range []*string{&record.Title, &record.Description, &record.Brand, &record.ImageURL} {
		if IsNullSentinel(*s) {
			*s = ""
		}
	}
	if IsNullSentinel(record.ID) {
		record.ID = placeholder
	}
	if record.Categories == nil {
		record.Categories = []string{}
	}
	if record.Price != nil && math.IsNaN(*record.Price) {
		record.Price = nil
	}
	if record.Rating != nil && math.IsNaN(*record.Rating) {
		record.Rating = nil
	}
	if record.ReviewCount < 0 {
		record.ReviewCount = 0
	}
}

// NormalizeAll normalizes rows on the worker pool and aggregates the outcomes.
// Accepted records keep their input order. When several rows share an id the
// last one wins and the rest are dropped as duplicates. Only cancellation or a pool
// failure returns an error; bad rows are counted as drops.
func (n *Normalizer) NormalizeAll(ctx context.Context, rows []core.RawRow) (*Result, error) {
	outcomes := make([]Outcome, len(rows))
	total := len(rows)

	var (
		wg   sync.WaitGroup
		done atomic.Int64
	)

	for start := 0; start < total; start += n.chunkSize {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}

		end := min(start+n.chunkSize, total)
		wg.Add(1)
		err := n.pool.Submit(func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				outcomes[i] = n.Normalize(rows[i])
			}
			after := done.Add(int64(end - start))
			n.report(after-int64(end-start), after, total)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("submitting rows %d-%d: %w", start, end, err)
		}
	}
	wg.Wait()

	result := newResult(total)
	for _, o := range outcomes {
		result.Add(o)
	}
	before := result.Dropped
	result.dedupe()
	if dups := result.Dropped - before; dups > 0 {
		n.logger.Warn("dropped rows with repeated ids", "count", dups)
	}

	n.logger.Info("normalization complete",
		"processed", result.Processed,
		"accepted", result.Accepted,
		"dropped", result.Dropped)

	return result, nil
}

func (n *Normalizer) report(before, after int64, total int) {
	if n.reportInterval > 0 {
		interval := int64(n.reportInterval)
		if before/interval != after/interval {
			n.logger.Info("processed records", "processed", after, "total", total)
		}
	}
	if n.progress != nil {
		n.progress(int(after), total)
	}
}

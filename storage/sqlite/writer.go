package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
)

const productColumns = `id, title, description, brand, categories, price, image_url, rating, review_count,
	title_vec, description_vec, combined_vec, created_at, updated_at`

const productColumnCount = 14

// created_at is deliberately absent: an overwrite keeps the original insert time.
const upsertConflict = `
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		brand = excluded.brand,
		categories = excluded.categories,
		price = excluded.price,
		image_url = excluded.image_url,
		rating = excluded.rating,
		review_count = excluded.review_count,
		title_vec = excluded.title_vec,
		description_vec = excluded.description_vec,
		combined_vec = excluded.combined_vec,
		updated_at = excluded.updated_at`

// UpsertBatch writes records in a single transaction, pageSize rows per
// statement. On any failure the transaction is rolled back and no record
// from the call is visible. Once committed, the batch is applied to the
// vector indexes. The count is of distinct IDs: when an ID repeats within
// the call, its last record wins.
func (s *Store) UpsertBatch(ctx context.Context, records ...*core.EmbeddedRecord) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	for _, r := range records {
		if err := core.ValidateEmbeddedRecord(r, s.dimension); err != nil {
			return 0, err
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", storage.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	pks := make(map[string]int64, len(records))
	for start := 0; start < len(records); start += s.pageSize {
		end := min(start+s.pageSize, len(records))
		page := records[start:end]

		query, args, err := buildUpsert(page, now)
		if err != nil {
			return 0, err
		}
		if err := upsertPage(ctx, tx, query, args, pks); err != nil {
			s.logger.Error("upsert page failed", "offset", start, "rows", len(page), "err", err)
			return 0, fmt.Errorf("%w: writing rows %d-%d: %w", storage.ErrTransactionFailed, start, end-1, err)
		}
	}

	var version int64
	err = tx.QueryRowContext(ctx,
		"UPDATE catalog_version SET version = version + 1 WHERE id = 1 RETURNING version").Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("%w: bumping catalog version: %w", storage.ErrTransactionFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %w", storage.ErrTransactionFailed, err)
	}

	written := len(pks)
	s.logger.Debug("upserted records", "count", written, "version", version)

	// the rows are committed, so a cancelled caller must not leave the indexes behind
	if err := s.updateVectorIndexes(context.WithoutCancel(ctx), records, pks, version); err != nil {
		return written, err
	}
	return written, nil
}

// upsertPage runs one multi-row upsert and records the rowid of every ID it
// wrote.
func upsertPage(ctx context.Context, tx *sql.Tx, query string, args []any, pks map[string]int64) error {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var pk int64
		var id string
		if err := rows.Scan(&pk, &id); err != nil {
			return err
		}
		pks[id] = pk
	}
	return rows.Err()
}

func buildUpsert(page []*core.EmbeddedRecord, now time.Time) (string, []any, error) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", productColumnCount), ", ") + ")"

	var sb strings.Builder
	sb.WriteString("INSERT INTO products (")
	sb.WriteString(productColumns)
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(page)*productColumnCount)
	for i, r := range page {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholder)

		categories := r.Categories
		if categories == nil {
			categories = []string{}
		}
		categoriesJSON, err := json.Marshal(categories)
		if err != nil {
			return "", nil, fmt.Errorf("%w: categories of %s: %w", storage.ErrSerializationFailed, r.ID, err)
		}

		args = append(args,
			r.ID, r.Title, r.Description, r.Brand, string(categoriesJSON),
			r.Price, r.ImageURL, r.Rating, r.ReviewCount,
			float32SliceToBytes(r.TitleVector),
			float32SliceToBytes(r.DescriptionVector),
			float32SliceToBytes(r.CombinedVector),
			now, now,
		)
	}
	sb.WriteString(upsertConflict)
	sb.WriteString(" RETURNING pk, id")

	return sb.String(), args, nil
}

// LogQuery appends one entry to search_logs.
func (s *Store) LogQuery(ctx context.Context, entry *core.QueryLog) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_logs (query, results_count, response_time_ms, created_at)
		VALUES (?, ?, ?, ?)
	`, entry.Query, entry.ResultCount, float64(entry.Latency.Microseconds())/1000.0, createdAt)
	if err != nil {
		return fmt.Errorf("logging query: %w", err)
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/vecgo/distance"
	"github.com/hupe1980/vecgo/engine"
	"github.com/hupe1980/vecgo/model"

	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
)

// rebuildPageSize is the number of rows read per query during a rebuild.
const rebuildPageSize = 1000

// vecgoLogger routes the engine's printf-style output into slog.
type vecgoLogger struct {
	logger *slog.Logger
}

var _ engine.Logger = (*vecgoLogger)(nil)

func (l *vecgoLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *vecgoLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// vectorIndex is the HNSW index over one vector column. Entries are keyed by
// products.pk, so an overwrite of an existing id replaces its vector in place.
type vectorIndex struct {
	column core.VectorColumn
	dir    string
	eng    *engine.Engine
}

// indexEntry is one row's vector bound for the index.
type indexEntry struct {
	pk     int64
	vector []float32
}

func openVectorIndex(root string, col core.VectorColumn, dimension int, logger *slog.Logger) (*vectorIndex, error) {
	dir := filepath.Join(root, string(col))
	eng, err := engine.Open(dir, dimension, distance.MetricCosine,
		engine.WithLogger(&vecgoLogger{logger: logger.With("index", string(col))}))
	if err != nil {
		return nil, fmt.Errorf("opening %s vector index: %w", col, err)
	}
	return &vectorIndex{column: col, dir: dir, eng: eng}, nil
}

// apply upserts entries. Zero vectors have no direction, so they are removed
// from the index instead and never match a similarity query.
func (v *vectorIndex) apply(entries []indexEntry) error {
	batch := make([]model.Record, 0, len(entries))
	for _, e := range entries {
		pk := model.PrimaryKey(e.pk)
		if _, ok := distance.NormalizeL2Copy(e.vector); !ok {
			if err := v.eng.Delete(pk); err != nil {
				return fmt.Errorf("removing %d from %s index: %w", e.pk, v.column, err)
			}
			continue
		}
		batch = append(batch, model.Record{PK: pk, Vector: e.vector})
	}
	if err := v.eng.BatchInsert(batch); err != nil {
		return fmt.Errorf("indexing %d vectors in %s: %w", len(batch), v.column, err)
	}
	return nil
}

// hit is a candidate returned by the index.
type hit struct {
	pk    int64
	score float32
}

// search returns up to k candidates, most similar first.
func (v *vectorIndex) search(ctx context.Context, query []float32, k int) ([]hit, error) {
	if _, ok := distance.NormalizeL2Copy(query); !ok {
		return nil, nil
	}
	candidates, err := v.eng.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("searching %s index: %w", v.column, err)
	}
	hits := make([]hit, len(candidates))
	for i, c := range candidates {
		hits[i] = hit{pk: int64(c.PK), score: c.Score}
	}
	return hits, nil
}

func (v *vectorIndex) close() error {
	return v.eng.Close()
}

// drop closes the index and deletes its files.
func (v *vectorIndex) drop() error {
	v.close() //nolint:errcheck
	return os.RemoveAll(v.dir)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func catalogVersion(ctx context.Context, q querier) (int64, error) {
	var version int64
	if err := q.QueryRowContext(ctx, "SELECT version FROM catalog_version WHERE id = 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading catalog version: %w", err)
	}
	return version, nil
}

func (s *Store) syncedVersion(ctx context.Context, col core.VectorColumn) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		"SELECT synced_version FROM vector_indexes WHERE name = ?", vectorIndexName(col)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("reading synced version of %s: %w", col, err)
	}
	return version, nil
}

// markSynced advances an index's synced version from prev to version. An
// index that had already fallen behind prev stays behind.
func (s *Store) markSynced(ctx context.Context, col core.VectorColumn, prev, version int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE vector_indexes SET synced_version = ? WHERE name = ? AND synced_version = ?",
		version, vectorIndexName(col), prev)
	if err != nil {
		return fmt.Errorf("marking %s synced: %w", col, err)
	}
	return nil
}

// openVectorIndexes opens each column's index and rebuilds any that does not
// match the products table.
func (s *Store) openVectorIndexes(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	version, err := catalogVersion(ctx, s.db)
	if err != nil {
		return err
	}
	var rows int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&rows); err != nil {
		return fmt.Errorf("counting records: %w", err)
	}

	for _, col := range core.VectorColumns {
		s.idxMu.RLock()
		_, open := s.indexes[col]
		s.idxMu.RUnlock()

		fresh := false
		if !open {
			_, statErr := os.Stat(filepath.Join(s.indexDir, string(col)))
			fresh = errors.Is(statErr, fs.ErrNotExist)

			idx, err := openVectorIndex(s.indexDir, col, s.dimension, s.logger)
			if err != nil {
				return fmt.Errorf("%w: %w", storage.ErrVectorIndex, err)
			}
			s.idxMu.Lock()
			s.indexes[col] = idx
			s.idxMu.Unlock()
		}

		synced, err := s.syncedVersion(ctx, col)
		if err != nil {
			return err
		}
		if synced == version && !(fresh && rows > 0) {
			continue
		}
		s.logger.Info("rebuilding vector index", "column", col, "synced_version", synced, "catalog_version", version)
		if err := s.rebuildVectorIndex(ctx, col, version); err != nil {
			return err
		}
	}
	return nil
}

// rebuildVectorIndex replaces col's index with one built from every stored
// row. The caller holds writeMu.
func (s *Store) rebuildVectorIndex(ctx context.Context, col core.VectorColumn, version int64) error {
	column, err := vectorColumnName(col)
	if err != nil {
		return err
	}

	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	if old, ok := s.indexes[col]; ok {
		delete(s.indexes, col)
		if err := old.drop(); err != nil {
			return fmt.Errorf("%w: dropping %s index: %w", storage.ErrVectorIndex, col, err)
		}
	}
	idx, err := openVectorIndex(s.indexDir, col, s.dimension, s.logger)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrVectorIndex, err)
	}
	s.indexes[col] = idx

	var after int64
	indexed := 0
	for {
		entries, err := s.readVectors(ctx, column, after)
		if err != nil {
			return fmt.Errorf("%w: %w", storage.ErrVectorIndex, err)
		}
		if len(entries) == 0 {
			break
		}
		if err := idx.apply(entries); err != nil {
			return fmt.Errorf("%w: %w", storage.ErrVectorIndex, err)
		}
		indexed += len(entries)
		after = entries[len(entries)-1].pk
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE vector_indexes SET synced_version = ? WHERE name = ?", version, vectorIndexName(col))
	if err != nil {
		return fmt.Errorf("marking %s synced: %w", col, err)
	}
	s.logger.Info("vector index rebuilt", "column", col, "vectors", indexed)
	return nil
}

func (s *Store) readVectors(ctx context.Context, column string, after int64) ([]indexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT pk, "+column+" FROM products WHERE pk > ? ORDER BY pk LIMIT ?", after, rebuildPageSize)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", column, err)
	}
	defer rows.Close()

	var entries []indexEntry
	for rows.Next() {
		var e indexEntry
		var blob []byte
		if err := rows.Scan(&e.pk, &blob); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", column, err)
		}
		e.vector = bytesToFloat32Slice(blob)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// updateVectorIndexes applies a committed batch to every index. An index that
// fails to apply it is rebuilt from the products table.
func (s *Store) updateVectorIndexes(ctx context.Context, records []*core.EmbeddedRecord, pks map[string]int64, version int64) error {
	// last write of an id within the batch wins
	latest := make([]*core.EmbeddedRecord, 0, len(pks))
	seen := make(map[string]struct{}, len(pks))
	for i := len(records) - 1; i >= 0; i-- {
		if _, ok := seen[records[i].ID]; ok {
			continue
		}
		seen[records[i].ID] = struct{}{}
		latest = append(latest, records[i])
	}

	var failed []core.VectorColumn
	s.idxMu.RLock()
	for _, col := range core.VectorColumns {
		idx, ok := s.indexes[col]
		if !ok {
			// left behind; the next EnsureSchema rebuilds it
			continue
		}
		entries := make([]indexEntry, len(latest))
		for i, r := range latest {
			entries[i] = indexEntry{pk: pks[r.ID], vector: r.Vector(col)}
		}
		err := idx.apply(entries)
		if err == nil {
			err = s.markSynced(ctx, col, version-1, version)
		}
		if err != nil {
			s.logger.Error("vector index update failed", "column", col, "err", err)
			failed = append(failed, col)
		}
	}
	s.idxMu.RUnlock()

	for _, col := range failed {
		if err := s.rebuildVectorIndex(ctx, col, version); err != nil {
			return err
		}
	}
	return nil
}

// searchIndex runs a k-nearest-neighbour query against col's index.
func (s *Store) searchIndex(ctx context.Context, col core.VectorColumn, query []float32, k int) ([]hit, error) {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	idx, ok := s.indexes[col]
	if !ok {
		return nil, fmt.Errorf("%w: %s index is not open, run EnsureSchema first", storage.ErrVectorIndex, col)
	}
	return idx.search(ctx, query, k)
}

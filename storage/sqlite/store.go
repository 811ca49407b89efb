// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


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
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
	"github.com/poiesic/catalogit/storage/sqlite/migrations"
)

// DefaultPageSize is the number of rows written per INSERT statement.
const DefaultPageSize = 100

// maxVariables is SQLite's SQLITE_MAX_VARIABLE_NUMBER.
const maxVariables = 32766

// MaxPageSize is the largest page whose bound parameters fit in one statement.
const MaxPageSize = maxVariables / productColumnCount

// indexDirSuffix names the directory holding the vector indexes, beside the
// database file.
const indexDirSuffix = ".vec"

// vectorIndexName returns the registry name of the index over col.
func vectorIndexName(col core.VectorColumn) string {
	return "idx_products_" + string(col) + "_vec"
}

// vectorColumnName maps a projection to its BLOB column.
func vectorColumnName(col core.VectorColumn) (string, error) {
	switch col {
	case core.VectorTitle:
		return "title_vec", nil
	case core.VectorDescription:
		return "description_vec", nil
	case core.VectorCombined:
		return "combined_vec", nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownVectorColumn, col)
}

// Store is the SQLite-backed catalog repository.
type Store struct {
	db        *sql.DB
	path      string
	indexDir  string
	dimension int
	pageSize  int
	closed    atomic.Bool
	logger    *slog.Logger

	// writeMu serializes upserts and index rebuilds so the indexes see
	// commits in catalog version order.
	writeMu sync.Mutex
	idxMu   sync.RWMutex
	indexes map[core.VectorColumn]*vectorIndex
}

var _ storage.CatalogRepository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithPageSize sets the number of rows per physical INSERT.
func WithPageSize(size int) Option {
	return func(s *Store) error {
		if size <= 0 {
			return fmt.Errorf("%w: page size must be greater than 0", storage.ErrInvalidQuery)
		}
		if size > MaxPageSize {
			return fmt.Errorf("%w: page size %d exceeds %d rows per statement", storage.ErrInvalidQuery, size, MaxPageSize)
		}
		s.pageSize = size
		return nil
	}
}

// WithIndexDir places the vector indexes under dir instead of beside the
// database file.
func WithIndexDir(dir string) Option {
	return func(s *Store) error {
		if dir != "" {
			s.indexDir = dir
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger != nil {
			s.logger = logger.With("component", "catalog-store")
		}
		return nil
	}
}

// NewStore opens (creating if needed) the catalog database at path. It does
// not provision the schema; call EnsureSchema for that.
//
// Returns storage.CatalogRepository interface to enforce abstraction.
func NewStore(path string, dimension int, opts ...Option) (storage.CatalogRepository, error) {
	return newStore(path, dimension, opts...)
}

func newStore(path string, dimension int, opts ...Option) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be greater than 0", storage.ErrInvalidQuery)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// WAL mode so readers never observe a half-applied batch
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:        db,
		path:      path,
		indexDir:  path + indexDirSuffix,
		dimension: dimension,
		pageSize:  DefaultPageSize,
		logger:    slog.Default().With("component", "catalog-store"),
		indexes:   make(map[core.VectorColumn]*vectorIndex),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Dimension returns the vector width this store accepts.
func (s *Store) Dimension() int {
	return s.dimension
}

// Close closes the vector indexes and the database connection.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.idxMu.Lock()
	defer s.idxMu.Unlock()

	var errs []error
	for col, idx := range s.indexes {
		if err := idx.close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s index: %w", col, err))
		}
		delete(s.indexes, col)
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return storage.ErrStorageClosed
	}
	return nil
}

// TestConnectivity pings the database and runs a trivial query.
func (s *Store) TestConnectivity(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("liveness query: %w", err)
	}
	return nil
}

// EnsureSchema applies pending migrations, registers one vector index per
// projection column at the store's dimension and opens the indexes. An index
// that lags the products table is rebuilt from it.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	if err := s.registerVectorIndexes(ctx); err != nil {
		return err
	}
	if err := s.openVectorIndexes(ctx); err != nil {
		return err
	}
	s.logger.Debug("schema ready", "dimension", s.dimension, "index_dir", s.indexDir)
	return nil
}

// migrate runs all pending migrations, each in its own transaction.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_catalog.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.applyMigration(ctx, version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		s.logger.Info("applied migration", "version", version, "name", name)
	}

	return nil
}

func (s *Store) applyMigration(ctx context.Context, version int, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

func (s *Store) registerVectorIndexes(ctx context.Context) error {
	for _, col := range core.VectorColumns {
		column, err := vectorColumnName(col)
		if err != nil {
			return err
		}
		name := vectorIndexName(col)

		var existing int
		err = s.db.QueryRowContext(ctx, "SELECT dimension FROM vector_indexes WHERE name = ?", name).Scan(&existing)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = s.db.ExecContext(ctx, `
				INSERT INTO vector_indexes (name, column_name, dimension, metric, kind)
				VALUES (?, ?, ?, 'cosine', 'hnsw')
			`, name, column, s.dimension)
			if err != nil {
				return fmt.Errorf("registering vector index %s: %w", name, err)
			}
		case err != nil:
			return fmt.Errorf("reading vector index %s: %w", name, err)
		case existing != s.dimension:
			return fmt.Errorf("%w: %s is %d, configured %d", storage.ErrDimensionConflict, name, existing, s.dimension)
		}
	}
	return nil
}

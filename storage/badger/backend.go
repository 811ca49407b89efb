package badger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Backend owns the BadgerDB instance behind the run ledger.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogAdapter routes badger's printf-style logging into slog. Badger's info
// output is routine housekeeping, so it is demoted to debug.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func logLine(msg string, items []any) string {
	return strings.TrimSpace(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Errorf(msg string, items ...any)   { a.logger.Error(logLine(msg, items)) }
func (a *slogAdapter) Warningf(msg string, items ...any) { a.logger.Warn(logLine(msg, items)) }
func (a *slogAdapter) Infof(msg string, items ...any)    { a.logger.Debug(logLine(msg, items)) }
func (a *slogAdapter) Debugf(msg string, items ...any)   { a.logger.Debug(logLine(msg, items)) }

// BackendOption adjusts the badger options before the database is opened.
type BackendOption func(*backendConfig)

type backendConfig struct {
	inMemory   bool
	syncWrites bool
	logger     *slog.Logger
}

// InMemory keeps the ledger in memory only. The directory is ignored.
func InMemory() BackendOption {
	return func(c *backendConfig) {
		c.inMemory = true
	}
}

// WithSyncWrites fsyncs every committed run entry.
func WithSyncWrites(sync bool) BackendOption {
	return func(c *backendConfig) {
		c.syncWrites = sync
	}
}

// WithBackendLogger sets the logger badger's output is routed to.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(c *backendConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// ensureDir creates dir if needed and fails when it names a regular file.
func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// OpenBackend opens (creating if needed) a ledger database in dir.
func OpenBackend(dir string, opts ...BackendOption) (*Backend, error) {
	cfg := &backendConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	var bopts badger.Options
	if cfg.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		bopts = badger.DefaultOptions(dir).WithSyncWrites(cfg.syncWrites)
	}

	logger := cfg.logger.With("component", "run-ledger")
	bopts.Logger = &slogAdapter{logger: logger}
	// Ledger entries are small JSON documents; compression buys nothing.
	bopts.Compression = options.None

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, err
	}
	return &Backend{db: db, logger: logger}, nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// Update runs fn in a read-write transaction, committing when fn returns nil.
func (b *Backend) Update(fn func(tx *badger.Txn) error) error {
	return b.db.Update(fn)
}

// View runs fn in a read-only transaction.
func (b *Backend) View(fn func(tx *badger.Txn) error) error {
	return b.db.View(fn)
}

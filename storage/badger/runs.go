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


package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/catalogit/core"
	"github.com/poiesic/catalogit/storage"
)

// RunRepository implements storage.RunRepository for BadgerDB.
type RunRepository struct {
	backend     *Backend
	ownsBackend bool
}

var _ storage.RunRepository = (*RunRepository)(nil)

// NewRunRepository opens a ledger stored in dir.
//
// Returns storage.RunRepository interface to enforce abstraction.
func NewRunRepository(dir string, opts ...BackendOption) (storage.RunRepository, error) {
	backend, err := OpenBackend(dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}
	return &RunRepository{backend: backend, ownsBackend: true}, nil
}

// Close closes the backend if the repository opened it.
func (r *RunRepository) Close() error {
	if !r.ownsBackend || r.backend.IsClosed() {
		return nil
	}
	return r.backend.Close()
}

// SaveRun creates or replaces a run entry and its start-time index.
func (r *RunRepository) SaveRun(ctx context.Context, run *core.Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id required", storage.ErrInvalidQuery)
	}
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	value, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}

	return r.backend.Update(func(tx *badger.Txn) error {
		old, err := readRun(tx, makeRunKey(run.ID))
		if err != nil {
			return err
		}
		if old != nil && !old.StartedAt.Equal(run.StartedAt) {
			if err := tx.Delete(makeRunStartKey(old.StartedAt, old.ID)); err != nil {
				return err
			}
		}
		if err := tx.Set(makeRunKey(run.ID), value); err != nil {
			return err
		}
		return tx.Set(makeRunStartKey(run.StartedAt, run.ID), []byte(run.ID))
	})
}

// GetRun retrieves a run by ID.
func (r *RunRepository) GetRun(ctx context.Context, id string) (*core.Run, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var run *core.Run
	err := r.backend.View(func(tx *badger.Txn) error {
		var err error
		run, err = readRun(tx, makeRunKey(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, storage.ErrNotFound
	}
	return run, nil
}

// ListRuns returns up to limit runs, most recently started first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]*core.Run, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be greater than 0", storage.ErrInvalidQuery)
	}
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	runs := []*core.Run{}
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runStartPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration must start past the last key under the prefix
		seek := append([]byte(runStartPrefix), 0xFF)
		for iter.Seek(seek); iter.Valid() && len(runs) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := iter.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			run, err := readRun(tx, makeRunKey(string(id)))
			if err != nil {
				return err
			}
			if run != nil {
				runs = append(runs, run)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// PruneRuns deletes every run except the keep most recently started ones and
// returns how many were removed.
func (r *RunRepository) PruneRuns(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep cannot be negative", storage.ErrInvalidQuery)
	}
	if r.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	var stale [][]byte
	err := r.backend.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(runStartPrefix)
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		seen := 0
		for iter.Seek(append([]byte(runStartPrefix), 0xFF)); iter.Valid(); iter.Next() {
			if seen++; seen <= keep {
				continue
			}
			stale = append(stale, iter.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, startKey := range stale {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		id := startKey[len(runStartPrefix)+8:]
		err := r.backend.Update(func(tx *badger.Txn) error {
			if err := tx.Delete(startKey); err != nil {
				return err
			}
			return tx.Delete(makeRunKey(string(id)))
		})
		if err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

// readRun returns nil, nil when the key does not exist.
func readRun(tx *badger.Txn, key []byte) (*core.Run, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var run core.Run
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &run)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrSerializationFailed, err)
	}
	return &run, nil
}

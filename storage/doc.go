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


// Package storage provides the storage abstraction layer for catalogit.
//
// This package defines repository interfaces that decouple storage
// implementation from pipeline logic.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	store, err := sqlite.NewStore(path, 384)  // returns storage.CatalogRepository
//	runs, err := badger.NewRunRepository(dir) // returns storage.RunRepository
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Architecture
//
//   - SchemaManager: idempotent provisioning and liveness check
//   - CatalogWriter: all-or-nothing bulk upsert keyed by product ID
//   - CatalogReader: lookups, keyset listing, full-text and vector search
//   - QueryLogger: append-only query analytics
//   - CatalogRepository: all of the above, backed by SQLite (storage/sqlite)
//   - RunRepository: the ingestion run ledger, backed by BadgerDB (storage/badger)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage

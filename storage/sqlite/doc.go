// Package sqlite implements storage.CatalogRepository on SQLite.
//
// The database runs in WAL mode through the pure-Go modernc.org/sqlite
// driver. Schema changes are embedded SQL migrations tracked in
// schema_migrations.
//
// # Layout
//
//   - products: one row per external id, vectors stored as little-endian
//     float32 BLOBs
//   - product_categories: category containment, kept in sync by triggers
//   - products_fts: FTS5 external-content index over titles
//   - vector_indexes: declared dimension and metric per vector column
//   - search_logs: append-only query analytics
//
// Similarity search is an exact cosine scan over the chosen column after
// the scalar filters have narrowed the candidate set.
package sqlite

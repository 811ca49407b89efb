// Package source downloads catalog files and reads them into raw rows.
//
// Locations may be local paths, file://, http(s)://, s3://bucket/key or
// minio://bucket/key. Files ending in .gz, .zst or .lz4 are decompressed
// on the fly. Every download is fingerprinted with BLAKE2b-256 so the run
// ledger can tell whether a catalog changed between runs.
package source

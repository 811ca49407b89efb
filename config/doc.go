// Package config loads catalogit settings from a TOML file.
//
// Every section has defaults, so an empty file (or no file) is a working
// configuration for a local embedding service on port 8000. Durations are
// written as strings, e.g. download_timeout = "10m".
//
//	[store]
//	path = "/var/lib/catalogit/catalog.db"
//	ledger_dir = "/var/lib/catalogit/runs"
//
//	[ai]
//	provider = "openai"
//	host = "http://localhost:11434"
//	model = "nomic-embed-text"
//	dimension = 768
//
//	[normalize.columns]
//	id = ["sku", "asin"]
package config

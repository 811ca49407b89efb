// Package remote provides an ai.Embedder for the catalog embedding service.
//
// The service exposes two endpoints:
//
//	POST /embed   {"texts": [...], "normalize": true}
//	              -> {"embeddings": [[...]], "model_name": "...", "dimension": 384}
//	GET  /health  -> {"status": "healthy", "model_loaded": true, "model_name": "..."}
//
// /embed answers 503 while the model is still loading. The embedder retries
// 429, 5xx and transport failures with exponential backoff, and implements
// ai.HealthChecker so callers can wait for the model before ingesting.
package remote

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


// Package ai provides the embedding abstractions used by catalogit.
//
// The embedding model is always an injected dependency: the batcher, the
// reembedder and the searcher receive an Embedder and never reach for
// process-wide model state.
//
// # Interfaces
//
//   - Embedder: turns texts into fixed-length vectors and reports its
//     dimension and model name
//   - HealthChecker: optional liveness check distinguishing a service that
//     is still loading its model from one that is ready
//   - AIProvider: owns an Embedder and its resources
//
// # Implementation Packages
//
//   - ai/remote: the catalog embedding service (POST /embed, GET /health)
//   - ai/openai: any OpenAI-compatible embeddings API via langchaingo
//   - ai/mock: deterministic vectors for tests
//
// # Constructor Return Type Pattern
//
// Public constructors (remote.NewProvider, openai.NewEmbedder, ...) return
// interface types. Mock constructors return concrete types so tests can
// inject behavior and inspect call counts.
//
//	provider, err := remote.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"Wireless Mouse"})
package ai

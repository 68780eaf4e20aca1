// Copyright 2025 derrickSh43
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


// Package ai defines the embedding capability used by the ingestion pipeline
// and the retrieval engine.
//
// The Embedder interface is implemented by:
//
//   - ai/openai: real embeddings via any OpenAI-compatible API
//   - ai/hash: deterministic hash-based vectors for tests and offline runs
//   - ai/mock: a function-field test double
//
// Every embedder reports a ModelInfo. The pipeline stamps it onto index
// entries; retrieval compares it against the query embedder and surfaces a
// warning when provider or model differ.
package ai

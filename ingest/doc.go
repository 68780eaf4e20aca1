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


// Package ingest transforms verified captures into release artifacts.
//
// A run moves one source through fixed stages: distill raw HTML into section
// candidates, classify and drop non-instructional sections, canonicalize the
// survivors, chunk them for embedding, embed the chunks concurrently, and
// hand the finished entries to the vector index. Every stage except
// embedding is deterministic, and all artifact ids are content-derived, so
// repeated runs of an unchanged source are idempotent.
package ingest

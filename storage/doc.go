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


// Package storage defines the persistence interfaces and shared helpers used
// by the rest of the system.
//
// Two backends implement them:
//
//   - storage/badger: the capture store (raw bytes plus metadata) on BadgerDB
//   - storage/file: release-scoped artifact files (canonical objects, chunks,
//     embeddings) as plain JSON under the data root
//
// The package also provides the path Layout for the data root, atomic file
// replacement, and JSONL append/read helpers used by the release manager,
// the vector index, and the observability log.
package storage

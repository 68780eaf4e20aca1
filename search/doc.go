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


// Package search answers retrieval queries against released indexes.
//
// A query resolves to a release (explicit or the domain's active one), is
// trimmed and embedded, and then ranked by cosine similarity over that
// release's vector index. Hits whose text contains every significant query
// word are additionally flagged as verbatim matches, and a warning is
// attached when the index was embedded with a different model than the
// query.
package search

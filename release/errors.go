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


package release

import "errors"

var (
	// ErrArtifactStoreRequired indicates a manager was constructed without
	// an artifact store.
	ErrArtifactStoreRequired = errors.New("artifact store is required")

	// ErrIndexRequired indicates a manager was constructed without a
	// vector index.
	ErrIndexRequired = errors.New("vector index is required")

	// ErrNoActiveRelease indicates the domain has no promoted release.
	ErrNoActiveRelease = errors.New("no active release")
)

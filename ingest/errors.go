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


package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrCaptureSourceRequired indicates a pipeline was constructed without
	// a capture source.
	ErrCaptureSourceRequired = errors.New("capture source is required")

	// ErrArtifactStoreRequired indicates a pipeline was constructed without
	// an artifact store.
	ErrArtifactStoreRequired = errors.New("artifact store is required")

	// ErrReleaseStoreRequired indicates a pipeline was constructed without
	// a release store.
	ErrReleaseStoreRequired = errors.New("release store is required")

	// ErrIndexerRequired indicates a pipeline was constructed without an
	// indexer.
	ErrIndexerRequired = errors.New("indexer is required")

	// ErrEmbedderRequired indicates a pipeline was constructed without an
	// embedder.
	ErrEmbedderRequired = errors.New("embedder is required")
)

// StageError wraps a failure from a named pipeline stage so callers can tell
// where a source's run stopped.
type StageError struct {
	Stage    string
	SourceID string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed for source %s: %v", e.Stage, e.SourceID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

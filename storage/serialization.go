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


package storage

import (
	"encoding/json"
	"fmt"

	"github.com/derrickSh43/ingestion/core"
)

// All persisted values use JSON. Artifacts double as on-disk files operators
// can inspect, so the encoding is the same everywhere.

// MarshalCapture serializes a capture for storage.
func MarshalCapture(capture *core.Capture) ([]byte, error) {
	data, err := json.Marshal(capture)
	if err != nil {
		return nil, fmt.Errorf("%w: capture %s/%s: %v", ErrSerializationFailed, capture.Domain, capture.SourceID, err)
	}
	return data, nil
}

// UnmarshalCapture deserializes a stored capture.
func UnmarshalCapture(data []byte) (*core.Capture, error) {
	var capture core.Capture
	if err := json.Unmarshal(data, &capture); err != nil {
		return nil, fmt.Errorf("%w: capture: %v", ErrCorruptRecord, err)
	}
	return &capture, nil
}

// MarshalJSON serializes any artifact, wrapping failures in the storage
// error taxonomy.
func MarshalJSON(what string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSerializationFailed, what, err)
	}
	return data, nil
}

// UnmarshalJSON deserializes any stored artifact, wrapping failures in the
// storage error taxonomy.
func UnmarshalJSON(what string, data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptRecord, what, err)
	}
	return nil
}

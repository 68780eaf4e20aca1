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


package capture

import "fmt"

// Quarantine reasons recorded on captures.
const (
	// ReasonCaptureFailed marks a fetch that returned a non-2xx status or an
	// empty body.
	ReasonCaptureFailed = "capture_failed"

	// ReasonManualQuarantine marks an operator-initiated quarantine.
	ReasonManualQuarantine = "manual_quarantine"

	// ReasonFileParseFailed marks an uploaded file that could not be parsed.
	ReasonFileParseFailed = "file_parse_failed"

	// ReasonEmptyFile marks an uploaded file that parsed to no content.
	ReasonEmptyFile = "empty_file"
)

// TransportError reports a failed HTTP fetch. The capture is still recorded
// as failed; the error is carried for logging and observability.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
